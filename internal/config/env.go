// Package config provides application configuration.
package config

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., SCAN_SAMPLE_BUDGET).
type EnvConfig struct {
	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.piimap
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Env: DB_URL
	// Default: sqlite:///{data_dir}/piimap.db
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// WorkerCount is the number of background workers.
	// Env: WORKER_COUNT (default: 1)
	WorkerCount int `envconfig:"WORKER_COUNT" default:"1"`

	// SeedRulesPath points at a YAML ruleset used to seed an empty rule store.
	// When unset the built-in ruleset is used.
	// Env: SEED_RULES_PATH
	SeedRulesPath string `envconfig:"SEED_RULES_PATH"`

	// Scan configures datasource scan behavior.
	Scan ScanEnv `envconfig:"SCAN"`

	// PeriodicRescan configures periodic datasource rescanning.
	PeriodicRescan PeriodicRescanEnv `envconfig:"PERIODIC_RESCAN"`

	// NER configures the optional person-name detection model.
	NER NEREnv `envconfig:"NER"`
}

// ScanEnv holds environment configuration for scanning.
type ScanEnv struct {
	// SampleBudget is the per-container record budget for the sampling phase.
	// Env: SCAN_SAMPLE_BUDGET (default: 100)
	SampleBudget int `envconfig:"SAMPLE_BUDGET" default:"100"`

	// BatchSize is the number of records pulled per stream read.
	// Env: SCAN_BATCH_SIZE (default: 100)
	BatchSize int `envconfig:"BATCH_SIZE" default:"100"`

	// ContainerConcurrency is how many containers scan in parallel.
	// Env: SCAN_CONTAINER_CONCURRENCY (default: 4)
	ContainerConcurrency int `envconfig:"CONTAINER_CONCURRENCY" default:"4"`

	// SampleValueLimit is the maximum masked sample values kept per finding.
	// Env: SCAN_SAMPLE_VALUE_LIMIT (default: 5)
	SampleValueLimit int `envconfig:"SAMPLE_VALUE_LIMIT" default:"5"`
}

// PeriodicRescanEnv holds environment configuration for periodic rescanning.
type PeriodicRescanEnv struct {
	// Enabled controls whether periodic rescanning is enabled.
	// Env: PERIODIC_RESCAN_ENABLED (default: true)
	Enabled bool `envconfig:"ENABLED" default:"true"`

	// IntervalSeconds is the rescan interval in seconds.
	// Env: PERIODIC_RESCAN_INTERVAL_SECONDS (default: 3600)
	IntervalSeconds float64 `envconfig:"INTERVAL_SECONDS" default:"3600"`

	// CheckIntervalSeconds is how often to check for due datasources.
	// Env: PERIODIC_RESCAN_CHECK_INTERVAL_SECONDS (default: 10)
	CheckIntervalSeconds float64 `envconfig:"CHECK_INTERVAL_SECONDS" default:"10"`

	// RetryAttempts is the number of retry attempts.
	// Env: PERIODIC_RESCAN_RETRY_ATTEMPTS (default: 3)
	RetryAttempts int `envconfig:"RETRY_ATTEMPTS" default:"3"`
}

// NEREnv holds environment configuration for person-name detection.
type NEREnv struct {
	// ModelDir is the directory holding the token-classification model.
	// Env: NER_MODEL_DIR
	ModelDir string `envconfig:"MODEL_DIR"`

	// Enabled controls whether the model is loaded when present.
	// Env: NER_ENABLED (default: true)
	Enabled bool `envconfig:"ENABLED" default:"true"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "PIIMAP" would require PIIMAP_DATA_DIR instead of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		cfg = applyOption(cfg, WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}
	if e.WorkerCount > 0 {
		cfg = applyOption(cfg, WithWorkerCount(e.WorkerCount))
	}
	if e.SeedRulesPath != "" {
		cfg = applyOption(cfg, WithSeedRulesPath(e.SeedRulesPath))
	}

	cfg = applyOption(cfg, WithScanConfig(e.Scan.ToScanConfig()))
	cfg = applyOption(cfg, WithPeriodicRescanConfig(e.PeriodicRescan.ToPeriodicRescanConfig()))
	cfg = applyOption(cfg, WithNERConfig(e.NER.ToNERConfig()))

	return cfg
}

// applyOption applies an option to the config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// ToScanConfig converts ScanEnv to ScanConfig.
func (s ScanEnv) ToScanConfig() ScanConfig {
	return NewScanConfig().
		WithSampleBudget(s.SampleBudget).
		WithBatchSize(s.BatchSize).
		WithContainerConcurrency(s.ContainerConcurrency).
		WithSampleValueLimit(s.SampleValueLimit)
}

// ToPeriodicRescanConfig converts PeriodicRescanEnv to PeriodicRescanConfig.
func (p PeriodicRescanEnv) ToPeriodicRescanConfig() PeriodicRescanConfig {
	return NewPeriodicRescanConfig().
		WithEnabled(p.Enabled).
		WithIntervalSeconds(p.IntervalSeconds).
		WithCheckIntervalSeconds(p.CheckIntervalSeconds).
		WithRetryAttempts(p.RetryAttempts)
}

// ToNERConfig converts NEREnv to NERConfig.
func (n NEREnv) ToNERConfig() NERConfig {
	return NewNERConfig().
		WithModelDir(n.ModelDir).
		WithEnabled(n.Enabled)
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
