// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultLogLevel                    = "INFO"
	DefaultWorkerCount                 = 1
	DefaultSampleBudget                = 100
	DefaultBatchSize                   = 100
	DefaultContainerConcurrency        = 4
	DefaultSampleValueLimit            = 5
	DefaultPeriodicRescanInterval      = 3600.0 // seconds
	DefaultPeriodicRescanCheckInterval = 10.0   // seconds
	DefaultPeriodicRescanRetries       = 3
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// ScanConfig configures datasource scan behavior.
type ScanConfig struct {
	sampleBudget         int
	batchSize            int
	containerConcurrency int
	sampleValueLimit     int
}

// NewScanConfig creates a new ScanConfig with defaults.
func NewScanConfig() ScanConfig {
	return ScanConfig{
		sampleBudget:         DefaultSampleBudget,
		batchSize:            DefaultBatchSize,
		containerConcurrency: DefaultContainerConcurrency,
		sampleValueLimit:     DefaultSampleValueLimit,
	}
}

// SampleBudget returns the per-container record budget for the sampling phase.
func (s ScanConfig) SampleBudget() int { return s.sampleBudget }

// BatchSize returns the number of records pulled per stream read.
func (s ScanConfig) BatchSize() int { return s.batchSize }

// ContainerConcurrency returns how many containers scan in parallel.
func (s ScanConfig) ContainerConcurrency() int { return s.containerConcurrency }

// SampleValueLimit returns the maximum masked sample values retained per finding.
func (s ScanConfig) SampleValueLimit() int { return s.sampleValueLimit }

// WithSampleBudget returns a new config with the specified sample budget.
func (s ScanConfig) WithSampleBudget(n int) ScanConfig {
	if n > 0 {
		s.sampleBudget = n
	}
	return s
}

// WithBatchSize returns a new config with the specified batch size.
func (s ScanConfig) WithBatchSize(n int) ScanConfig {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// WithContainerConcurrency returns a new config with the specified concurrency.
func (s ScanConfig) WithContainerConcurrency(n int) ScanConfig {
	if n > 0 {
		s.containerConcurrency = n
	}
	return s
}

// WithSampleValueLimit returns a new config with the specified sample value limit.
func (s ScanConfig) WithSampleValueLimit(n int) ScanConfig {
	if n > 0 {
		s.sampleValueLimit = n
	}
	return s
}

// PeriodicRescanConfig configures periodic datasource rescanning.
type PeriodicRescanConfig struct {
	enabled              bool
	intervalSeconds      float64
	checkIntervalSeconds float64
	retryAttempts        int
}

// NewPeriodicRescanConfig creates a new PeriodicRescanConfig with defaults.
func NewPeriodicRescanConfig() PeriodicRescanConfig {
	return PeriodicRescanConfig{
		enabled:              true,
		intervalSeconds:      DefaultPeriodicRescanInterval,
		checkIntervalSeconds: DefaultPeriodicRescanCheckInterval,
		retryAttempts:        DefaultPeriodicRescanRetries,
	}
}

// Enabled returns whether periodic rescanning is enabled.
func (p PeriodicRescanConfig) Enabled() bool { return p.enabled }

// Interval returns the rescan interval as a duration.
func (p PeriodicRescanConfig) Interval() time.Duration {
	return time.Duration(p.intervalSeconds * float64(time.Second))
}

// CheckInterval returns how often to check for datasources due for a rescan.
func (p PeriodicRescanConfig) CheckInterval() time.Duration {
	return time.Duration(p.checkIntervalSeconds * float64(time.Second))
}

// RetryAttempts returns the retry count.
func (p PeriodicRescanConfig) RetryAttempts() int { return p.retryAttempts }

// WithEnabled returns a new config with the specified enabled state.
func (p PeriodicRescanConfig) WithEnabled(enabled bool) PeriodicRescanConfig {
	p.enabled = enabled
	return p
}

// WithIntervalSeconds returns a new config with the specified interval.
func (p PeriodicRescanConfig) WithIntervalSeconds(seconds float64) PeriodicRescanConfig {
	if seconds > 0 {
		p.intervalSeconds = seconds
	}
	return p
}

// WithCheckIntervalSeconds returns a new config with the specified check interval.
func (p PeriodicRescanConfig) WithCheckIntervalSeconds(seconds float64) PeriodicRescanConfig {
	if seconds > 0 {
		p.checkIntervalSeconds = seconds
	}
	return p
}

// WithRetryAttempts returns a new config with the specified retry count.
func (p PeriodicRescanConfig) WithRetryAttempts(attempts int) PeriodicRescanConfig {
	if attempts > 0 {
		p.retryAttempts = attempts
	}
	return p
}

// NERConfig configures the optional person-name detection model.
type NERConfig struct {
	modelDir string
	enabled  bool
}

// NewNERConfig creates a new NERConfig with defaults.
func NewNERConfig() NERConfig {
	return NERConfig{enabled: true}
}

// ModelDir returns the directory holding the token-classification model.
func (n NERConfig) ModelDir() string { return n.modelDir }

// Enabled returns whether the model should be loaded when present.
func (n NERConfig) Enabled() bool { return n.enabled }

// WithModelDir returns a new config with the specified model directory.
func (n NERConfig) WithModelDir(dir string) NERConfig {
	n.modelDir = dir
	return n
}

// WithEnabled returns a new config with the specified enabled state.
func (n NERConfig) WithEnabled(enabled bool) NERConfig {
	n.enabled = enabled
	return n
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	dataDir        string
	dbURL          string
	logLevel       string
	logFormat      LogFormat
	workerCount    int
	seedRulesPath  string
	scan           ScanConfig
	periodicRescan PeriodicRescanConfig
	ner            NERConfig
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".piimap"
	}
	return filepath.Join(home, ".piimap")
}

// DefaultLogger returns the default slog logger for library consumers.
func DefaultLogger() *slog.Logger {
	return slog.Default()
}

// PrepareDataDir creates the data directory if it does not exist and returns it.
func PrepareDataDir(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dataDir, nil
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		dataDir:        dataDir,
		dbURL:          "sqlite:///" + filepath.Join(dataDir, "piimap.db"),
		logLevel:       DefaultLogLevel,
		logFormat:      LogFormatPretty,
		workerCount:    DefaultWorkerCount,
		scan:           NewScanConfig(),
		periodicRescan: NewPeriodicRescanConfig(),
		ner:            NewNERConfig(),
	}
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// WorkerCount returns the number of background workers.
func (c AppConfig) WorkerCount() int { return c.workerCount }

// SeedRulesPath returns the path to an operator-supplied seed ruleset, if any.
func (c AppConfig) SeedRulesPath() string { return c.seedRulesPath }

// Scan returns the scan config.
func (c AppConfig) Scan() ScanConfig { return c.scan }

// PeriodicRescan returns the periodic rescan config.
func (c AppConfig) PeriodicRescan() PeriodicRescanConfig { return c.periodicRescan }

// NER returns the person-name detection config.
func (c AppConfig) NER() NERConfig { return c.ner }

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		c.dataDir = dir
		// Update default DB URL when data dir changes
		if c.dbURL == "" || strings.Contains(c.dbURL, "piimap.db") {
			c.dbURL = "sqlite:///" + filepath.Join(dir, "piimap.db")
		}
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithWorkerCount sets the number of background workers.
func WithWorkerCount(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.workerCount = n
		}
	}
}

// WithSeedRulesPath sets the path to an operator-supplied seed ruleset.
func WithSeedRulesPath(path string) AppConfigOption {
	return func(c *AppConfig) { c.seedRulesPath = path }
}

// WithScanConfig sets the scan config.
func WithScanConfig(s ScanConfig) AppConfigOption {
	return func(c *AppConfig) { c.scan = s }
}

// WithPeriodicRescanConfig sets the periodic rescan config.
func WithPeriodicRescanConfig(p PeriodicRescanConfig) AppConfigOption {
	return func(c *AppConfig) { c.periodicRescan = p }
}

// WithNERConfig sets the person-name detection config.
func WithNERConfig(n NERConfig) AppConfigOption {
	return func(c *AppConfig) { c.ner = n }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Database credentials are masked.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.Int("worker_count", c.workerCount),
		slog.Int("scan_sample_budget", c.scan.SampleBudget()),
		slog.Int("scan_batch_size", c.scan.BatchSize()),
		slog.Int("scan_container_concurrency", c.scan.ContainerConcurrency()),
		slog.Bool("periodic_rescan_enabled", c.periodicRescan.Enabled()),
		slog.Duration("periodic_rescan_interval", c.periodicRescan.Interval()),
		slog.String("ner_model_dir", c.ner.ModelDir()),
	}
}

func (c AppConfig) maskedDBURL() string {
	if c.dbURL == "" {
		return "(default)"
	}
	if len(c.dbURL) >= 7 && c.dbURL[:7] == "sqlite:" {
		return c.dbURL
	}
	return "postgres://***@***"
}
