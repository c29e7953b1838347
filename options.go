package piimap

import (
	"io"
	"log/slog"
	"time"

	"github.com/piimap/piimap/application/service"
	"github.com/piimap/piimap/domain/document"
	"github.com/piimap/piimap/internal/config"
)

// databaseType identifies the database.
type databaseType int

const (
	databaseUnset databaseType = iota
	databaseSQLite
	databasePostgres
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	database         databaseType
	dbPath           string
	dbDSN            string
	dataDir          string
	modelDir         string
	seedRulesPath    string
	person           service.PersonRecognizer
	nerDisabled      bool
	extractors       []document.TextExtractor
	logger           *slog.Logger
	workerPollPeriod time.Duration
	scan             config.ScanConfig
	periodicRescan   config.PeriodicRescanConfig
	closers          []io.Closer
}

// newClientConfig creates a clientConfig with defaults from internal/config.
// This ensures all defaults come from the single source of truth.
func newClientConfig() *clientConfig {
	return &clientConfig{
		dataDir:        config.DefaultDataDir(),
		scan:           config.NewScanConfig(),
		periodicRescan: config.NewPeriodicRescanConfig(),
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithSQLite configures SQLite as the database.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.database = databaseSQLite
		c.dbPath = path
	}
}

// WithPostgres configures PostgreSQL as the database.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.database = databasePostgres
		c.dbDSN = dsn
	}
}

// WithDataDir sets the data directory for database and model storage.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.dataDir = dir
	}
}

// WithModelDir sets the directory where the built-in NER model files are
// stored. Defaults to {dataDir}/models if not specified.
func WithModelDir(dir string) Option {
	return func(c *clientConfig) {
		c.modelDir = dir
	}
}

// WithSeedRulesPath sets a YAML file to seed the rule store from instead
// of the built-in default rule set.
func WithSeedRulesPath(path string) Option {
	return func(c *clientConfig) {
		c.seedRulesPath = path
	}
}

// WithPersonRecognizer sets a custom person name recognizer, replacing the
// built-in NER model.
func WithPersonRecognizer(p service.PersonRecognizer) Option {
	return func(c *clientConfig) {
		c.person = p
	}
}

// WithoutNER disables person name recognition entirely. Detection runs
// pattern-only.
func WithoutNER() Option {
	return func(c *clientConfig) {
		c.nerDisabled = true
	}
}

// WithTextExtractor registers an additional text extractor for document
// and object store scanning. Built-in plain text and CSV extractors are
// always registered.
func WithTextExtractor(e document.TextExtractor) Option {
	return func(c *clientConfig) {
		c.extractors = append(c.extractors, e)
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithWorkerPollPeriod sets how often the background worker checks for new
// tasks. Defaults to 1 second. Lower values speed up task processing at
// the cost of more frequent polling, useful in tests.
func WithWorkerPollPeriod(d time.Duration) Option {
	return func(c *clientConfig) {
		c.workerPollPeriod = d
	}
}

// WithScanConfig sets the scan tuning parameters.
func WithScanConfig(cfg config.ScanConfig) Option {
	return func(c *clientConfig) {
		c.scan = cfg
	}
}

// WithPeriodicRescanConfig sets the periodic rescan configuration.
func WithPeriodicRescanConfig(cfg config.PeriodicRescanConfig) Option {
	return func(c *clientConfig) {
		c.periodicRescan = cfg
	}
}

// WithCloser registers a resource to be closed when the Client shuts down.
func WithCloser(c io.Closer) Option {
	return func(cfg *clientConfig) {
		cfg.closers = append(cfg.closers, c)
	}
}
