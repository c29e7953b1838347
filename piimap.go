// Package piimap provides a library for discovering, classifying, and
// tracing personally identifiable information across datasources.
//
// PIImap inventories databases, object stores, and document trees, detects
// PII with rule-driven pattern matching plus a local NER model, and builds
// a lineage graph that traces how PII flows between systems.
//
// Basic usage:
//
//	client, err := piimap.New(
//	    piimap.WithSQLite(".piimap/data.db"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Register a datasource; an initial scan is queued automatically.
//	ds, created, err := client.DataSources.Add(ctx, &service.DataSourceAddParams{
//	    Name:       "billing",
//	    TargetType: "database",
//	    Locator:    "postgres://scanner@billing-db/billing",
//	})
//
//	// Inspect findings once the scan completes.
//	results, err := client.DataSources.Results(ctx, ds.ID())
//
//	// Trace where a column's PII flows.
//	downstream, err := client.Lineage.DownstreamPath(nodeID)
package piimap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/piimap/piimap/application/handler"
	lineagehandler "github.com/piimap/piimap/application/handler/lineage"
	ruleshandler "github.com/piimap/piimap/application/handler/rules"
	scanhandler "github.com/piimap/piimap/application/handler/scan"
	"github.com/piimap/piimap/application/service"
	"github.com/piimap/piimap/domain/connector"
	"github.com/piimap/piimap/domain/document"
	"github.com/piimap/piimap/domain/task"
	connectorimpl "github.com/piimap/piimap/infrastructure/connector"
	"github.com/piimap/piimap/infrastructure/extractor"
	"github.com/piimap/piimap/infrastructure/persistence"
	"github.com/piimap/piimap/infrastructure/provider"
	"github.com/piimap/piimap/infrastructure/tracking"
	"github.com/piimap/piimap/internal/config"
	"github.com/piimap/piimap/internal/database"
)

// ErrNoDatabase indicates no database was configured.
var ErrNoDatabase = errors.New("piimap: no database configured (use WithSQLite or WithPostgres)")

// ErrClientClosed indicates an operation on a closed client.
var ErrClientClosed = service.ErrClientClosed

// Client is the main entry point for the piimap library.
// The background worker starts automatically on creation.
//
// Access resources via struct fields:
//
//	client.DataSources.List(ctx)
//	client.Rules.Add(ctx, rule)
//	client.Documents.Scan(ctx, data, "export.csv")
type Client struct {
	// Public resource fields (direct service access)
	DataSources *service.DataSources
	Rules       *service.Rules
	Documents   *service.Documents
	Scans       *service.Orchestrator
	Lineage     *service.Lineage
	Tasks       *service.Queue

	db          database.Database
	taskStore   persistence.TaskStore
	statusStore persistence.StatusStore

	recognition    *service.Recognition
	classification *service.Classification
	connectors     *connector.Registry
	dbConnector    *connectorimpl.Database

	worker         *service.Worker
	periodicRescan *service.PeriodicRescan
	registry       *service.Registry

	ner     *provider.HugotNER
	closers []io.Closer

	logger  *slog.Logger
	dataDir string
	closed  atomic.Bool
	mu      sync.Mutex
}

// New creates a new Client with the given options.
// The background worker is started automatically.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.database == databaseUnset {
		return nil, ErrNoDatabase
	}

	// Set up logger
	logger := cfg.logger
	if logger == nil {
		logger = config.DefaultLogger()
	}

	// Set up data directory
	dataDir, err := config.PrepareDataDir(cfg.dataDir)
	if err != nil {
		return nil, err
	}

	// Create the built-in NER recognizer unless a custom one was supplied.
	// Detection degrades to pattern-only when no model is available.
	var ner *provider.HugotNER
	person := cfg.person
	if person == nil && !cfg.nerDisabled {
		modelDir := cfg.modelDir
		if modelDir == "" {
			modelDir = filepath.Join(dataDir, "models")
		}
		ner = provider.NewHugotNER(modelDir)
		person = ner
		if ner.Available() {
			logger.Info("built-in person recognizer enabled", slog.String("model_dir", modelDir))
		} else {
			logger.Warn("no NER model found, person detection degrades to pattern-only",
				slog.String("model_dir", modelDir))
		}
	}

	// Build database URL
	ctx := context.Background()
	dbURL, err := buildDatabaseURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("build database url: %w", err)
	}

	// Open database
	db, err := database.NewDatabase(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Run auto migration
	if err := persistence.AutoMigrate(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}

	// Validate schema matches GORM models
	if err := persistence.ValidateSchema(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("validate schema: %w", err), errClose)
	}

	// Create stores
	ruleStore := persistence.NewRuleStore(db)
	dataSourceStore := persistence.NewDataSourceStore(db)
	resultStore := persistence.NewResultStore(db)
	auditStore := persistence.NewChangeAuditStore(db)
	taskStore := persistence.NewTaskStore(db)
	statusStore := persistence.NewStatusStore(db)

	// Seed the default rule set so a fresh install detects something
	// before any operator-defined rules exist.
	seedRules, err := persistence.LoadSeedRules(cfg.seedRulesPath)
	if err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("load seed rules: %w", err), errClose)
	}
	if _, err := persistence.SeedRules(ctx, ruleStore, seedRules, logger); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("seed rules: %w", err), errClose)
	}

	// Text extractors: built-ins first, then any custom ones.
	extractors := append([]document.TextExtractor{
		extractor.NewPlainText(),
		extractor.NewCSV(),
	}, cfg.extractors...)

	// Create connectors
	dbConnector := connectorimpl.NewDatabase(logger)
	connectors := connector.NewRegistry()
	connectors.Register(dbConnector)
	connectors.Register(connectorimpl.NewObjectStore(extractors, logger))
	connectors.Register(connectorimpl.NewDocumentTree(extractors, logger))

	// Create application services
	registry := service.NewRegistry()
	queue := service.NewQueue(taskStore, logger)

	recognitionSvc := service.NewRecognition(ruleStore, person, logger)
	classificationSvc := service.NewClassification(recognitionSvc)
	orchestratorSvc := service.NewOrchestrator(
		connectors, recognitionSvc, classificationSvc,
		dataSourceStore, resultStore, auditStore,
		cfg.scan, logger,
	)
	lineageSvc := service.NewLineage(connectors, recognitionSvc, cfg.scan, logger)
	documentsSvc := service.NewDocuments(extractors, recognitionSvc, classificationSvc, cfg.scan, logger)
	rulesSvc := service.NewRules(ruleStore, queue, logger)
	dataSourcesSvc := service.NewDataSources(dataSourceStore, resultStore, connectors, queue, logger)

	// Create tracker factory for progress reporting.
	// Wrap reporters in cooldowns to limit database writes and log output
	// to at most once per second per status ID during high-frequency updates.
	dbCooldown := tracking.NewCooldown(tracking.NewDBReporter(statusStore), time.Second)
	logCooldown := tracking.NewCooldown(tracking.NewLoggingReporter(logger), time.Second)
	reporters := []tracking.Reporter{dbCooldown, logCooldown}
	trackerFactory := &trackerFactoryImpl{
		reporters: reporters,
		logger:    logger,
	}
	worker := service.NewWorker(taskStore, registry, &workerTrackerAdapter{trackerFactory}, logger)
	if cfg.workerPollPeriod > 0 {
		worker.WithPollPeriod(cfg.workerPollPeriod)
	}
	periodicRescan := service.NewPeriodicRescan(cfg.periodicRescan, dataSourceStore, queue, logger)

	// Register cooldowns for cleanup on close so pending statuses are flushed.
	cfg.closers = append(cfg.closers, dbCooldown, logCooldown)

	client := &Client{
		DataSources:    dataSourcesSvc,
		Rules:          rulesSvc,
		Documents:      documentsSvc,
		Scans:          orchestratorSvc,
		Lineage:        lineageSvc,
		Tasks:          queue,
		db:             db,
		taskStore:      taskStore,
		statusStore:    statusStore,
		recognition:    recognitionSvc,
		classification: classificationSvc,
		connectors:     connectors,
		dbConnector:    dbConnector,
		worker:         worker,
		periodicRescan: periodicRescan,
		registry:       registry,
		ner:            ner,
		closers:        cfg.closers,
		logger:         logger,
		dataDir:        dataDir,
	}

	// Register task handlers
	client.registerHandlers(trackerFactory)

	// Load the active rule snapshot before anything can ask for detection.
	if err := recognitionSvc.LoadRules(ctx); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("load rules: %w", err), errClose)
	}

	// Start the background worker and periodic rescan
	worker.Start(ctx)
	periodicRescan.Start(ctx)

	return client, nil
}

// registerHandlers registers all task handlers with the worker registry.
func (c *Client) registerHandlers(trackerFactory handler.TrackerFactory) {
	scanHandler := scanhandler.NewScan(c.Scans, trackerFactory, c.logger)
	c.registry.Register(task.OperationScanDataSource, scanHandler)
	c.registry.Register(task.OperationRescanDataSource, scanHandler)
	c.registry.Register(task.OperationRefreshLineage, lineagehandler.NewRefresh(
		c.Lineage, c.DataSources, c.logger,
	))
	c.registry.Register(task.OperationReloadRules, ruleshandler.NewReload(
		c.recognition, c.logger,
	))
	c.logger.Info("registered task handlers", slog.Int("count", len(c.registry.Operations())))
}

// Close releases all resources and stops the background worker.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Stop the periodic rescan and worker
	c.periodicRescan.Stop()
	c.worker.Stop()

	// Close the built-in person recognizer
	if c.ner != nil {
		if err := c.ner.Close(); err != nil {
			c.logger.Error("failed to close ner recognizer", slog.Any("error", err))
		}
	}

	// Close cached connector connections
	if err := c.dbConnector.Close(); err != nil {
		c.logger.Error("failed to close connector connections", slog.Any("error", err))
	}

	// Close registered resources (e.g. cooldown reporters)
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}

	// Close the database
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	c.logger.Info("piimap client closed")
	return nil
}

// WorkerIdle reports whether the background worker has no in-flight tasks.
func (c *Client) WorkerIdle() bool {
	return !c.worker.Busy()
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// buildDatabaseURL constructs the database URL from configuration.
func buildDatabaseURL(cfg *clientConfig) (string, error) {
	switch cfg.database {
	case databaseSQLite:
		return "sqlite:///" + cfg.dbPath, nil
	case databasePostgres:
		return cfg.dbDSN, nil
	default:
		return "", ErrNoDatabase
	}
}

// trackerFactoryImpl implements handler.TrackerFactory for progress reporting.
type trackerFactoryImpl struct {
	reporters []tracking.Reporter
	logger    *slog.Logger
}

// ForOperation creates a Tracker for the given operation.
func (f *trackerFactoryImpl) ForOperation(operation task.Operation, trackableType task.TrackableType, trackableID int64) handler.Tracker {
	tracker := tracking.TrackerForOperation(operation, f.logger, trackableType, trackableID)
	for _, reporter := range f.reporters {
		tracker.Subscribe(reporter)
	}
	return tracker
}

// workerTrackerAdapter adapts trackerFactoryImpl to service.WorkerTrackerFactory.
type workerTrackerAdapter struct {
	factory *trackerFactoryImpl
}

// ForOperation creates a WorkerTracker for the given operation.
func (a *workerTrackerAdapter) ForOperation(operation task.Operation, trackableType task.TrackableType, trackableID int64) service.WorkerTracker {
	return a.factory.ForOperation(operation, trackableType, trackableID)
}
