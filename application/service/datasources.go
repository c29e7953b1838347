package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/piimap/piimap/domain/connector"
	"github.com/piimap/piimap/domain/repository"
	"github.com/piimap/piimap/domain/scan"
	"github.com/piimap/piimap/domain/task"
)

// DataSourceAddParams configures registering a new datasource.
type DataSourceAddParams struct {
	Name       string
	TargetType string
	Locator    string
	Scope      string
	Schedule   time.Duration
}

// DataSources provides datasource registration and scan triggering.
type DataSources struct {
	store      scan.DataSourceStore
	results    scan.ResultStore
	connectors *connector.Registry
	queue      *Queue
	logger     *slog.Logger
}

// NewDataSources creates a new DataSources service.
func NewDataSources(
	store scan.DataSourceStore,
	results scan.ResultStore,
	connectors *connector.Registry,
	queue *Queue,
	logger *slog.Logger,
) *DataSources {
	return &DataSources{
		store:      store,
		results:    results,
		connectors: connectors,
		queue:      queue,
		logger:     logger,
	}
}

// Add registers a datasource, verifies the connection, and queues an
// initial scan. If a datasource with the same name already exists, it
// returns the existing one with created=false.
func (s *DataSources) Add(ctx context.Context, params *DataSourceAddParams) (scan.DataSource, bool, error) {
	existing, err := s.store.Exists(ctx, repository.WithName(params.Name))
	if err != nil {
		return scan.DataSource{}, false, fmt.Errorf("check existing: %w", err)
	}
	if existing {
		ds, err := s.store.FindOne(ctx, repository.WithName(params.Name))
		if err != nil {
			return scan.DataSource{}, false, fmt.Errorf("find existing datasource: %w", err)
		}
		return ds, false, nil
	}

	targetType, err := connector.ParseTargetType(params.TargetType)
	if err != nil {
		return scan.DataSource{}, false, err
	}

	conn, err := s.connectors.Get(targetType)
	if err != nil {
		return scan.DataSource{}, false, err
	}
	if err := conn.TestConnection(ctx, params.Locator); err != nil {
		return scan.DataSource{}, false, &ConnectorError{Phase: "connection test", Err: err}
	}

	ds := scan.NewDataSource(params.Name, targetType, params.Locator)
	if params.Scope != "" {
		scope, err := scan.ParseScope(params.Scope)
		if err != nil {
			return scan.DataSource{}, false, err
		}
		ds = ds.WithScope(scope)
	}
	if params.Schedule > 0 {
		ds = ds.WithSchedule(params.Schedule)
	}

	saved, err := s.store.Save(ctx, ds)
	if err != nil {
		return scan.DataSource{}, false, fmt.Errorf("save datasource: %w", err)
	}

	payload := map[string]any{"datasource_id": saved.ID()}
	operations := task.NewPrescribedOperations(true).ScanDataSource()
	if err := s.queue.EnqueueOperations(ctx, operations, task.PriorityUserInitiated, payload); err != nil {
		s.logger.Warn("failed to enqueue initial scan",
			slog.Int64("datasource_id", saved.ID()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("datasource added",
		slog.Int64("datasource_id", saved.ID()),
		slog.String("name", saved.Name()),
		slog.String("target_type", saved.TargetType().String()),
		slog.String("scope", string(saved.Scope())),
	)

	return saved, true, nil
}

// Get returns a datasource by ID.
func (s *DataSources) Get(ctx context.Context, id int64) (scan.DataSource, error) {
	return s.store.FindOne(ctx, repository.WithID(id))
}

// List returns all registered datasources.
func (s *DataSources) List(ctx context.Context, opts ...repository.Option) ([]scan.DataSource, error) {
	return s.store.Find(ctx, opts...)
}

// Delete removes a datasource with its scan results.
func (s *DataSources) Delete(ctx context.Context, id int64) error {
	ds, err := s.store.FindOne(ctx, repository.WithID(id))
	if err != nil {
		return fmt.Errorf("get datasource: %w", err)
	}

	if err := s.results.DeleteByDataSource(ctx, id); err != nil {
		return fmt.Errorf("delete scan results: %w", err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete datasource: %w", err)
	}

	s.logger.Info("datasource deleted",
		slog.Int64("datasource_id", id),
		slog.String("name", ds.Name()),
	)
	return nil
}

// Rescan queues a scan of a specific datasource.
func (s *DataSources) Rescan(ctx context.Context, id int64, scope string) error {
	if _, err := s.store.FindOne(ctx, repository.WithID(id)); err != nil {
		return fmt.Errorf("get datasource: %w", err)
	}
	if scope != "" {
		if _, err := scan.ParseScope(scope); err != nil {
			return err
		}
	}
	return s.enqueueRescan(ctx, id, scope)
}

// RescanAll queues a scan for every registered datasource.
func (s *DataSources) RescanAll(ctx context.Context) error {
	all, err := s.store.Find(ctx)
	if err != nil {
		return fmt.Errorf("find datasources: %w", err)
	}
	for _, ds := range all {
		if err := s.enqueueRescan(ctx, ds.ID(), ""); err != nil {
			return fmt.Errorf("enqueue rescan: %w", err)
		}
	}
	return nil
}

// Results returns the persisted scan results for a datasource, newest
// first.
func (s *DataSources) Results(ctx context.Context, id int64) ([]scan.Result, error) {
	return s.results.FindByDataSource(ctx, id)
}

func (s *DataSources) enqueueRescan(ctx context.Context, id int64, scope string) error {
	payload := map[string]any{"datasource_id": id}
	if scope != "" {
		payload["scope"] = scope
	}
	operations := task.NewPrescribedOperations(true).RescanDataSource()

	if err := s.queue.EnqueueOperations(ctx, operations, task.PriorityUserInitiated, payload); err != nil {
		return fmt.Errorf("enqueue rescan: %w", err)
	}

	s.logger.Info("rescan requested",
		slog.Int64("datasource_id", id),
		slog.String("scope", scope),
	)
	return nil
}
