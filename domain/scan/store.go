package scan

import (
	"context"

	"github.com/piimap/piimap/domain/repository"
)

// DataSourceStore persists registered datasources.
type DataSourceStore interface {
	repository.Store[DataSource]
	Delete(ctx context.Context, id int64) error
}

// ResultStore persists aggregated scan results.
//
// Results are committed per container as a snapshot: ReplaceContainer
// atomically deletes the prior rows for the container and inserts the new
// ones. A failed replace leaves the prior snapshot intact.
type ResultStore interface {
	repository.Store[Result]
	ReplaceContainer(ctx context.Context, dataSourceID int64, container string, results []Result) error
	FindByDataSource(ctx context.Context, dataSourceID int64) ([]Result, error)
	DeleteByDataSource(ctx context.Context, dataSourceID int64) error
}

// ChangeAuditStore records detected value changes. Events are append-only
// and never overwrite scan results.
type ChangeAuditStore interface {
	Append(ctx context.Context, events []ChangeEvent) error
	Find(ctx context.Context, opts ...repository.Option) ([]ChangeEvent, error)
}
