// Package connectorimpl implements the datasource connectors: relational
// databases, object stores, and document trees. Each connector translates
// its target into the container/field/record model the orchestrator scans.
package connectorimpl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/piimap/piimap/domain/connector"
	"github.com/piimap/piimap/internal/database"
)

// changeColumn is the column consulted for change detection. Tables
// without it cannot answer "changed since" queries and yield no events.
const changeColumn = "updated_at"

// Database scans relational databases reachable by URL. Connections are
// cached per locator and reused across scan phases.
type Database struct {
	logger *slog.Logger

	mu    sync.Mutex
	conns map[string]database.Database
}

// NewDatabase creates a relational database connector.
func NewDatabase(logger *slog.Logger) *Database {
	return &Database{
		logger: logger,
		conns:  make(map[string]database.Database),
	}
}

// TargetType returns the database target type.
func (d *Database) TargetType() connector.TargetType {
	return connector.TargetDatabase
}

func (d *Database) open(ctx context.Context, locator string) (database.Database, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if db, ok := d.conns[locator]; ok {
		return db, nil
	}
	db, err := database.NewDatabase(ctx, locator)
	if err != nil {
		return nil, err
	}
	d.conns[locator] = db
	return db, nil
}

// TestConnection verifies the locator is reachable by executing a trivial
// query against it.
func (d *Database) TestConnection(ctx context.Context, locator string) error {
	db, err := d.open(ctx, locator)
	if err != nil {
		return err
	}
	if err := db.Session(ctx).Exec("SELECT 1").Error; err != nil {
		return fmt.Errorf("ping %s: %w", locator, err)
	}
	return nil
}

// SchemaMetadata lists the tables and their columns behind the locator.
func (d *Database) SchemaMetadata(ctx context.Context, locator string) ([]connector.ContainerMetadata, error) {
	db, err := d.open(ctx, locator)
	if err != nil {
		return nil, err
	}

	session := db.Session(ctx)
	tables, err := session.Migrator().GetTables()
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	metadata := make([]connector.ContainerMetadata, 0, len(tables))
	for _, table := range tables {
		columnTypes, err := session.Migrator().ColumnTypes(table)
		if err != nil {
			return nil, fmt.Errorf("describe table %s: %w", table, err)
		}
		fields := make([]string, 0, len(columnTypes))
		for _, col := range columnTypes {
			fields = append(fields, col.Name())
		}

		var count int64
		if err := session.Table(table).Count(&count).Error; err != nil {
			d.logger.WarnContext(ctx, "failed to count table, reporting unknown size",
				slog.String("table", table),
				slog.String("error", err.Error()),
			)
			count = 0
		}
		metadata = append(metadata, connector.NewContainerMetadata(table, fields, count))
	}
	return metadata, nil
}

// ScanStream opens a row stream over one table. Every column of a row is
// emitted as its own record so fields are scanned independently.
func (d *Database) ScanStream(ctx context.Context, locator, container string, batchSize, limit int) (connector.Stream, error) {
	db, err := d.open(ctx, locator)
	if err != nil {
		return nil, err
	}
	query := db.Session(ctx).Table(container)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return openRowStream(query, container, batchSize)
}

// Changes opens a row stream over rows modified since the given time. A
// table without an updated_at column yields no changes.
func (d *Database) Changes(ctx context.Context, locator, container string, since time.Time, batchSize int) (connector.Stream, error) {
	db, err := d.open(ctx, locator)
	if err != nil {
		return nil, err
	}

	session := db.Session(ctx)
	if !hasColumn(session, container, changeColumn) {
		return emptyStream{}, nil
	}

	query := session.Table(container).Where(changeColumn+" > ?", since)
	return openRowStream(query, container, batchSize)
}

// Close closes all cached connections.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	for locator, db := range d.conns {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", locator, err)
		}
		delete(d.conns, locator)
	}
	return firstErr
}

func hasColumn(session *gorm.DB, table, column string) bool {
	columnTypes, err := session.Migrator().ColumnTypes(table)
	if err != nil {
		return false
	}
	for _, col := range columnTypes {
		if col.Name() == column {
			return true
		}
	}
	return false
}

var (
	_ connector.Connector     = (*Database)(nil)
	_ connector.ChangeCapable = (*Database)(nil)
)
