package tracking

import (
	"context"
	"fmt"

	"github.com/piimap/piimap/domain/task"
)

// Reporter receives task status updates.
type Reporter interface {
	OnChange(ctx context.Context, status task.Status) error
}

// DBReporter implements Reporter by persisting status changes.
type DBReporter struct {
	store task.StatusStore
}

// NewDBReporter creates a Reporter backed by the given status store.
func NewDBReporter(store task.StatusStore) *DBReporter {
	return &DBReporter{store: store}
}

// OnChange persists the status update.
func (r *DBReporter) OnChange(ctx context.Context, status task.Status) error {
	if _, err := r.store.Save(ctx, status); err != nil {
		return fmt.Errorf("failed to persist task status: %w", err)
	}
	return nil
}
