package tracking

import (
	"context"
	"log/slog"
	"sync"

	"github.com/piimap/piimap/domain/task"
)

// Tracker carries the progress of one queue operation, typically a
// datasource scan advancing container by container. Every state change is
// pushed to the registered reporters so progress survives in the database
// and shows up in the log.
type Tracker struct {
	status    task.Status
	reporters []Reporter
	logger    *slog.Logger
	mu        sync.RWMutex
}

// NewTracker creates a tracker wrapping the given Status.
func NewTracker(status task.Status, logger *slog.Logger) *Tracker {
	return &Tracker{
		status: status,
		logger: logger,
	}
}

// TrackerForOperation creates a tracker for an operation against a trackable
// entity, usually a datasource.
func TrackerForOperation(
	operation task.Operation,
	logger *slog.Logger,
	trackableType task.TrackableType,
	trackableID int64,
) *Tracker {
	return NewTracker(task.NewStatus(operation, nil, trackableType, trackableID), logger)
}

// Status returns a copy of the current Status.
func (t *Tracker) Status() task.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Subscribe adds a reporter to receive status change notifications.
func (t *Tracker) Subscribe(reporter Reporter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reporters = append(t.reporters, reporter)
}

// SetTotal sets the total unit count, e.g. the number of containers a scan
// will visit.
func (t *Tracker) SetTotal(ctx context.Context, total int) {
	t.report(ctx, func(s task.Status) task.Status { return s.SetTotal(total) })
}

// SetCurrent updates the progress count and optionally a message naming the
// unit being processed.
func (t *Tracker) SetCurrent(ctx context.Context, current int, message string) {
	t.report(ctx, func(s task.Status) task.Status { return s.SetCurrent(current, message) })
}

// Skip marks the operation as skipped with a reason.
func (t *Tracker) Skip(ctx context.Context, reason string) {
	t.report(ctx, func(s task.Status) task.Status { return s.Skip(reason) })
}

// Fail marks the operation as failed with an error message.
func (t *Tracker) Fail(ctx context.Context, errMsg string) {
	t.report(ctx, func(s task.Status) task.Status { return s.Fail(errMsg) })
}

// Complete marks the operation as completed.
func (t *Tracker) Complete(ctx context.Context) {
	t.report(ctx, func(s task.Status) task.Status { return s.Complete() })
}

// report applies a status mutation under the lock, then notifies every
// reporter outside it. A failing reporter does not stop the others.
func (t *Tracker) report(ctx context.Context, mutate func(task.Status) task.Status) {
	t.mu.Lock()
	t.status = mutate(t.status)
	status := t.status
	reporters := make([]Reporter, len(t.reporters))
	copy(reporters, t.reporters)
	t.mu.Unlock()

	for _, reporter := range reporters {
		if err := reporter.OnChange(ctx, status); err != nil {
			t.logger.Error("failed to notify reporter",
				slog.String("error", err.Error()),
				slog.String("operation", status.Operation().String()),
			)
		}
	}
}
