package task

import (
	"context"

	"github.com/piimap/piimap/domain/repository"
)

// TaskStore persists queued tasks. Save deduplicates on the task's dedup
// key, updating priority instead of inserting a duplicate.
type TaskStore interface {
	Save(ctx context.Context, t Task) (Task, error)
	Get(ctx context.Context, id int64) (Task, error)
	Delete(ctx context.Context, t Task) error

	// Dequeue claims the highest-priority pending task, oldest first on
	// ties. It returns false when the queue is empty.
	Dequeue(ctx context.Context) (Task, bool, error)

	FindPending(ctx context.Context, opts ...repository.Option) ([]Task, error)
	FindAll(ctx context.Context) ([]Task, error)
	CountPending(ctx context.Context) (int64, error)
}

// StatusStore persists operation progress for trackable entities.
type StatusStore interface {
	Save(ctx context.Context, s Status) (Status, error)
	Find(ctx context.Context, trackableType TrackableType, trackableID int64) ([]Status, error)
	Delete(ctx context.Context, trackableType TrackableType, trackableID int64) error
}
