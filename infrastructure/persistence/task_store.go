package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/piimap/piimap/domain/repository"
	"github.com/piimap/piimap/domain/task"
	"github.com/piimap/piimap/internal/database"
	"gorm.io/gorm"
)

// TaskStore implements task.TaskStore using GORM. Existence of a row means
// the task is pending; workers delete tasks once processed.
type TaskStore struct {
	database.Repository[task.Task, TaskModel]
}

// NewTaskStore creates a new TaskStore.
func NewTaskStore(db database.Database) TaskStore {
	return TaskStore{
		Repository: database.NewRepository[task.Task, TaskModel](db, TaskMapper{}, "task"),
	}
}

// Save inserts the task, or bumps the priority of the existing task with
// the same dedup key.
func (s TaskStore) Save(ctx context.Context, t task.Task) (task.Task, error) {
	var existing TaskModel
	err := s.DB(ctx).Where("dedup_key = ?", t.DedupKey()).First(&existing).Error
	if err == nil {
		if t.Priority() > existing.Priority {
			existing.Priority = t.Priority()
			if result := s.DB(ctx).Save(&existing); result.Error != nil {
				return task.Task{}, fmt.Errorf("update task priority: %w", result.Error)
			}
		}
		return s.Mapper().ToDomain(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return task.Task{}, fmt.Errorf("check existing task: %w", err)
	}

	model := s.Mapper().ToModel(t)
	if result := s.DB(ctx).Create(&model); result.Error != nil {
		return task.Task{}, fmt.Errorf("save task: %w", result.Error)
	}
	return s.Mapper().ToDomain(model), nil
}

// Get retrieves a task by ID.
func (s TaskStore) Get(ctx context.Context, id int64) (task.Task, error) {
	return s.FindOne(ctx, repository.WithID(id))
}

// Delete removes a task.
func (s TaskStore) Delete(ctx context.Context, t task.Task) error {
	result := s.DB(ctx).Delete(&TaskModel{}, t.ID())
	if result.Error != nil {
		return fmt.Errorf("delete task: %w", result.Error)
	}
	return nil
}

// Dequeue returns the highest-priority pending task, oldest first on ties.
// It returns false when the queue is empty.
func (s TaskStore) Dequeue(ctx context.Context) (task.Task, bool, error) {
	var model TaskModel
	err := s.DB(ctx).
		Order("priority DESC").
		Order("created_at ASC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return task.Task{}, false, nil
		}
		return task.Task{}, false, fmt.Errorf("dequeue task: %w", err)
	}
	return s.Mapper().ToDomain(model), true, nil
}

// FindPending returns pending tasks ordered by priority then age.
func (s TaskStore) FindPending(ctx context.Context, opts ...repository.Option) ([]task.Task, error) {
	ordered := append([]repository.Option{
		repository.WithOrderDesc("priority"),
		repository.WithOrderAsc("created_at"),
	}, opts...)
	return s.Find(ctx, ordered...)
}

// FindAll returns every queued task.
func (s TaskStore) FindAll(ctx context.Context) ([]task.Task, error) {
	return s.Find(ctx)
}

// CountPending returns the number of pending tasks.
func (s TaskStore) CountPending(ctx context.Context) (int64, error) {
	return s.Count(ctx)
}
