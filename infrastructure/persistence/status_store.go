package persistence

import (
	"context"
	"fmt"

	"github.com/piimap/piimap/domain/task"
	"github.com/piimap/piimap/internal/database"
	"gorm.io/gorm/clause"
)

// StatusStore implements task.StatusStore using GORM.
type StatusStore struct {
	database.Repository[task.Status, TaskStatusModel]
}

// NewStatusStore creates a new StatusStore.
func NewStatusStore(db database.Database) StatusStore {
	return StatusStore{
		Repository: database.NewRepository[task.Status, TaskStatusModel](db, TaskStatusMapper{}, "task status"),
	}
}

// Save upserts a status row by its deterministic ID.
func (s StatusStore) Save(ctx context.Context, status task.Status) (task.Status, error) {
	model := s.Mapper().ToModel(status)

	result := s.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&model)
	if result.Error != nil {
		return task.Status{}, fmt.Errorf("save task status: %w", result.Error)
	}
	return s.Mapper().ToDomain(model), nil
}

// Find returns the statuses for a trackable entity, oldest first.
func (s StatusStore) Find(ctx context.Context, trackableType task.TrackableType, trackableID int64) ([]task.Status, error) {
	var models []TaskStatusModel
	result := s.DB(ctx).
		Where("trackable_type = ? AND trackable_id = ?", trackableType, trackableID).
		Order("created_at ASC").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("find task statuses: %w", result.Error)
	}

	statuses := make([]task.Status, len(models))
	for i, model := range models {
		statuses[i] = s.Mapper().ToDomain(model)
	}
	return statuses, nil
}

// Delete removes all statuses for a trackable entity.
func (s StatusStore) Delete(ctx context.Context, trackableType task.TrackableType, trackableID int64) error {
	result := s.DB(ctx).
		Where("trackable_type = ? AND trackable_id = ?", trackableType, trackableID).
		Delete(&TaskStatusModel{})
	if result.Error != nil {
		return fmt.Errorf("delete task statuses: %w", result.Error)
	}
	return nil
}
