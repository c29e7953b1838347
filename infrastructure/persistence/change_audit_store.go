package persistence

import (
	"context"
	"fmt"

	"github.com/piimap/piimap/domain/repository"
	"github.com/piimap/piimap/domain/scan"
	"github.com/piimap/piimap/internal/database"
)

// ChangeAuditStore implements scan.ChangeAuditStore using GORM. Events are
// append-only.
type ChangeAuditStore struct {
	database.Repository[scan.ChangeEvent, ChangeEventModel]
}

// NewChangeAuditStore creates a new ChangeAuditStore.
func NewChangeAuditStore(db database.Database) ChangeAuditStore {
	return ChangeAuditStore{
		Repository: database.NewRepository[scan.ChangeEvent, ChangeEventModel](db, ChangeEventMapper{}, "change event"),
	}
}

// Append inserts change events. Existing events are never updated.
func (s ChangeAuditStore) Append(ctx context.Context, events []scan.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}

	models := make([]ChangeEventModel, 0, len(events))
	for _, e := range events {
		models = append(models, s.Mapper().ToModel(e))
	}

	if result := s.DB(ctx).Create(&models); result.Error != nil {
		return fmt.Errorf("append change events: %w", result.Error)
	}
	return nil
}

// Find returns change events matching the given options.
func (s ChangeAuditStore) Find(ctx context.Context, opts ...repository.Option) ([]scan.ChangeEvent, error) {
	return s.Repository.Find(ctx, opts...)
}
