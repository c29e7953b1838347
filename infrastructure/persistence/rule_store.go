package persistence

import (
	"context"
	"fmt"

	"github.com/piimap/piimap/domain/repository"
	"github.com/piimap/piimap/domain/rule"
	"github.com/piimap/piimap/internal/database"
	"gorm.io/gorm"
)

// RuleStore implements rule.Store using GORM.
type RuleStore struct {
	database.Repository[rule.Rule, RuleModel]
}

// NewRuleStore creates a new RuleStore.
func NewRuleStore(db database.Database) RuleStore {
	return RuleStore{
		Repository: database.NewRepository[rule.Rule, RuleModel](db, RuleMapper{}, "rule"),
	}
}

// Save creates or updates a rule.
func (s RuleStore) Save(ctx context.Context, r rule.Rule) (rule.Rule, error) {
	model := s.Mapper().ToModel(r)

	var result *gorm.DB
	if r.ID() == 0 {
		result = s.DB(ctx).Create(&model)
	} else {
		result = s.DB(ctx).Save(&model)
	}

	if result.Error != nil {
		return rule.Rule{}, fmt.Errorf("save rule: %w", result.Error)
	}
	return s.Mapper().ToDomain(model), nil
}

// ListActive returns all enabled rules.
func (s RuleStore) ListActive(ctx context.Context) ([]rule.Rule, error) {
	return s.Find(ctx, repository.WithEnabled())
}

// Delete removes a rule by ID.
func (s RuleStore) Delete(ctx context.Context, id int64) error {
	result := s.DB(ctx).Delete(&RuleModel{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete rule: %w", result.Error)
	}
	return nil
}
