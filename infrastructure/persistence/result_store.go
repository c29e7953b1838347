package persistence

import (
	"context"
	"fmt"

	"github.com/piimap/piimap/domain/scan"
	"github.com/piimap/piimap/internal/database"
	"gorm.io/gorm"
)

// ResultStore implements scan.ResultStore using GORM.
type ResultStore struct {
	db database.Database
	database.Repository[scan.Result, ScanResultModel]
}

// NewResultStore creates a new ResultStore.
func NewResultStore(db database.Database) ResultStore {
	return ResultStore{
		db:         db,
		Repository: database.NewRepository[scan.Result, ScanResultModel](db, ScanResultMapper{}, "scan result"),
	}
}

// Save creates or updates a scan result.
func (s ResultStore) Save(ctx context.Context, r scan.Result) (scan.Result, error) {
	model := s.Mapper().ToModel(r)

	var result *gorm.DB
	if r.ID() == 0 {
		result = s.DB(ctx).Create(&model)
	} else {
		result = s.DB(ctx).Save(&model)
	}

	if result.Error != nil {
		return scan.Result{}, fmt.Errorf("save scan result: %w", result.Error)
	}
	return s.Mapper().ToDomain(model), nil
}

// ReplaceContainer swaps the persisted snapshot for one container: prior
// rows for (datasource, container) are deleted and the new rows inserted in
// a single transaction. A failure leaves the prior snapshot intact.
func (s ResultStore) ReplaceContainer(ctx context.Context, dataSourceID int64, container string, results []scan.Result) error {
	models := make([]ScanResultModel, 0, len(results))
	for _, r := range results {
		models = append(models, s.Mapper().ToModel(r))
	}

	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.
			Where("datasource_id = ? AND container = ?", dataSourceID, container).
			Delete(&ScanResultModel{}).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return tx.Create(&models).Error
	})
	if err != nil {
		return fmt.Errorf("replace container %q results: %w", container, err)
	}
	return nil
}

// FindByDataSource returns a datasource's results, newest detections first.
func (s ResultStore) FindByDataSource(ctx context.Context, dataSourceID int64) ([]scan.Result, error) {
	var models []ScanResultModel
	result := s.DB(ctx).
		Where("datasource_id = ?", dataSourceID).
		Order("detected_at DESC").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("find scan results: %w", result.Error)
	}

	results := make([]scan.Result, len(models))
	for i, model := range models {
		results[i] = s.Mapper().ToDomain(model)
	}
	return results, nil
}

// DeleteByDataSource removes all results for a datasource.
func (s ResultStore) DeleteByDataSource(ctx context.Context, dataSourceID int64) error {
	result := s.DB(ctx).
		Where("datasource_id = ?", dataSourceID).
		Delete(&ScanResultModel{})
	if result.Error != nil {
		return fmt.Errorf("delete scan results: %w", result.Error)
	}
	return nil
}
