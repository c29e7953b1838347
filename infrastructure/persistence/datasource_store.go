package persistence

import (
	"context"
	"fmt"

	"github.com/piimap/piimap/domain/scan"
	"github.com/piimap/piimap/internal/database"
	"gorm.io/gorm"
)

// DataSourceStore implements scan.DataSourceStore using GORM.
type DataSourceStore struct {
	database.Repository[scan.DataSource, DataSourceModel]
}

// NewDataSourceStore creates a new DataSourceStore.
func NewDataSourceStore(db database.Database) DataSourceStore {
	return DataSourceStore{
		Repository: database.NewRepository[scan.DataSource, DataSourceModel](db, DataSourceMapper{}, "datasource"),
	}
}

// Save creates or updates a datasource.
func (s DataSourceStore) Save(ctx context.Context, ds scan.DataSource) (scan.DataSource, error) {
	model := s.Mapper().ToModel(ds)

	var result *gorm.DB
	if ds.ID() == 0 {
		result = s.DB(ctx).Create(&model)
	} else {
		result = s.DB(ctx).Save(&model)
	}

	if result.Error != nil {
		return scan.DataSource{}, fmt.Errorf("save datasource: %w", result.Error)
	}
	return s.Mapper().ToDomain(model), nil
}

// Delete removes a datasource by ID.
func (s DataSourceStore) Delete(ctx context.Context, id int64) error {
	result := s.DB(ctx).Delete(&DataSourceModel{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete datasource: %w", result.Error)
	}
	return nil
}
