package persistence

import "time"

// RuleModel is the database model for recognition rules.
type RuleModel struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	Name            string `gorm:"uniqueIndex;not null"`
	Kind            string `gorm:"index;not null"`
	EntityType      string `gorm:"index"`
	Pattern         string
	Values          string `gorm:"type:text"`
	Score           float64
	ContextKeywords string `gorm:"type:text"`
	Enabled         bool   `gorm:"index;default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName returns the database table name.
func (RuleModel) TableName() string { return "rules" }

// DataSourceModel is the database model for registered datasources.
type DataSourceModel struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	Name           string `gorm:"uniqueIndex;not null"`
	TargetType     string `gorm:"index;not null"`
	Locator        string `gorm:"not null"`
	Scope          string
	ScheduleSecs   int64
	Tags           string `gorm:"type:text"`
	Status         string `gorm:"index"`
	LastMetadataAt *time.Time
	LastScannedAt  *time.Time `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName returns the database table name.
func (DataSourceModel) TableName() string { return "datasources" }

// ScanResultModel is the database model for aggregated scan results.
type ScanResultModel struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	DataSourceID  int64  `gorm:"column:datasource_id;index:idx_results_source_container;not null"`
	Container     string `gorm:"index:idx_results_source_container;not null"`
	Field         string `gorm:"not null"`
	EntityType    string `gorm:"index;not null"`
	Count         int
	AvgConfidence float64
	Tier          string
	Samples       string `gorm:"type:text"`
	DetectedAt    time.Time
}

// TableName returns the database table name.
func (ScanResultModel) TableName() string { return "scan_results" }

// ChangeEventModel is the database model for change-audit events.
type ChangeEventModel struct {
	ID           string `gorm:"primaryKey"`
	DataSourceID int64  `gorm:"column:datasource_id;index;not null"`
	Container    string `gorm:"index;not null"`
	Field        string
	EntityType   string
	RowID        string
	OldMasked    string
	NewMasked    string
	DetectedAt   time.Time `gorm:"index"`
}

// TableName returns the database table name.
func (ChangeEventModel) TableName() string { return "change_events" }

// TaskModel is the database model for queued tasks.
type TaskModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	DedupKey  string `gorm:"uniqueIndex:idx_tasks_dedup_key;not null"`
	Operation string `gorm:"index;not null"`
	Priority  int    `gorm:"index"`
	Payload   string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the database table name.
func (TaskModel) TableName() string { return "tasks" }

// TaskStatusModel is the database model for operation progress tracking.
type TaskStatusModel struct {
	ID            string `gorm:"primaryKey"`
	State         string `gorm:"index"`
	Operation     string `gorm:"index"`
	Message       string
	Total         int
	Current       int
	ErrorMessage  string
	ParentID      *string `gorm:"index"`
	TrackableID   int64   `gorm:"index:idx_task_status_trackable"`
	TrackableType string  `gorm:"index:idx_task_status_trackable"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName returns the database table name.
func (TaskStatusModel) TableName() string { return "task_status" }
