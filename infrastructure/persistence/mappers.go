package persistence

import (
	"encoding/json"
	"time"

	"github.com/piimap/piimap/domain/connector"
	"github.com/piimap/piimap/domain/recognition"
	"github.com/piimap/piimap/domain/rule"
	"github.com/piimap/piimap/domain/scan"
	"github.com/piimap/piimap/domain/task"
)

// RuleMapper maps between domain Rule and persistence RuleModel.
type RuleMapper struct{}

// ToDomain converts a RuleModel to a domain Rule.
func (m RuleMapper) ToDomain(e RuleModel) rule.Rule {
	return rule.ReconstructRule(
		e.ID,
		e.Name,
		rule.Kind(e.Kind),
		recognition.EntityType(e.EntityType),
		e.Pattern,
		stringsFromJSON(e.Values),
		e.Score,
		stringsFromJSON(e.ContextKeywords),
		e.Enabled,
		e.CreatedAt,
		e.UpdatedAt,
	)
}

// ToModel converts a domain Rule to a RuleModel.
func (m RuleMapper) ToModel(r rule.Rule) RuleModel {
	return RuleModel{
		ID:              r.ID(),
		Name:            r.Name(),
		Kind:            string(r.Kind()),
		EntityType:      string(r.EntityType()),
		Pattern:         r.Pattern(),
		Values:          stringsToJSON(r.Values()),
		Score:           r.Score(),
		ContextKeywords: stringsToJSON(r.ContextKeywords()),
		Enabled:         r.Enabled(),
		CreatedAt:       r.CreatedAt(),
		UpdatedAt:       r.UpdatedAt(),
	}
}

// DataSourceMapper maps between domain DataSource and persistence DataSourceModel.
type DataSourceMapper struct{}

// ToDomain converts a DataSourceModel to a domain DataSource.
func (m DataSourceMapper) ToDomain(e DataSourceModel) scan.DataSource {
	var lastMetadataAt, lastScannedAt time.Time
	if e.LastMetadataAt != nil {
		lastMetadataAt = *e.LastMetadataAt
	}
	if e.LastScannedAt != nil {
		lastScannedAt = *e.LastScannedAt
	}

	return scan.ReconstructDataSource(
		e.ID,
		e.Name,
		connector.TargetType(e.TargetType),
		e.Locator,
		scan.Scope(e.Scope),
		time.Duration(e.ScheduleSecs)*time.Second,
		stringsFromJSON(e.Tags),
		scan.Status(e.Status),
		lastMetadataAt,
		lastScannedAt,
		e.CreatedAt,
		e.UpdatedAt,
	)
}

// ToModel converts a domain DataSource to a DataSourceModel.
func (m DataSourceMapper) ToModel(d scan.DataSource) DataSourceModel {
	var lastMetadataAt, lastScannedAt *time.Time
	if !d.LastMetadataAt().IsZero() {
		t := d.LastMetadataAt()
		lastMetadataAt = &t
	}
	if !d.LastDataAt().IsZero() {
		t := d.LastDataAt()
		lastScannedAt = &t
	}

	return DataSourceModel{
		ID:             d.ID(),
		Name:           d.Name(),
		TargetType:     string(d.TargetType()),
		Locator:        d.Locator(),
		Scope:          string(d.Scope()),
		ScheduleSecs:   int64(d.Schedule() / time.Second),
		Tags:           stringsToJSON(d.Tags()),
		Status:         string(d.Status()),
		LastMetadataAt: lastMetadataAt,
		LastScannedAt:  lastScannedAt,
		CreatedAt:      d.CreatedAt(),
		UpdatedAt:      d.UpdatedAt(),
	}
}

// ScanResultMapper maps between domain Result and persistence ScanResultModel.
type ScanResultMapper struct{}

// ToDomain converts a ScanResultModel to a domain Result.
func (m ScanResultMapper) ToDomain(e ScanResultModel) scan.Result {
	return scan.NewResult(
		e.DataSourceID,
		e.Container,
		e.Field,
		recognition.EntityType(e.EntityType),
		e.Count,
		e.AvgConfidence,
		recognition.Tier(e.Tier),
		stringsFromJSON(e.Samples),
		e.DetectedAt,
	).WithID(e.ID)
}

// ToModel converts a domain Result to a ScanResultModel.
func (m ScanResultMapper) ToModel(r scan.Result) ScanResultModel {
	return ScanResultModel{
		ID:            r.ID(),
		DataSourceID:  r.DataSourceID(),
		Container:     r.Container(),
		Field:         r.Field(),
		EntityType:    string(r.EntityType()),
		Count:         r.Count(),
		AvgConfidence: r.AvgConfidence(),
		Tier:          string(r.Tier()),
		Samples:       stringsToJSON(r.Samples()),
		DetectedAt:    r.DetectedAt(),
	}
}

// ChangeEventMapper maps between domain ChangeEvent and persistence ChangeEventModel.
type ChangeEventMapper struct{}

// ToDomain converts a ChangeEventModel to a domain ChangeEvent.
func (m ChangeEventMapper) ToDomain(e ChangeEventModel) scan.ChangeEvent {
	return scan.NewChangeEvent(
		e.ID,
		e.DataSourceID,
		e.Container,
		e.Field,
		recognition.EntityType(e.EntityType),
		e.RowID,
		e.OldMasked,
		e.NewMasked,
		e.DetectedAt,
	)
}

// ToModel converts a domain ChangeEvent to a ChangeEventModel.
func (m ChangeEventMapper) ToModel(c scan.ChangeEvent) ChangeEventModel {
	return ChangeEventModel{
		ID:           c.ID(),
		DataSourceID: c.DataSourceID(),
		Container:    c.Container(),
		Field:        c.Field(),
		EntityType:   string(c.EntityType()),
		RowID:        c.RowID(),
		OldMasked:    c.OldMasked(),
		NewMasked:    c.NewMasked(),
		DetectedAt:   c.DetectedAt(),
	}
}

// TaskMapper maps between domain Task and persistence TaskModel.
type TaskMapper struct{}

// ToDomain converts a TaskModel to a domain Task.
func (m TaskMapper) ToDomain(e TaskModel) task.Task {
	var payload map[string]any
	if e.Payload != "" {
		_ = json.Unmarshal([]byte(e.Payload), &payload)
	}
	return task.NewTaskWithID(e.ID, e.DedupKey, task.Operation(e.Operation), e.Priority, payload, e.CreatedAt, e.UpdatedAt)
}

// ToModel converts a domain Task to a TaskModel.
func (m TaskMapper) ToModel(t task.Task) TaskModel {
	payload, err := t.PayloadJSON()
	if err != nil {
		payload = []byte("{}")
	}
	return TaskModel{
		ID:        t.ID(),
		DedupKey:  t.DedupKey(),
		Operation: string(t.Operation()),
		Priority:  t.Priority(),
		Payload:   string(payload),
		CreatedAt: t.CreatedAt(),
		UpdatedAt: t.UpdatedAt(),
	}
}

// TaskStatusMapper maps between domain Status and persistence TaskStatusModel.
type TaskStatusMapper struct{}

// ToDomain converts a TaskStatusModel to a domain Status.
func (m TaskStatusMapper) ToDomain(e TaskStatusModel) task.Status {
	return task.NewStatusFull(
		e.ID,
		task.ReportingState(e.State),
		task.Operation(e.Operation),
		e.Message,
		e.CreatedAt,
		e.UpdatedAt,
		e.Total,
		e.Current,
		e.ErrorMessage,
		nil,
		e.TrackableID,
		task.TrackableType(e.TrackableType),
	)
}

// ToModel converts a domain Status to a TaskStatusModel.
func (m TaskStatusMapper) ToModel(s task.Status) TaskStatusModel {
	var parentID *string
	if s.Parent() != nil {
		id := s.Parent().ID()
		parentID = &id
	}
	return TaskStatusModel{
		ID:            s.ID(),
		State:         string(s.State()),
		Operation:     string(s.Operation()),
		Message:       s.Message(),
		Total:         s.Total(),
		Current:       s.Current(),
		ErrorMessage:  s.Error(),
		ParentID:      parentID,
		TrackableID:   s.TrackableID(),
		TrackableType: string(s.TrackableType()),
		CreatedAt:     s.CreatedAt(),
		UpdatedAt:     s.UpdatedAt(),
	}
}

func stringsToJSON(values []string) string {
	if len(values) == 0 {
		return ""
	}
	data, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(data)
}

func stringsFromJSON(data string) []string {
	if data == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil
	}
	return values
}
