package scan

import (
	"time"

	"github.com/piimap/piimap/domain/recognition"
)

// Result is the persisted aggregate for one (container, field, entity type)
// triple within a scan cycle. Results are current-state snapshots: a
// rescan of a container replaces all of that container's rows.
type Result struct {
	id            int64
	dataSourceID  int64
	container     string
	field         string
	entityType    recognition.EntityType
	count         int
	avgConfidence float64
	tier          recognition.Tier
	samples       []string
	detectedAt    time.Time
}

// NewResult creates a Result. Samples must already be masked; raw values
// are never persisted.
func NewResult(
	dataSourceID int64,
	container, field string,
	entityType recognition.EntityType,
	count int,
	avgConfidence float64,
	tier recognition.Tier,
	maskedSamples []string,
	detectedAt time.Time,
) Result {
	return Result{
		dataSourceID:  dataSourceID,
		container:     container,
		field:         field,
		entityType:    entityType,
		count:         count,
		avgConfidence: avgConfidence,
		tier:          tier,
		samples:       copyTags(maskedSamples),
		detectedAt:    detectedAt,
	}
}

// ID returns the result ID.
func (r Result) ID() int64 { return r.id }

// DataSourceID returns the owning datasource ID.
func (r Result) DataSourceID() int64 { return r.dataSourceID }

// Container returns the container the finding came from.
func (r Result) Container() string { return r.container }

// Field returns the field the finding came from.
func (r Result) Field() string { return r.field }

// EntityType returns the detected entity type.
func (r Result) EntityType() recognition.EntityType { return r.entityType }

// Count returns how many values matched.
func (r Result) Count() int { return r.count }

// AvgConfidence returns the mean detection score across matches.
func (r Result) AvgConfidence() float64 { return r.avgConfidence }

// Tier returns the strictest sensitivity tier seen.
func (r Result) Tier() recognition.Tier { return r.tier }

// Samples returns the bounded set of masked sample values.
func (r Result) Samples() []string { return copyTags(r.samples) }

// DetectedAt returns when the aggregate was produced.
func (r Result) DetectedAt() time.Time { return r.detectedAt }

// WithID returns a copy with the given ID.
func (r Result) WithID(id int64) Result {
	r.id = id
	return r
}
