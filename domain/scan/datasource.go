package scan

import (
	"slices"
	"time"

	"github.com/piimap/piimap/domain/connector"
)

// Status is the lifecycle status of a datasource.
type Status string

// Status values.
const (
	StatusPending  Status = "pending"
	StatusScanning Status = "scanning"
	StatusScanned  Status = "scanned"
	StatusFailed   Status = "failed"
)

// Tags applied by scans.
const (
	TagPII          = "PII"
	TagPIISensitive = "PII_SENSITIVE"
)

// DataSource is a registered scan target and its accumulated scan state.
type DataSource struct {
	id             int64
	name           string
	targetType     connector.TargetType
	locator        string
	scope          Scope
	schedule       time.Duration
	tags           []string
	status         Status
	lastMetadataAt time.Time
	lastDataAt     time.Time
	createdAt      time.Time
	updatedAt      time.Time
}

// NewDataSource creates a DataSource with the given identity. The scope
// defaults to full and the schedule to none.
func NewDataSource(name string, targetType connector.TargetType, locator string) DataSource {
	return DataSource{
		name:       name,
		targetType: targetType,
		locator:    locator,
		scope:      ScopeFull,
		status:     StatusPending,
	}
}

// ReconstructDataSource creates a DataSource with all fields (used by the store).
func ReconstructDataSource(
	id int64,
	name string,
	targetType connector.TargetType,
	locator string,
	scope Scope,
	schedule time.Duration,
	tags []string,
	status Status,
	lastMetadataAt, lastDataAt time.Time,
	createdAt, updatedAt time.Time,
) DataSource {
	return DataSource{
		id:             id,
		name:           name,
		targetType:     targetType,
		locator:        locator,
		scope:          scope,
		schedule:       schedule,
		tags:           copyTags(tags),
		status:         status,
		lastMetadataAt: lastMetadataAt,
		lastDataAt:     lastDataAt,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// ID returns the datasource ID.
func (d DataSource) ID() int64 { return d.id }

// Name returns the datasource name.
func (d DataSource) Name() string { return d.name }

// TargetType returns the connector target type.
func (d DataSource) TargetType() connector.TargetType { return d.targetType }

// Locator returns the connection locator (URL, path).
func (d DataSource) Locator() string { return d.locator }

// Scope returns the configured scan scope.
func (d DataSource) Scope() Scope { return d.scope }

// Schedule returns the rescan interval, or 0 when rescanning is disabled.
func (d DataSource) Schedule() time.Duration { return d.schedule }

// Tags returns the derived tag set.
func (d DataSource) Tags() []string { return copyTags(d.tags) }

// HasTag reports whether the datasource carries the given tag.
func (d DataSource) HasTag(tag string) bool {
	return slices.Contains(d.tags, tag)
}

// Status returns the lifecycle status.
func (d DataSource) Status() Status { return d.status }

// LastMetadataAt returns when inventory last completed (zero if never).
func (d DataSource) LastMetadataAt() time.Time { return d.lastMetadataAt }

// LastDataAt returns when a data scan last completed (zero if never).
func (d DataSource) LastDataAt() time.Time { return d.lastDataAt }

// CreatedAt returns when the datasource was registered.
func (d DataSource) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns when the datasource was last updated.
func (d DataSource) UpdatedAt() time.Time { return d.updatedAt }

// Inventoried reports whether inventory has ever completed.
func (d DataSource) Inventoried() bool {
	return !d.lastMetadataAt.IsZero()
}

// WithID returns a copy with the given ID.
func (d DataSource) WithID(id int64) DataSource {
	d.id = id
	return d
}

// WithScope returns a copy with the given configured scope.
func (d DataSource) WithScope(scope Scope) DataSource {
	d.scope = scope
	return d
}

// WithSchedule returns a copy with the given rescan interval.
func (d DataSource) WithSchedule(schedule time.Duration) DataSource {
	d.schedule = schedule
	return d
}

// WithStatus returns a copy with the given status.
func (d DataSource) WithStatus(status Status) DataSource {
	d.status = status
	return d
}

// WithTags returns a copy with the given tags merged in. Tags are
// additive within a scan cycle; existing tags are never removed here.
func (d DataSource) WithTags(tags ...string) DataSource {
	merged := copyTags(d.tags)
	for _, t := range tags {
		if t != "" && !slices.Contains(merged, t) {
			merged = append(merged, t)
		}
	}
	d.tags = merged
	return d
}

// WithLastMetadataAt returns a copy with the inventory timestamp set.
func (d DataSource) WithLastMetadataAt(t time.Time) DataSource {
	d.lastMetadataAt = t
	return d
}

// WithLastDataAt returns a copy with the data-scan timestamp set.
func (d DataSource) WithLastDataAt(t time.Time) DataSource {
	d.lastDataAt = t
	return d
}

// WithTimestamps returns a copy with the given timestamps.
func (d DataSource) WithTimestamps(createdAt, updatedAt time.Time) DataSource {
	d.createdAt = createdAt
	d.updatedAt = updatedAt
	return d
}

func copyTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	result := make([]string, len(tags))
	copy(result, tags)
	return result
}
