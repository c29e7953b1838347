package scan

import (
	"time"

	"github.com/piimap/piimap/domain/recognition"
)

// ChangeEvent records a PII-bearing value that changed between scans.
// Change events are audit history; they never overwrite the main result
// snapshot.
type ChangeEvent struct {
	id           string
	dataSourceID int64
	container    string
	field        string
	entityType   recognition.EntityType
	rowID        string
	oldMasked    string
	newMasked    string
	detectedAt   time.Time
}

// NewChangeEvent creates a ChangeEvent. Old and new values must already be
// masked.
func NewChangeEvent(
	id string,
	dataSourceID int64,
	container, field string,
	entityType recognition.EntityType,
	rowID, oldMasked, newMasked string,
	detectedAt time.Time,
) ChangeEvent {
	return ChangeEvent{
		id:           id,
		dataSourceID: dataSourceID,
		container:    container,
		field:        field,
		entityType:   entityType,
		rowID:        rowID,
		oldMasked:    oldMasked,
		newMasked:    newMasked,
		detectedAt:   detectedAt,
	}
}

// ID returns the event ID.
func (c ChangeEvent) ID() string { return c.id }

// DataSourceID returns the owning datasource ID.
func (c ChangeEvent) DataSourceID() int64 { return c.dataSourceID }

// Container returns the container the change came from.
func (c ChangeEvent) Container() string { return c.container }

// Field returns the changed field.
func (c ChangeEvent) Field() string { return c.field }

// EntityType returns the entity type detected in the new value.
func (c ChangeEvent) EntityType() recognition.EntityType { return c.entityType }

// RowID returns the changed row's identifier, if known.
func (c ChangeEvent) RowID() string { return c.rowID }

// OldMasked returns the masked previous value (empty if unknown).
func (c ChangeEvent) OldMasked() string { return c.oldMasked }

// NewMasked returns the masked current value.
func (c ChangeEvent) NewMasked() string { return c.newMasked }

// DetectedAt returns when the change was observed.
func (c ChangeEvent) DetectedAt() time.Time { return c.detectedAt }
