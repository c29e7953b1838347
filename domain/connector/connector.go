// Package connector defines the capability interface every datasource
// target implements, plus the registry that selects an implementation by
// target type.
package connector

import (
	"context"
	"fmt"
	"time"
)

// TargetType enumerates the supported datasource targets.
type TargetType string

// TargetType values.
const (
	TargetDatabase    TargetType = "database"
	TargetObjectStore TargetType = "object_store"
	TargetDocument    TargetType = "document"
)

// ParseTargetType parses a target type string.
func ParseTargetType(s string) (TargetType, error) {
	switch TargetType(s) {
	case TargetDatabase, TargetObjectStore, TargetDocument:
		return TargetType(s), nil
	}
	return "", fmt.Errorf("unknown target type %q", s)
}

// String returns the string representation of the target type.
func (t TargetType) String() string {
	return string(t)
}

// ContainerMetadata describes one container (table, bucket, file) found
// during inventory.
type ContainerMetadata struct {
	container  string
	fields     []string
	approxSize int64
}

// NewContainerMetadata creates a ContainerMetadata.
func NewContainerMetadata(container string, fields []string, approxSize int64) ContainerMetadata {
	f := make([]string, len(fields))
	copy(f, fields)
	return ContainerMetadata{container: container, fields: f, approxSize: approxSize}
}

// Container returns the container name.
func (m ContainerMetadata) Container() string { return m.container }

// Fields returns the field names within the container.
func (m ContainerMetadata) Fields() []string {
	result := make([]string, len(m.fields))
	copy(result, m.fields)
	return result
}

// ApproxSize returns the approximate record count, or 0 if unknown.
func (m ContainerMetadata) ApproxSize() int64 { return m.approxSize }

// Record is one scannable value with its coordinates.
type Record struct {
	container string
	field     string
	value     string
	rowID     string
}

// NewRecord creates a Record.
func NewRecord(container, field, value, rowID string) Record {
	return Record{container: container, field: field, value: value, rowID: rowID}
}

// Container returns the record's container.
func (r Record) Container() string { return r.container }

// Field returns the record's field name.
func (r Record) Field() string { return r.field }

// Value returns the record's value as text.
func (r Record) Value() string { return r.value }

// RowID returns the row identifier, if the target exposes one.
func (r Record) RowID() string { return r.rowID }

// Stream yields records incrementally in batches so a container is never
// fully materialized in memory.
type Stream interface {
	// Next returns the next batch of records. An empty batch with a nil
	// error means the stream is exhausted.
	Next(ctx context.Context) ([]Record, error)

	// Close releases the stream's resources.
	Close() error
}

// Connector is the capability interface implemented once per target type.
type Connector interface {
	// TargetType returns the target type this connector serves.
	TargetType() TargetType

	// TestConnection verifies the locator is reachable.
	TestConnection(ctx context.Context, locator string) error

	// SchemaMetadata lists the containers and fields behind the locator.
	SchemaMetadata(ctx context.Context, locator string) ([]ContainerMetadata, error)

	// ScanStream opens a record stream over one container. A limit of 0
	// means unbounded; batchSize bounds each Next call.
	ScanStream(ctx context.Context, locator, container string, batchSize, limit int) (Stream, error)
}

// ChangeCapable is the optional capability for targets that can answer
// "changed since" queries. Callers type-assert for it once per scan.
type ChangeCapable interface {
	// Changes opens a record stream over rows changed since the given time.
	Changes(ctx context.Context, locator, container string, since time.Time, batchSize int) (Stream, error)
}
