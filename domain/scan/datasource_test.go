package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/piimap/piimap/domain/connector"
)

func TestNewDataSourceDefaults(t *testing.T) {
	ds := NewDataSource("crm", connector.TargetDatabase, "postgres://crm")

	assert.Zero(t, ds.ID())
	assert.Equal(t, StatusPending, ds.Status())
	assert.False(t, ds.Inventoried())
	assert.True(t, ds.LastDataAt().IsZero())
	assert.Empty(t, ds.Tags())
	assert.Zero(t, ds.Schedule())
}

func TestDataSourceWithTagsIsAdditive(t *testing.T) {
	ds := NewDataSource("crm", connector.TargetDatabase, "postgres://crm").
		WithTags(TagPII)

	ds = ds.WithTags(TagPIISensitive, TagPII, "")

	assert.Equal(t, []string{TagPII, TagPIISensitive}, ds.Tags())
	assert.True(t, ds.HasTag(TagPII))
	assert.True(t, ds.HasTag(TagPIISensitive))
	assert.False(t, ds.HasTag("random"))
}

func TestDataSourceValueSemantics(t *testing.T) {
	original := NewDataSource("crm", connector.TargetDatabase, "postgres://crm")

	modified := original.
		WithStatus(StatusScanning).
		WithScope(ScopeMetadata).
		WithLastMetadataAt(time.Now()).
		WithTags(TagPII)

	assert.Equal(t, StatusPending, original.Status())
	assert.Empty(t, original.Tags())
	assert.False(t, original.Inventoried())

	assert.Equal(t, StatusScanning, modified.Status())
	assert.Equal(t, ScopeMetadata, modified.Scope())
	assert.True(t, modified.Inventoried())
}

func TestDataSourceTagsAreCopied(t *testing.T) {
	ds := NewDataSource("crm", connector.TargetDatabase, "postgres://crm").
		WithTags(TagPII)

	tags := ds.Tags()
	tags[0] = "mutated"

	assert.Equal(t, []string{TagPII}, ds.Tags())
}
