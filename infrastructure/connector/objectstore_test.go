package connectorimpl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piimap/piimap/domain/connector"
	"github.com/piimap/piimap/domain/document"
	"github.com/piimap/piimap/infrastructure/extractor"
)

func testExtractors() []document.TextExtractor {
	return []document.TextExtractor{extractor.NewCSV(), extractor.NewPlainText()}
}

// seedObjectStore lays out a bucket directory with a CSV export, a text
// note, and an unsupported binary.
func seedObjectStore(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	bucket := filepath.Join(root, "hr")
	require.NoError(t, os.Mkdir(bucket, 0o755))

	writeFile := func(path, content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	writeFile(filepath.Join(bucket, "employees.csv"), "name,email\nBudi,budi@example.com\nSiti,siti@example.com\n")
	writeFile(filepath.Join(bucket, "notes.txt"), "Budi's phone is 0812345678.\n")
	writeFile(filepath.Join(bucket, "backup.bin"), "\x00\x01\x02")
	writeFile(filepath.Join(root, "readme.txt"), "Shared drive for HR exports.\n")
	return root
}

func TestObjectStore_TestConnection(t *testing.T) {
	store := NewObjectStore(testExtractors(), connectorTestLogger())
	root := seedObjectStore(t)

	assert.NoError(t, store.TestConnection(context.Background(), root))
	assert.NoError(t, store.TestConnection(context.Background(), "file://"+root))
	assert.Error(t, store.TestConnection(context.Background(), filepath.Join(root, "missing")))
	assert.Error(t, store.TestConnection(context.Background(), filepath.Join(root, "readme.txt")))
}

func TestObjectStore_SchemaMetadata(t *testing.T) {
	store := NewObjectStore(testExtractors(), connectorTestLogger())
	root := seedObjectStore(t)

	metadata, err := store.SchemaMetadata(context.Background(), root)
	require.NoError(t, err)

	byName := make(map[string]connector.ContainerMetadata, len(metadata))
	for _, m := range metadata {
		byName[m.Container()] = m
	}

	hr, ok := byName["hr"]
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"employees.csv", "notes.txt", "backup.bin"}, hr.Fields())

	// Files directly under the root form their own bucket.
	rootObjects, ok := byName["."]
	require.True(t, ok)
	assert.Equal(t, []string{"readme.txt"}, rootObjects.Fields())
}

func TestObjectStore_ScanStream(t *testing.T) {
	store := NewObjectStore(testExtractors(), connectorTestLogger())
	root := seedObjectStore(t)

	stream, err := store.ScanStream(context.Background(), root, "hr", 10, 0)
	require.NoError(t, err)
	records := drainStream(t, stream)

	byField := make(map[string][]connector.Record)
	for _, r := range records {
		assert.Equal(t, "hr", r.Container())
		byField[r.Field()] = append(byField[r.Field()], r)
	}

	// One record per CSV data row, one per text paragraph; the binary is
	// skipped because no extractor supports it.
	require.Len(t, byField["employees.csv"], 2)
	assert.Len(t, byField["notes.txt"], 1)
	assert.Empty(t, byField["backup.bin"])

	assert.Equal(t, "name: Budi, email: budi@example.com", byField["employees.csv"][0].Value())
	assert.Equal(t, "row 2", byField["employees.csv"][0].RowID())
}

func TestObjectStore_ScanStreamHonorsLimit(t *testing.T) {
	store := NewObjectStore(testExtractors(), connectorTestLogger())
	root := seedObjectStore(t)

	stream, err := store.ScanStream(context.Background(), root, "hr", 10, 1)
	require.NoError(t, err)
	records := drainStream(t, stream)
	assert.Len(t, records, 1)
}

func TestObjectStore_Changes(t *testing.T) {
	store := NewObjectStore(testExtractors(), connectorTestLogger())
	root := seedObjectStore(t)

	// Nothing modified since the future.
	stream, err := store.Changes(context.Background(), root, "hr", time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, drainStream(t, stream))

	// Everything modified since the distant past.
	stream, err = store.Changes(context.Background(), root, "hr", time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.NotEmpty(t, drainStream(t, stream))
}
