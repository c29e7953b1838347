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
)

// seedDocumentTree lays out a nested document directory.
func seedDocumentTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "reports"), 0o755))

	writeFile := func(path, content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	writeFile(filepath.Join(root, "reports", "q1.txt"), "Salary report for Budi Santoso.\n\nContact: budi@example.com\n")
	writeFile(filepath.Join(root, "customers.csv"), "name,email\nSiti,siti@example.com\n")
	writeFile(filepath.Join(root, "logo.png"), "not really a png")
	return root
}

func TestDocumentTree_SchemaMetadata(t *testing.T) {
	tree := NewDocumentTree(testExtractors(), connectorTestLogger())
	root := seedDocumentTree(t)

	metadata, err := tree.SchemaMetadata(context.Background(), root)
	require.NoError(t, err)

	byName := make(map[string]connector.ContainerMetadata, len(metadata))
	for _, m := range metadata {
		byName[m.Container()] = m
	}

	// Unsupported files are not inventoried.
	require.Len(t, byName, 2)

	report, ok := byName["reports/q1.txt"]
	require.True(t, ok)
	assert.Equal(t, []string{"content"}, report.Fields())
	assert.NotZero(t, report.ApproxSize())

	_, ok = byName["customers.csv"]
	assert.True(t, ok)
}

func TestDocumentTree_ScanStream(t *testing.T) {
	tree := NewDocumentTree(testExtractors(), connectorTestLogger())
	root := seedDocumentTree(t)

	stream, err := tree.ScanStream(context.Background(), root, "reports/q1.txt", 10, 0)
	require.NoError(t, err)
	records := drainStream(t, stream)

	require.Len(t, records, 2)
	assert.Equal(t, "reports/q1.txt", records[0].Container())
	assert.Equal(t, "content", records[0].Field())
	assert.Equal(t, "Salary report for Budi Santoso.", records[0].Value())
	assert.Equal(t, "line 1", records[0].RowID())
	assert.Equal(t, "line 3", records[1].RowID())
}

func TestDocumentTree_ScanStreamHonorsLimit(t *testing.T) {
	tree := NewDocumentTree(testExtractors(), connectorTestLogger())
	root := seedDocumentTree(t)

	stream, err := tree.ScanStream(context.Background(), root, "reports/q1.txt", 10, 1)
	require.NoError(t, err)
	assert.Len(t, drainStream(t, stream), 1)
}

func TestDocumentTree_ScanStreamUnsupportedDocument(t *testing.T) {
	tree := NewDocumentTree(testExtractors(), connectorTestLogger())
	root := seedDocumentTree(t)

	_, err := tree.ScanStream(context.Background(), root, "logo.png", 10, 0)
	assert.Error(t, err)
}

func TestDocumentTree_Changes(t *testing.T) {
	tree := NewDocumentTree(testExtractors(), connectorTestLogger())
	root := seedDocumentTree(t)

	// Untouched since the future: no chunks.
	stream, err := tree.Changes(context.Background(), root, "customers.csv", time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, drainStream(t, stream))

	stream, err = tree.Changes(context.Background(), root, "customers.csv", time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	records := drainStream(t, stream)
	require.Len(t, records, 1)
	assert.Equal(t, "name: Siti, email: siti@example.com", records[0].Value())
}

func TestDocumentTree_TestConnection(t *testing.T) {
	tree := NewDocumentTree(testExtractors(), connectorTestLogger())
	root := seedDocumentTree(t)

	assert.NoError(t, tree.TestConnection(context.Background(), root))
	assert.Error(t, tree.TestConnection(context.Background(), filepath.Join(root, "missing")))
}
