package piimap_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piimap/piimap"
	"github.com/piimap/piimap/application/service"
	"github.com/piimap/piimap/domain/recognition"
	"github.com/piimap/piimap/domain/scan"
	"github.com/piimap/piimap/internal/database"
)

const testPollPeriod = 50 * time.Millisecond

func newTestClient(t *testing.T) *piimap.Client {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := piimap.New(
		piimap.WithSQLite(filepath.Join(t.TempDir(), "piimap.db")),
		piimap.WithDataDir(t.TempDir()),
		piimap.WithoutNER(),
		piimap.WithLogger(logger),
		piimap.WithWorkerPollPeriod(testPollPeriod),
	)
	require.NoError(t, err, "create client")
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

// createSourceDB builds a SQLite database with one PII-bearing table and
// one clean table, returning its locator URL.
func createSourceDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "source.db")
	url := "sqlite:///" + path

	db, err := database.NewDatabase(context.Background(), url)
	require.NoError(t, err, "open source database")
	defer func() { _ = db.Close() }()

	session := db.Session(context.Background())
	require.NoError(t, session.Exec(
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, full_name TEXT, email TEXT, nik TEXT)`,
	).Error)
	require.NoError(t, session.Exec(
		`CREATE TABLE logs (id INTEGER PRIMARY KEY, message TEXT)`,
	).Error)

	rows := []struct {
		name, email, nik string
	}{
		{"Budi Santoso", "budi.santoso@example.id", "3175021509900001"},
		{"Siti Rahayu", "siti.rahayu@example.id", "3275014107850002"},
		{"Agus Wijaya", "agus.wijaya@example.id", "3171030201780003"},
	}
	for i, row := range rows {
		require.NoError(t, session.Exec(
			`INSERT INTO customers (id, full_name, email, nik) VALUES (?, ?, ?, ?)`,
			i+1, row.name, row.email, row.nik,
		).Error)
	}
	require.NoError(t, session.Exec(
		`INSERT INTO logs (id, message) VALUES (1, 'startup complete'), (2, 'cache warmed')`,
	).Error)

	return url
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(testPollPeriod)
	}
	t.Fatal("condition not met before deadline")
}

func TestScanDataSourceEndToEnd(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	ds, created, err := client.DataSources.Add(ctx, &service.DataSourceAddParams{
		Name:       "crm",
		TargetType: "database",
		Locator:    createSourceDB(t),
	})
	require.NoError(t, err)
	require.True(t, created)

	waitFor(t, 30*time.Second, func() bool {
		results, err := client.DataSources.Results(ctx, ds.ID())
		return err == nil && len(results) > 0 && client.WorkerIdle()
	})

	results, err := client.DataSources.Results(ctx, ds.ID())
	require.NoError(t, err)

	foundEmail := false
	foundNIK := false
	for _, result := range results {
		if result.Container() == "customers" && result.Field() == "email" &&
			result.EntityType() == recognition.EntityEmail {
			foundEmail = true
			assert.Equal(t, 3, result.Count())
			for _, sample := range result.Samples() {
				assert.NotContains(t, sample, "budi.santoso", "samples must be masked")
				assert.Contains(t, sample, "***")
			}
		}
		if result.Container() == "customers" && result.Field() == "nik" &&
			result.EntityType() == recognition.EntityNationalID {
			foundNIK = true
			assert.Equal(t, recognition.TierSensitive, result.Tier())
		}
		assert.NotEqual(t, "logs", result.Container(), "clean table must have no findings")
	}
	assert.True(t, foundEmail, "expected email findings in customers.email")
	assert.True(t, foundNIK, "expected national id findings in customers.nik")

	// The datasource ends up tagged and marked as scanned.
	updated, err := client.DataSources.Get(ctx, ds.ID())
	require.NoError(t, err)
	assert.Contains(t, updated.Tags(), scan.TagPII)
	assert.False(t, updated.LastDataAt().IsZero())
}

func TestAddDataSourceIdempotent(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	params := &service.DataSourceAddParams{
		Name:       "crm",
		TargetType: "database",
		Locator:    createSourceDB(t),
	}

	first, created, err := client.DataSources.Add(ctx, params)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := client.DataSources.Add(ctx, params)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID(), second.ID())
}

func TestAddDataSourceUnreachable(t *testing.T) {
	client := newTestClient(t)

	_, _, err := client.DataSources.Add(context.Background(), &service.DataSourceAddParams{
		Name:       "missing",
		TargetType: "object_store",
		Locator:    filepath.Join(t.TempDir(), "does-not-exist"),
	})
	require.Error(t, err)

	var connErr *service.ConnectorError
	assert.ErrorAs(t, err, &connErr)
}

func TestObjectStoreScan(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	root := t.TempDir()
	bucket := filepath.Join(root, "exports")
	require.NoError(t, os.MkdirAll(bucket, 0o755))
	csv := "name,email\nBudi Santoso,budi.santoso@example.id\nSiti Rahayu,siti.rahayu@example.id\n"
	require.NoError(t, os.WriteFile(filepath.Join(bucket, "customers.csv"), []byte(csv), 0o644))

	ds, created, err := client.DataSources.Add(ctx, &service.DataSourceAddParams{
		Name:       "backup-bucket",
		TargetType: "object_store",
		Locator:    root,
	})
	require.NoError(t, err)
	require.True(t, created)

	waitFor(t, 30*time.Second, func() bool {
		results, err := client.DataSources.Results(ctx, ds.ID())
		return err == nil && len(results) > 0 && client.WorkerIdle()
	})

	results, err := client.DataSources.Results(ctx, ds.ID())
	require.NoError(t, err)

	foundEmail := false
	for _, result := range results {
		if result.Container() == "exports" && result.EntityType() == recognition.EntityEmail {
			foundEmail = true
			assert.Equal(t, "customers.csv", result.Field())
		}
	}
	assert.True(t, foundEmail, "expected email findings in bucket objects")
}

func TestDocumentScan(t *testing.T) {
	client := newTestClient(t)

	csv := "name,email,phone\nBudi Santoso,budi.santoso@example.id,081234567890\n"
	report, err := client.Documents.Scan(context.Background(), []byte(csv), "employees.csv")
	require.NoError(t, err)
	require.True(t, report.HasFindings())

	types := make([]recognition.EntityType, 0, len(report.Entities()))
	for _, summary := range report.Entities() {
		types = append(types, summary.EntityType())
		for _, sample := range summary.Samples() {
			assert.NotContains(t, sample, "budi.santoso@example.id")
		}
	}
	assert.Contains(t, types, recognition.EntityEmail)
	assert.Contains(t, types, recognition.EntityPhone)
}

func TestDeleteDataSourceRemovesResults(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	ds, _, err := client.DataSources.Add(ctx, &service.DataSourceAddParams{
		Name:       "crm",
		TargetType: "database",
		Locator:    createSourceDB(t),
	})
	require.NoError(t, err)

	waitFor(t, 30*time.Second, func() bool {
		results, err := client.DataSources.Results(ctx, ds.ID())
		return err == nil && len(results) > 0 && client.WorkerIdle()
	})

	require.NoError(t, client.DataSources.Delete(ctx, ds.ID()))

	results, err := client.DataSources.Results(ctx, ds.ID())
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = client.DataSources.Get(ctx, ds.ID())
	require.Error(t, err)
}

func TestClientCloseIsIdempotent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := piimap.New(
		piimap.WithSQLite(filepath.Join(t.TempDir(), "piimap.db")),
		piimap.WithDataDir(t.TempDir()),
		piimap.WithoutNER(),
		piimap.WithLogger(logger),
	)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Close(), piimap.ErrClientClosed)
}

func TestNewRequiresDatabase(t *testing.T) {
	_, err := piimap.New(piimap.WithoutNER())
	assert.ErrorIs(t, err, piimap.ErrNoDatabase)
}

func TestLineageAcrossSystems(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	sourceURL := createSourceDB(t)
	_, _, err := client.DataSources.Add(ctx, &service.DataSourceAddParams{
		Name:       "crm",
		TargetType: "database",
		Locator:    sourceURL,
	})
	require.NoError(t, err)

	root := t.TempDir()
	bucket := filepath.Join(root, "exports")
	require.NoError(t, os.MkdirAll(bucket, 0o755))
	var rows strings.Builder
	rows.WriteString("email\n")
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&rows, "user%d@example.id\n", i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(bucket, "email.csv"), []byte(rows.String()), 0o644))

	_, _, err = client.DataSources.Add(ctx, &service.DataSourceAddParams{
		Name:       "backups",
		TargetType: "object_store",
		Locator:    root,
	})
	require.NoError(t, err)

	// Scans queue a lineage refresh behind them; wait for the graph to
	// pick up both systems.
	waitFor(t, 60*time.Second, func() bool {
		nodes, _ := client.Lineage.Graph()
		systems := 0
		for _, node := range nodes {
			if node.System() == "crm" || node.System() == "backups" {
				if node.Parent() == "" {
					systems++
				}
			}
		}
		return systems >= 2 && client.WorkerIdle()
	})

	nodes, edges := client.Lineage.Graph()
	assert.NotEmpty(t, nodes)
	assert.NotEmpty(t, edges)
}
