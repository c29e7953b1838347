package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piimap/piimap/domain/recognition"
	"github.com/piimap/piimap/domain/scan"
)

func testResult(dataSourceID int64, container, field string, entityType recognition.EntityType, detectedAt time.Time) scan.Result {
	return scan.NewResult(dataSourceID, container, field, entityType,
		10, 0.9, recognition.TierGeneral, []string{"b***i@example.com"}, detectedAt)
}

func TestResultStore_ReplaceContainerSwapsSnapshot(t *testing.T) {
	store := NewResultStore(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.ReplaceContainer(ctx, 1, "customers", []scan.Result{
		testResult(1, "customers", "email", recognition.EntityEmail, now),
		testResult(1, "customers", "phone", recognition.EntityPhone, now),
	}))
	require.NoError(t, store.ReplaceContainer(ctx, 1, "orders", []scan.Result{
		testResult(1, "orders", "email", recognition.EntityEmail, now),
	}))
	require.NoError(t, store.ReplaceContainer(ctx, 2, "customers", []scan.Result{
		testResult(2, "customers", "email", recognition.EntityEmail, now),
	}))

	// Rescan of customers on datasource 1 replaces only that snapshot.
	require.NoError(t, store.ReplaceContainer(ctx, 1, "customers", []scan.Result{
		testResult(1, "customers", "email", recognition.EntityEmail, now.Add(time.Minute)),
	}))

	results, err := store.FindByDataSource(ctx, 1)
	require.NoError(t, err)
	require.Len(t, results, 2)

	containers := make(map[string]int)
	for _, r := range results {
		containers[r.Container()]++
	}
	assert.Equal(t, 1, containers["customers"])
	assert.Equal(t, 1, containers["orders"])

	other, err := store.FindByDataSource(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestResultStore_ReplaceContainerWithEmptySnapshot(t *testing.T) {
	store := NewResultStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.ReplaceContainer(ctx, 1, "customers", []scan.Result{
		testResult(1, "customers", "email", recognition.EntityEmail, time.Now()),
	}))

	// A clean rescan clears the container's rows.
	require.NoError(t, store.ReplaceContainer(ctx, 1, "customers", nil))

	results, err := store.FindByDataSource(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestResultStore_FindByDataSourceOrdersNewestFirst(t *testing.T) {
	store := NewResultStore(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.ReplaceContainer(ctx, 1, "customers", []scan.Result{
		testResult(1, "customers", "email", recognition.EntityEmail, now.Add(-time.Hour)),
	}))
	require.NoError(t, store.ReplaceContainer(ctx, 1, "orders", []scan.Result{
		testResult(1, "orders", "email", recognition.EntityEmail, now),
	}))

	results, err := store.FindByDataSource(ctx, 1)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "orders", results[0].Container())
	assert.Equal(t, "customers", results[1].Container())
}

func TestResultStore_RoundTripsSamples(t *testing.T) {
	store := NewResultStore(newTestDB(t))
	ctx := context.Background()

	saved, err := store.Save(ctx, scan.NewResult(1, "customers", "nik",
		recognition.EntityNationalID, 42, 0.85, recognition.TierSensitive,
		[]string{"12************56", "98************21"}, time.Now()))
	require.NoError(t, err)
	assert.NotZero(t, saved.ID())

	results, err := store.FindByDataSource(ctx, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 42, results[0].Count())
	assert.Equal(t, recognition.TierSensitive, results[0].Tier())
	assert.Equal(t, []string{"12************56", "98************21"}, results[0].Samples())
}

func TestResultStore_DeleteByDataSource(t *testing.T) {
	store := NewResultStore(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.ReplaceContainer(ctx, 1, "customers", []scan.Result{
		testResult(1, "customers", "email", recognition.EntityEmail, now),
	}))
	require.NoError(t, store.ReplaceContainer(ctx, 2, "customers", []scan.Result{
		testResult(2, "customers", "email", recognition.EntityEmail, now),
	}))

	require.NoError(t, store.DeleteByDataSource(ctx, 1))

	gone, err := store.FindByDataSource(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := store.FindByDataSource(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}
