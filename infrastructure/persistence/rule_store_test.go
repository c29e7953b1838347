package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piimap/piimap/domain/recognition"
	"github.com/piimap/piimap/domain/repository"
	"github.com/piimap/piimap/domain/rule"
	"github.com/piimap/piimap/internal/database"
)

// newTestDB creates an in-memory SQLite database with the full schema,
// shared by all store tests in this package.
func newTestDB(t *testing.T) database.Database {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewDatabase(ctx, "sqlite:///:memory:")
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRuleStore_SaveCreatesAndUpdates(t *testing.T) {
	store := NewRuleStore(newTestDB(t))
	ctx := context.Background()

	created, err := store.Save(ctx, rule.NewRule("email", rule.KindPattern).
		WithEntityType(recognition.EntityEmail).
		WithPattern(`[a-z]+@[a-z]+\.[a-z]+`).
		WithScore(0.9))
	require.NoError(t, err)
	assert.NotZero(t, created.ID())

	updated, err := store.Save(ctx, created.WithScore(0.5))
	require.NoError(t, err)
	assert.Equal(t, created.ID(), updated.ID())
	assert.Equal(t, 0.5, updated.Score())

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRuleStore_SaveRoundTripsLists(t *testing.T) {
	store := NewRuleStore(newTestDB(t))
	ctx := context.Background()

	saved, err := store.Save(ctx, rule.NewRule("nik", rule.KindPattern).
		WithEntityType(recognition.EntityNationalID).
		WithPattern(`\b\d{16}\b`).
		WithScore(0.85).
		WithContextKeywords([]string{"nik", "ktp"}))
	require.NoError(t, err)

	found, err := store.FindOne(ctx, repository.WithName("nik"))
	require.NoError(t, err)
	assert.Equal(t, saved.ID(), found.ID())
	assert.Equal(t, []string{"nik", "ktp"}, found.ContextKeywords())
	assert.Equal(t, recognition.EntityNationalID, found.EntityType())
	assert.True(t, found.Enabled())
}

func TestRuleStore_ListActiveExcludesDisabled(t *testing.T) {
	store := NewRuleStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.Save(ctx, rule.NewRule("enabled-rule", rule.KindDeny).
		WithValues([]string{"test@example.com"}))
	require.NoError(t, err)
	_, err = store.Save(ctx, rule.NewRule("disabled-rule", rule.KindDeny).
		WithValues([]string{"noreply@example.com"}).
		WithEnabled(false))
	require.NoError(t, err)

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "enabled-rule", active[0].Name())
}

func TestRuleStore_Delete(t *testing.T) {
	store := NewRuleStore(newTestDB(t))
	ctx := context.Background()

	saved, err := store.Save(ctx, rule.NewRule("temp", rule.KindExclude).
		WithEntityType(recognition.EntityType("URL")))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, saved.ID()))

	exists, err := store.Exists(ctx, repository.WithName("temp"))
	require.NoError(t, err)
	assert.False(t, exists)
}
