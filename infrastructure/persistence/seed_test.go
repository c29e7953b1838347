package persistence

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piimap/piimap/domain/recognition"
	"github.com/piimap/piimap/domain/rule"
)

func TestParseSeedRules(t *testing.T) {
	rules, err := ParseSeedRules([]byte(`
rules:
  - name: email
    kind: pattern
    entity_type: EMAIL_ADDRESS
    pattern: '[a-z]+@[a-z]+\.[a-z]+'
    score: 0.9
  - name: deny-list
    kind: deny
    values: [test@example.com]
    enabled: false
`))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "email", rules[0].Name())
	assert.Equal(t, rule.KindPattern, rules[0].Kind())
	assert.Equal(t, recognition.EntityEmail, rules[0].EntityType())
	assert.Equal(t, 0.9, rules[0].Score())
	assert.True(t, rules[0].Enabled())

	assert.Equal(t, rule.KindDeny, rules[1].Kind())
	assert.Equal(t, []string{"test@example.com"}, rules[1].Values())
	assert.False(t, rules[1].Enabled())
}

func TestParseSeedRules_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing name",
			yaml: "rules:\n  - kind: pattern\n    pattern: a",
		},
		{
			name: "unknown kind",
			yaml: "rules:\n  - name: x\n    kind: magic",
		},
		{
			name: "not yaml",
			yaml: "rules: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeedRules([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestDefaultSeedRules(t *testing.T) {
	rules, err := DefaultSeedRules()
	require.NoError(t, err)
	assert.NotEmpty(t, rules)

	names := make(map[string]bool, len(rules))
	for _, r := range rules {
		names[r.Name()] = true
	}
	assert.True(t, names["nik"])
	assert.True(t, names["email"])
}

func TestLoadSeedRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - name: custom
    kind: exclude
    entity_type: DATE_TIME
`), 0o600))

	rules, err := LoadSeedRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "custom", rules[0].Name())

	// Empty path falls back to the built-in set.
	builtin, err := LoadSeedRules("")
	require.NoError(t, err)
	assert.NotEmpty(t, builtin)

	_, err = LoadSeedRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeedRules_SkipsExisting(t *testing.T) {
	store := NewRuleStore(newTestDB(t))
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	rules, err := DefaultSeedRules()
	require.NoError(t, err)

	inserted, err := SeedRules(ctx, store, rules, logger)
	require.NoError(t, err)
	assert.Equal(t, len(rules), inserted)

	// Operator edits survive a reseed: existing names are skipped.
	again, err := SeedRules(ctx, store, rules, logger)
	require.NoError(t, err)
	assert.Zero(t, again)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(rules)), count)
}
