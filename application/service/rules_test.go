package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piimap/piimap/domain/recognition"
	"github.com/piimap/piimap/domain/rule"
	"github.com/piimap/piimap/domain/task"
)

func newRulesService(t *testing.T) (*Rules, *fakeRuleStore, *fakeTaskStore) {
	t.Helper()
	ruleStore := &fakeRuleStore{}
	taskStore := &fakeTaskStore{}
	svc := NewRules(ruleStore, NewQueue(taskStore, recognitionTestLogger()), recognitionTestLogger())
	return svc, ruleStore, taskStore
}

func TestRules_AddQueuesReload(t *testing.T) {
	svc, ruleStore, taskStore := newRulesService(t)
	ctx := context.Background()

	saved, err := svc.Add(ctx, emailRule())
	require.NoError(t, err)
	assert.Equal(t, "email", saved.Name())

	rules, err := ruleStore.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	tasks, err := taskStore.FindPending(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.OperationReloadRules, tasks[0].Operation())
	assert.GreaterOrEqual(t, tasks[0].Priority(), int(task.PriorityCritical),
		"stale rules must not outlive queued scans")
}

func TestRules_AddRejectsInvalid(t *testing.T) {
	svc, _, taskStore := newRulesService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		rule rule.Rule
	}{
		{
			name: "missing name",
			rule: rule.NewRule("", rule.KindPattern).
				WithEntityType(recognition.EntityEmail).WithPattern(`\d+`),
		},
		{
			name: "unknown kind",
			rule: rule.NewRule("custom", rule.Kind("mystery")),
		},
		{
			name: "pattern without entity type",
			rule: rule.NewRule("custom", rule.KindPattern).WithPattern(`\d+`),
		},
		{
			name: "invalid regex",
			rule: rule.NewRule("custom", rule.KindPattern).
				WithEntityType(recognition.EntityEmail).WithPattern(`(unclosed`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Add(ctx, tt.rule)
			require.Error(t, err)

			var cfgErr *ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}

	count, err := taskStore.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "rejected rules trigger no reload")
}

func TestRules_DeleteQueuesReload(t *testing.T) {
	svc, _, taskStore := newRulesService(t)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, 1))

	tasks, err := taskStore.FindPending(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.OperationReloadRules, tasks[0].Operation())
}
