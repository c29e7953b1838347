package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piimap/piimap/domain/scan"
	"github.com/piimap/piimap/domain/task"
	"github.com/piimap/piimap/internal/config"
)

func TestPeriodicRescan_Enabled(t *testing.T) {
	dsStore := &fakeDataSourceStore{
		ds:    testDataSource(1, scan.ScopeFull, true),
		hasDS: true,
	}
	taskStore := &fakeTaskStore{}
	queue := NewQueue(taskStore, recognitionTestLogger())

	cfg := config.NewPeriodicRescanConfig().
		WithEnabled(true).
		WithIntervalSeconds(0.01) // 10ms

	pr := NewPeriodicRescan(cfg, dsStore, queue, recognitionTestLogger())
	pr.Start(context.Background())

	require.Eventually(t, func() bool {
		count, err := taskStore.CountPending(context.Background())
		return err == nil && count >= 2
	}, time.Second, 5*time.Millisecond)

	pr.Stop()

	tasks, err := taskStore.FindPending(context.Background())
	require.NoError(t, err)

	ops := make(map[task.Operation]task.Task)
	for _, tsk := range tasks {
		ops[tsk.Operation()] = tsk
	}
	require.Contains(t, ops, task.OperationRescanDataSource)
	require.Contains(t, ops, task.OperationRefreshLineage)
	assert.Equal(t, int64(1), ops[task.OperationRescanDataSource].Payload()["datasource_id"])
}

func TestPeriodicRescan_Disabled(t *testing.T) {
	dsStore := &fakeDataSourceStore{
		ds:    testDataSource(1, scan.ScopeFull, true),
		hasDS: true,
	}
	taskStore := &fakeTaskStore{}
	queue := NewQueue(taskStore, recognitionTestLogger())

	cfg := config.NewPeriodicRescanConfig().
		WithEnabled(false)

	pr := NewPeriodicRescan(cfg, dsStore, queue, recognitionTestLogger())
	pr.Start(context.Background())

	time.Sleep(50 * time.Millisecond)

	pr.Stop()

	count, err := taskStore.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPeriodicRescan_NoDataSourcesDue(t *testing.T) {
	dsStore := &fakeDataSourceStore{}
	taskStore := &fakeTaskStore{}
	queue := NewQueue(taskStore, recognitionTestLogger())

	cfg := config.NewPeriodicRescanConfig().
		WithEnabled(true).
		WithIntervalSeconds(0.01)

	pr := NewPeriodicRescan(cfg, dsStore, queue, recognitionTestLogger())
	pr.Start(context.Background())

	time.Sleep(50 * time.Millisecond)

	pr.Stop()

	count, err := taskStore.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
