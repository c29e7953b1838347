package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piimap/piimap/domain/connector"
	"github.com/piimap/piimap/domain/scan"
	"github.com/piimap/piimap/domain/task"
)

type dataSourcesFixture struct {
	svc     *DataSources
	dsStore *fakeDataSourceStore
	results *fakeResultStore
	tasks   *fakeTaskStore
}

func newDataSourcesFixture(t *testing.T, conn connector.Connector) *dataSourcesFixture {
	t.Helper()
	registry := connector.NewRegistry()
	if conn != nil {
		registry.Register(conn)
	}
	fixture := &dataSourcesFixture{
		dsStore: &fakeDataSourceStore{},
		results: newFakeResultStore(),
		tasks:   &fakeTaskStore{},
	}
	fixture.svc = NewDataSources(
		fixture.dsStore,
		fixture.results,
		registry,
		NewQueue(fixture.tasks, recognitionTestLogger()),
		recognitionTestLogger(),
	)
	return fixture
}

func mustDataSourceID(payload map[string]any) int64 {
	id, _ := extractInt64(payload, "datasource_id")
	return id
}

func addParams() *DataSourceAddParams {
	return &DataSourceAddParams{
		Name:       "crm",
		TargetType: "database",
		Locator:    "postgres://crm",
	}
}

func TestDataSources_Add(t *testing.T) {
	fixture := newDataSourcesFixture(t, &fakeConnector{target: connector.TargetDatabase})
	ctx := context.Background()

	params := addParams()
	params.Scope = "metadata"
	params.Schedule = time.Hour

	ds, created, err := fixture.svc.Add(ctx, params)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, ds.ID())
	assert.Equal(t, "crm", ds.Name())
	assert.Equal(t, scan.ScopeMetadata, ds.Scope())
	assert.Equal(t, time.Hour, ds.Schedule())
	assert.Equal(t, scan.StatusPending, ds.Status())

	tasks, err := fixture.tasks.FindPending(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2, "a new datasource queues a scan and a lineage refresh")
	assert.Equal(t, task.OperationScanDataSource, tasks[0].Operation())
	assert.Equal(t, task.OperationRefreshLineage, tasks[1].Operation())
	assert.Equal(t, ds.ID(), mustDataSourceID(tasks[0].Payload()))
}

func TestDataSources_AddIsIdempotentByName(t *testing.T) {
	fixture := newDataSourcesFixture(t, &fakeConnector{target: connector.TargetDatabase})
	ctx := context.Background()

	first, created, err := fixture.svc.Add(ctx, addParams())
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := fixture.svc.Add(ctx, addParams())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID(), second.ID())

	count, _ := fixture.tasks.CountPending(ctx)
	assert.Equal(t, int64(2), count, "re-adding queues nothing new")
}

func TestDataSources_AddValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown target type", func(t *testing.T) {
		fixture := newDataSourcesFixture(t, nil)
		params := addParams()
		params.TargetType = "ftp"
		_, _, err := fixture.svc.Add(ctx, params)
		require.Error(t, err)
	})

	t.Run("unreachable locator", func(t *testing.T) {
		conn := &fakeConnector{target: connector.TargetDatabase, connErr: errors.New("connection refused")}
		fixture := newDataSourcesFixture(t, conn)

		_, _, err := fixture.svc.Add(ctx, addParams())
		require.Error(t, err)

		var connErr *ConnectorError
		assert.ErrorAs(t, err, &connErr)
		assert.False(t, fixture.dsStore.hasDS, "unreachable datasources are not persisted")
	})

	t.Run("unknown scope", func(t *testing.T) {
		fixture := newDataSourcesFixture(t, &fakeConnector{target: connector.TargetDatabase})
		params := addParams()
		params.Scope = "everything"
		_, _, err := fixture.svc.Add(ctx, params)
		require.Error(t, err)
	})
}

func TestDataSources_DeleteRemovesResults(t *testing.T) {
	fixture := newDataSourcesFixture(t, &fakeConnector{target: connector.TargetDatabase})
	ctx := context.Background()

	ds, _, err := fixture.svc.Add(ctx, addParams())
	require.NoError(t, err)

	require.NoError(t, fixture.svc.Delete(ctx, ds.ID()))
	assert.Contains(t, fixture.results.deleted, ds.ID())
	assert.False(t, fixture.dsStore.hasDS)

	require.Error(t, fixture.svc.Delete(ctx, ds.ID()), "deleting twice fails on lookup")
}

func TestDataSources_Rescan(t *testing.T) {
	fixture := newDataSourcesFixture(t, &fakeConnector{target: connector.TargetDatabase})
	ctx := context.Background()

	ds, _, err := fixture.svc.Add(ctx, addParams())
	require.NoError(t, err)

	require.NoError(t, fixture.svc.Rescan(ctx, ds.ID(), "data"))

	tasks, err := fixture.tasks.FindPending(ctx)
	require.NoError(t, err)

	var rescan *task.Task
	for i := range tasks {
		if tasks[i].Operation() == task.OperationRescanDataSource {
			rescan = &tasks[i]
		}
	}
	require.NotNil(t, rescan)
	assert.Equal(t, ds.ID(), mustDataSourceID(rescan.Payload()))
	assert.Equal(t, "data", rescan.Payload()["scope"])

	assert.Error(t, fixture.svc.Rescan(ctx, ds.ID(), "everything"))
}

func TestDataSources_RescanAll(t *testing.T) {
	fixture := newDataSourcesFixture(t, &fakeConnector{target: connector.TargetDatabase})
	ctx := context.Background()

	ds, _, err := fixture.svc.Add(ctx, addParams())
	require.NoError(t, err)

	require.NoError(t, fixture.svc.RescanAll(ctx))

	tasks, err := fixture.tasks.FindPending(ctx)
	require.NoError(t, err)

	found := false
	for _, queued := range tasks {
		if queued.Operation() == task.OperationRescanDataSource &&
			mustDataSourceID(queued.Payload()) == ds.ID() {
			found = true
		}
	}
	assert.True(t, found)
}
