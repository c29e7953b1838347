package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func operationSet(ops []Operation) map[Operation]struct{} {
	s := make(map[Operation]struct{}, len(ops))
	for _, op := range ops {
		s[op] = struct{}{}
	}
	return s
}

func contains(ops []Operation, target Operation) bool {
	_, ok := operationSet(ops)[target]
	return ok
}

func TestScanDataSource(t *testing.T) {
	tests := []struct {
		name        string
		lineage     bool
		wantPresent []Operation
		wantAbsent  []Operation
	}{
		{
			name:        "lineage enabled",
			lineage:     true,
			wantPresent: []Operation{OperationScanDataSource, OperationRefreshLineage},
		},
		{
			name:        "lineage disabled",
			lineage:     false,
			wantPresent: []Operation{OperationScanDataSource},
			wantAbsent:  []Operation{OperationRefreshLineage},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := NewPrescribedOperations(tt.lineage).ScanDataSource()
			set := operationSet(ops)
			for _, op := range tt.wantPresent {
				assert.Contains(t, set, op, "expected %s to be present", op)
			}
			for _, op := range tt.wantAbsent {
				assert.NotContains(t, set, op, "expected %s to be absent", op)
			}
		})
	}
}

func TestRescanDataSource(t *testing.T) {
	p := NewPrescribedOperations(true)
	ops := p.RescanDataSource()

	assert.Equal(t, OperationRescanDataSource, ops[0], "rescan must come before lineage refresh")
	assert.True(t, contains(ops, OperationRefreshLineage))

	ops = NewPrescribedOperations(false).RescanDataSource()
	assert.False(t, contains(ops, OperationRefreshLineage))
}

func TestAllAggregatesWorkflows(t *testing.T) {
	p := NewPrescribedOperations(true)
	all := p.All()
	set := operationSet(all)

	assert.Contains(t, set, OperationScanDataSource)
	assert.Contains(t, set, OperationRescanDataSource)
	assert.Contains(t, set, OperationRefreshLineage)
	assert.Contains(t, set, OperationReloadRules)

	// no duplicates
	assert.Len(t, all, len(set))
}

func TestOperationClassification(t *testing.T) {
	assert.True(t, OperationScanDataSource.IsDataSourceOperation())
	assert.True(t, OperationRescanDataSource.IsDataSourceOperation())
	assert.False(t, OperationScanDataSource.IsLineageOperation())
	assert.True(t, OperationRefreshLineage.IsLineageOperation())
	assert.False(t, OperationReloadRules.IsDataSourceOperation())
}
