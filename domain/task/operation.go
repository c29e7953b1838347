package task

import "strings"

// Operation represents the type of task operation.
type Operation string

// Operation values for the task queue system.
const (
	OperationRoot             Operation = "piimap.root"
	OperationDataSource       Operation = "piimap.datasource"
	OperationScanDataSource   Operation = "piimap.datasource.scan"
	OperationRescanDataSource Operation = "piimap.datasource.rescan"
	OperationLineage          Operation = "piimap.lineage"
	OperationRefreshLineage   Operation = "piimap.lineage.refresh"
	OperationRules            Operation = "piimap.rules"
	OperationReloadRules      Operation = "piimap.rules.reload"
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	return string(o)
}

// IsDataSourceOperation returns true if this is a datasource-level operation.
func (o Operation) IsDataSourceOperation() bool {
	return strings.HasPrefix(string(o), "piimap.datasource.")
}

// IsLineageOperation returns true if this is a lineage-level operation.
func (o Operation) IsLineageOperation() bool {
	return strings.HasPrefix(string(o), "piimap.lineage.")
}

// PrescribedOperations provides predefined operation sequences for common workflows.
type PrescribedOperations struct {
	lineage bool
}

// NewPrescribedOperations creates a PrescribedOperations with the given settings.
// When lineage is false, the graph refresh that normally follows a scan is
// excluded from all workflows.
func NewPrescribedOperations(lineage bool) PrescribedOperations {
	return PrescribedOperations{lineage: lineage}
}

// All returns every operation that appears in any prescribed workflow.
// Used at startup to validate that all required handlers are registered.
func (p PrescribedOperations) All() []Operation {
	seen := make(map[Operation]struct{})
	var all []Operation

	for _, ops := range [][]Operation{
		p.ScanDataSource(),
		p.RescanDataSource(),
		p.ReloadRules(),
	} {
		for _, op := range ops {
			if _, ok := seen[op]; !ok {
				seen[op] = struct{}{}
				all = append(all, op)
			}
		}
	}
	return all
}

// ScanDataSource returns the operation sequence for scanning a datasource.
func (p PrescribedOperations) ScanDataSource() []Operation {
	ops := []Operation{OperationScanDataSource}
	if p.lineage {
		ops = append(ops, OperationRefreshLineage)
	}
	return ops
}

// RescanDataSource returns the operation sequence for a scheduled rescan.
func (p PrescribedOperations) RescanDataSource() []Operation {
	ops := []Operation{OperationRescanDataSource}
	if p.lineage {
		ops = append(ops, OperationRefreshLineage)
	}
	return ops
}

// ReloadRules returns the operation sequence for reloading recognition rules.
func (p PrescribedOperations) ReloadRules() []Operation {
	return []Operation{OperationReloadRules}
}
