// Package scan provides the scan domain: datasources, scopes, phases,
// results, change events, and run reports.
package scan

import "fmt"

// Scope controls how much of a datasource a scan run covers.
type Scope string

// Scope values.
const (
	// ScopeFull re-inventories and scans data.
	ScopeFull Scope = "full"

	// ScopeMetadata inventories and profiles without reading data.
	ScopeMetadata Scope = "metadata"

	// ScopeData scans data against the existing inventory.
	ScopeData Scope = "data"
)

// ParseScope parses a scope string. Empty input is allowed and means
// "use the datasource's configured scope".
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeFull, ScopeMetadata, ScopeData:
		return Scope(s), nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("unknown scan scope %q", s)
}

// NeedsInventory reports whether the scope includes the inventory phase.
func (s Scope) NeedsInventory() bool {
	return s == ScopeFull || s == ScopeMetadata
}

// NeedsData reports whether the scope includes data scanning.
func (s Scope) NeedsData() bool {
	return s == ScopeFull || s == ScopeData
}

// Phase is one step of the per-datasource scan state machine.
type Phase string

// Phase values, in execution order.
const (
	PhaseInventory       Phase = "INVENTORY"
	PhaseProfiling       Phase = "PROFILING"
	PhaseSampling        Phase = "SAMPLING"
	PhaseFullScan        Phase = "FULL_SCAN"
	PhaseSkip            Phase = "SKIP"
	PhaseChangeDetection Phase = "CHANGE_DETECTION"
	PhaseCommit          Phase = "COMMIT"
)

// RunStatus is the terminal status of a scan run.
type RunStatus string

// RunStatus values.
const (
	RunCompleted      RunStatus = "COMPLETED"
	RunPartialSuccess RunStatus = "PARTIAL_SUCCESS"
	RunFailed         RunStatus = "FAILED"
)
