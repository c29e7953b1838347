package scan

import "time"

// ContainerFailure describes one container that could not be scanned or
// committed.
type ContainerFailure struct {
	container string
	phase     Phase
	message   string
}

// NewContainerFailure creates a ContainerFailure.
func NewContainerFailure(container string, phase Phase, message string) ContainerFailure {
	return ContainerFailure{container: container, phase: phase, message: message}
}

// Container returns the failing container.
func (f ContainerFailure) Container() string { return f.container }

// Phase returns the phase the failure occurred in.
func (f ContainerFailure) Phase() Phase { return f.phase }

// Message returns the underlying connector or store message.
func (f ContainerFailure) Message() string { return f.message }

// RunReport summarizes one scan run for operators.
type RunReport struct {
	runID        string
	dataSourceID int64
	scope        Scope
	status       RunStatus
	foundItems   int
	scanned      int
	failures     []ContainerFailure
	startedAt    time.Time
	finishedAt   time.Time
}

// NewRunReport creates a RunReport.
func NewRunReport(
	runID string,
	dataSourceID int64,
	scope Scope,
	status RunStatus,
	foundItems, scanned int,
	failures []ContainerFailure,
	startedAt, finishedAt time.Time,
) RunReport {
	f := make([]ContainerFailure, len(failures))
	copy(f, failures)
	return RunReport{
		runID:        runID,
		dataSourceID: dataSourceID,
		scope:        scope,
		status:       status,
		foundItems:   foundItems,
		scanned:      scanned,
		failures:     f,
		startedAt:    startedAt,
		finishedAt:   finishedAt,
	}
}

// RunID returns the unique run identifier.
func (r RunReport) RunID() string { return r.runID }

// DataSourceID returns the scanned datasource's ID.
func (r RunReport) DataSourceID() int64 { return r.dataSourceID }

// Scope returns the effective scope the run executed with.
func (r RunReport) Scope() Scope { return r.scope }

// Status returns the terminal run status.
func (r RunReport) Status() RunStatus { return r.status }

// FoundItems returns the total number of values with findings.
func (r RunReport) FoundItems() int { return r.foundItems }

// ContainersScanned returns how many containers were scanned.
func (r RunReport) ContainersScanned() int { return r.scanned }

// Failures returns the per-container failures.
func (r RunReport) Failures() []ContainerFailure {
	result := make([]ContainerFailure, len(r.failures))
	copy(result, r.failures)
	return result
}

// StartedAt returns when the run started.
func (r RunReport) StartedAt() time.Time { return r.startedAt }

// FinishedAt returns when the run finished.
func (r RunReport) FinishedAt() time.Time { return r.finishedAt }

// IsPartial reports whether the run completed with failures.
func (r RunReport) IsPartial() bool {
	return r.status == RunPartialSuccess
}
