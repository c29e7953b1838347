package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/piimap/piimap/domain/connector"
	"github.com/piimap/piimap/domain/recognition"
	"github.com/piimap/piimap/domain/repository"
	"github.com/piimap/piimap/domain/scan"
	"github.com/piimap/piimap/internal/config"
	"github.com/piimap/piimap/internal/log"
)

// Orchestrator runs the per-datasource scan state machine:
// INVENTORY, PROFILING, SAMPLING, FULL_SCAN or SKIP, CHANGE_DETECTION,
// COMMIT. Containers scan concurrently and commit independently.
type Orchestrator struct {
	connectors     *connector.Registry
	recognition    *Recognition
	classification *Classification
	dataSources    scan.DataSourceStore
	results        scan.ResultStore
	audit          scan.ChangeAuditStore
	cfg            config.ScanConfig
	logger         *slog.Logger
}

// NewOrchestrator creates the scan orchestrator.
func NewOrchestrator(
	connectors *connector.Registry,
	recognitionEngine *Recognition,
	classification *Classification,
	dataSources scan.DataSourceStore,
	results scan.ResultStore,
	audit scan.ChangeAuditStore,
	cfg config.ScanConfig,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		connectors:     connectors,
		recognition:    recognitionEngine,
		classification: classification,
		dataSources:    dataSources,
		results:        results,
		audit:          audit,
		cfg:            cfg,
		logger:         logger,
	}
}

// containerOutcome accumulates one container's scan results before commit.
type containerOutcome struct {
	container  string
	results    []scan.Result
	events     []scan.ChangeEvent
	foundItems int
	committed  bool
	failure    *scan.ContainerFailure
}

// Run scans one datasource. The request scope overrides the datasource's
// configured scope; empty means use the configured one. The returned report
// is valid even when err is non-nil.
func (s *Orchestrator) Run(ctx context.Context, dataSourceID int64, requestScope scan.Scope) (scan.RunReport, error) {
	runID := uuid.NewString()
	started := time.Now()

	ctx = log.WithScanRunID(ctx, runID)
	ctx = log.WithDataSourceID(ctx, fmt.Sprintf("%d", dataSourceID))
	logger := s.logger.With(
		slog.String(string(log.ScanRunIDKey), runID),
		slog.Int64("datasource_id", dataSourceID),
	)

	ds, err := s.dataSources.FindOne(ctx, repository.WithID(dataSourceID))
	if err != nil {
		report := scan.NewRunReport(runID, dataSourceID, "", scan.RunFailed, 0, 0, nil, started, time.Now())
		return report, fmt.Errorf("load datasource %d: %w", dataSourceID, err)
	}

	scope := s.effectiveScope(ds, requestScope)
	logger.Info("scan run started",
		slog.String("scope", string(scope)),
		slog.String("target_type", ds.TargetType().String()),
	)

	ds, _ = s.dataSources.Save(ctx, ds.WithStatus(scan.StatusScanning))

	conn, err := s.connectors.Get(ds.TargetType())
	if err != nil {
		return s.failRun(ctx, runID, ds, scope, started, err)
	}

	// Container discovery doubles as the INVENTORY phase. Its failure is
	// fatal regardless of scope: nothing downstream can run blind.
	containers, err := conn.SchemaMetadata(ctx, ds.Locator())
	if err != nil {
		connErr := &ConnectorError{Phase: string(scan.PhaseInventory), Err: err}
		return s.failRun(ctx, runID, ds, scope, started, connErr)
	}
	if scope.NeedsInventory() {
		ds = ds.WithLastMetadataAt(time.Now())
	}

	if !scope.NeedsData() {
		ds, _ = s.dataSources.Save(ctx, ds.WithStatus(scan.StatusScanned))
		logger.Info("scan run completed", slog.Int("containers", len(containers)))
		return scan.NewRunReport(runID, ds.ID(), scope, scan.RunCompleted,
			0, len(containers), nil, started, time.Now()), nil
	}

	outcomes := s.scanContainers(ctx, ds, conn, containers)
	report := s.commit(ctx, runID, ds, scope, started, outcomes)

	logger.Info("scan run finished",
		slog.String("status", string(report.Status())),
		slog.Int("found_items", report.FoundItems()),
		slog.Int("failed_containers", len(report.Failures())),
	)
	return report, nil
}

// effectiveScope resolves the scope for this run. Data scanning on a
// never-inventoried datasource escalates to a full scan.
func (s *Orchestrator) effectiveScope(ds scan.DataSource, requestScope scan.Scope) scan.Scope {
	scope := requestScope
	if scope == "" {
		scope = ds.Scope()
	}
	if scope == "" {
		scope = scan.ScopeFull
	}
	if scope == scan.ScopeData && !ds.Inventoried() {
		return scan.ScopeFull
	}
	return scope
}

func (s *Orchestrator) failRun(ctx context.Context, runID string, ds scan.DataSource, scope scan.Scope, started time.Time, cause error) (scan.RunReport, error) {
	s.logger.Error("scan run failed",
		slog.String(string(log.ScanRunIDKey), runID),
		slog.Int64("datasource_id", ds.ID()),
		slog.String("error", cause.Error()),
	)
	if _, err := s.dataSources.Save(ctx, ds.WithStatus(scan.StatusFailed)); err != nil {
		s.logger.Error("failed to persist datasource status", slog.String("error", err.Error()))
	}
	report := scan.NewRunReport(runID, ds.ID(), scope, scan.RunFailed, 0, 0, nil, started, time.Now())
	return report, cause
}

func (s *Orchestrator) scanContainers(ctx context.Context, ds scan.DataSource, conn connector.Connector, containers []connector.ContainerMetadata) []*containerOutcome {
	outcomes := make([]*containerOutcome, len(containers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ContainerConcurrency())

	for i, meta := range containers {
		g.Go(func() error {
			outcome := s.scanContainer(gctx, ds, conn, meta)
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// scanContainer runs the data phases for one container. Failures are
// captured on the outcome, never propagated: one container must not stop
// its siblings.
func (s *Orchestrator) scanContainer(ctx context.Context, ds scan.DataSource, conn connector.Connector, meta connector.ContainerMetadata) *containerOutcome {
	outcome := &containerOutcome{container: meta.Container()}

	risky := s.profile(meta)

	agg, found, err := s.streamAndAggregate(ctx, ds, conn, meta, s.cfg.SampleBudget())
	if err != nil {
		outcome.failure = failureOf(meta.Container(), scan.PhaseSampling, err)
		return outcome
	}

	phase := scan.PhaseSkip
	if risky || agg.strictestConfirmed() {
		phase = scan.PhaseFullScan
		agg, found, err = s.streamAndAggregate(ctx, ds, conn, meta, 0)
		if err != nil {
			outcome.failure = failureOf(meta.Container(), scan.PhaseFullScan, err)
			return outcome
		}
	}

	s.logger.Debug("container scanned",
		slog.String("container", meta.Container()),
		slog.String("phase", string(phase)),
		slog.Bool("risky", risky),
		slog.Int("found_items", found),
	)

	outcome.foundItems = found
	outcome.results = agg.results(ds.ID(), meta.Container(), time.Now())
	outcome.events = s.detectChanges(ctx, ds, conn, meta)
	return outcome
}

// profile is the pre-detection gate: a container is risky when any field
// name contains a configured high-risk fragment.
func (s *Orchestrator) profile(meta connector.ContainerMetadata) bool {
	fragments := s.recognition.HighRiskFields()
	names := append([]string{meta.Container()}, meta.Fields()...)
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, fragment := range fragments {
			if strings.Contains(lower, fragment) {
				return true
			}
		}
	}
	return false
}

// streamAndAggregate consumes the container stream in batches and runs
// detection per value. A limit of 0 streams the whole container.
func (s *Orchestrator) streamAndAggregate(ctx context.Context, ds scan.DataSource, conn connector.Connector, meta connector.ContainerMetadata, limit int) (*aggregation, int, error) {
	stream, err := conn.ScanStream(ctx, ds.Locator(), meta.Container(), s.cfg.BatchSize(), limit)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			s.logger.Warn("stream close failed",
				slog.String("container", meta.Container()),
				slog.String("error", cerr.Error()))
		}
	}()

	agg := newAggregation(s.cfg.SampleValueLimit())
	found := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		batch, err := stream.Next(ctx)
		if err != nil {
			return nil, 0, err
		}
		if len(batch) == 0 {
			return agg, found, nil
		}

		for _, record := range batch {
			findings := s.detectRecord(ctx, meta, record)
			if len(findings) > 0 {
				found++
			}
			for _, f := range findings {
				masked := s.recognition.Mask(f.Text(), f.EntityType())
				tier := s.classification.Sensitivity(f.EntityType())
				agg.add(record.Field(), f, masked, tier)
			}
		}
	}
}

func (s *Orchestrator) detectRecord(ctx context.Context, meta connector.ContainerMetadata, record connector.Record) []recognition.Finding {
	tokens := nameTokens(meta.Container(), record.Field())
	findings, err := s.recognition.Detect(ctx, record.Value(), tokens)
	if err != nil {
		return nil
	}

	kept := findings[:0]
	for _, f := range findings {
		if s.classification.IsFalsePositive(f.Text(), f.EntityType()) {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// detectChanges runs the CHANGE_DETECTION phase. It only applies after a
// prior successful data scan and when the connector can answer
// changed-since queries. Change failures degrade silently to an empty
// event set; they never fail the container.
func (s *Orchestrator) detectChanges(ctx context.Context, ds scan.DataSource, conn connector.Connector, meta connector.ContainerMetadata) []scan.ChangeEvent {
	if ds.LastDataAt().IsZero() {
		return nil
	}
	capable, ok := conn.(connector.ChangeCapable)
	if !ok {
		return nil
	}

	stream, err := capable.Changes(ctx, ds.Locator(), meta.Container(), ds.LastDataAt(), s.cfg.BatchSize())
	if err != nil {
		s.logger.Warn("change detection unavailable",
			slog.String("container", meta.Container()),
			slog.String("error", err.Error()))
		return nil
	}
	defer func() { _ = stream.Close() }()

	priorMasked := s.priorSampleIndex(ctx, ds.ID(), meta.Container())

	var events []scan.ChangeEvent
	for {
		if ctx.Err() != nil {
			return events
		}
		batch, err := stream.Next(ctx)
		if err != nil || len(batch) == 0 {
			return events
		}

		for _, record := range batch {
			findings := s.detectRecord(ctx, meta, record)
			for _, f := range findings {
				events = append(events, scan.NewChangeEvent(
					uuid.NewString(),
					ds.ID(),
					meta.Container(),
					record.Field(),
					f.EntityType(),
					record.RowID(),
					priorMasked[fieldEntityKey{record.Field(), f.EntityType()}],
					s.recognition.Mask(f.Text(), f.EntityType()),
					time.Now(),
				))
			}
		}
	}
}

// priorSampleIndex maps (field, entity type) to a previously persisted
// masked sample, used as the "old" side of a change event.
func (s *Orchestrator) priorSampleIndex(ctx context.Context, dataSourceID int64, container string) map[fieldEntityKey]string {
	index := make(map[fieldEntityKey]string)
	prior, err := s.results.FindByDataSource(ctx, dataSourceID)
	if err != nil {
		return index
	}
	for _, r := range prior {
		if r.Container() != container {
			continue
		}
		if samples := r.Samples(); len(samples) > 0 {
			index[fieldEntityKey{r.Field(), r.EntityType()}] = samples[0]
		}
	}
	return index
}

// commit persists each container's snapshot independently and finalizes the
// datasource. A failed container commit leaves that container's prior
// snapshot intact and marks the run partial.
func (s *Orchestrator) commit(ctx context.Context, runID string, ds scan.DataSource, scope scan.Scope, started time.Time, outcomes []*containerOutcome) scan.RunReport {
	var (
		failures   []scan.ContainerFailure
		events     []scan.ChangeEvent
		foundItems int
		scanned    int
		anyPII     bool
		sensitive  bool
	)

	for _, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		if outcome.failure != nil {
			failures = append(failures, *outcome.failure)
			continue
		}

		if err := s.results.ReplaceContainer(ctx, ds.ID(), outcome.container, outcome.results); err != nil {
			perr := &PersistenceError{Container: outcome.container, Err: err}
			s.logger.Error("container commit failed", slog.String("error", perr.Error()))
			failures = append(failures, scan.NewContainerFailure(outcome.container, scan.PhaseCommit, perr.Error()))
			continue
		}
		outcome.committed = true
		scanned++
		foundItems += outcome.foundItems
		events = append(events, outcome.events...)

		for _, r := range outcome.results {
			anyPII = true
			if r.Tier().IsStrictest() {
				sensitive = true
			}
		}
	}

	if len(events) > 0 {
		if err := s.audit.Append(ctx, events); err != nil {
			s.logger.Error("failed to append change events", slog.String("error", err.Error()))
		}
	}

	status := scan.RunCompleted
	dsStatus := scan.StatusScanned
	switch {
	case scanned == 0 && len(failures) > 0:
		status = scan.RunFailed
		dsStatus = scan.StatusFailed
	case len(failures) > 0:
		status = scan.RunPartialSuccess
	}

	if anyPII {
		ds = ds.WithTags(scan.TagPII)
	}
	if sensitive {
		ds = ds.WithTags(scan.TagPIISensitive)
	}
	if scanned > 0 {
		ds = ds.WithLastDataAt(time.Now())
	}
	if _, err := s.dataSources.Save(ctx, ds.WithStatus(dsStatus)); err != nil {
		s.logger.Error("failed to persist datasource", slog.String("error", err.Error()))
	}

	return scan.NewRunReport(runID, ds.ID(), scope, status, foundItems, scanned, failures, started, time.Now())
}

func failureOf(container string, phase scan.Phase, err error) *scan.ContainerFailure {
	connErr := &ConnectorError{Phase: string(phase), Container: container, Err: err}
	f := scan.NewContainerFailure(container, phase, connErr.Error())
	return &f
}

type fieldEntityKey struct {
	field  string
	entity recognition.EntityType
}

type fieldEntityAgg struct {
	count    int
	scoreSum float64
	samples  []string
	tier     recognition.Tier
}

// aggregation accumulates per-(field, entity type) counters for one
// container pass.
type aggregation struct {
	counters    map[fieldEntityKey]*fieldEntityAgg
	sampleLimit int
}

func newAggregation(sampleLimit int) *aggregation {
	return &aggregation{
		counters:    make(map[fieldEntityKey]*fieldEntityAgg),
		sampleLimit: sampleLimit,
	}
}

func (a *aggregation) add(field string, f recognition.Finding, masked string, tier recognition.Tier) {
	key := fieldEntityKey{field, f.EntityType()}
	agg, ok := a.counters[key]
	if !ok {
		agg = &fieldEntityAgg{tier: recognition.DefaultTier}
		a.counters[key] = agg
	}
	agg.count++
	agg.scoreSum += f.Score()
	agg.tier = agg.tier.Escalate(tier)
	if len(agg.samples) < a.sampleLimit && !containsString(agg.samples, masked) {
		agg.samples = append(agg.samples, masked)
	}
}

func (a *aggregation) strictestConfirmed() bool {
	for _, agg := range a.counters {
		if agg.tier.IsStrictest() {
			return true
		}
	}
	return false
}

func (a *aggregation) results(dataSourceID int64, container string, detectedAt time.Time) []scan.Result {
	keys := make([]fieldEntityKey, 0, len(a.counters))
	for key := range a.counters {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].field != keys[j].field {
			return keys[i].field < keys[j].field
		}
		return keys[i].entity < keys[j].entity
	})

	results := make([]scan.Result, 0, len(keys))
	for _, key := range keys {
		agg := a.counters[key]
		results = append(results, scan.NewResult(
			dataSourceID,
			container,
			key.field,
			key.entity,
			agg.count,
			agg.scoreSum/float64(agg.count),
			agg.tier,
			agg.samples,
			detectedAt,
		))
	}
	return results
}

// nameTokens splits structural names (container, field, file) into context
// tokens for detection. Short fragments carry no signal and are dropped.
func nameTokens(names ...string) []string {
	var tokens []string
	for _, name := range names {
		fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
			return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
		})
		for _, f := range fields {
			if len(f) > 2 {
				tokens = append(tokens, f)
			}
		}
	}
	return tokens
}

func containsString(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
