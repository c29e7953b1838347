// Package scan provides handlers for datasource scan operations.
package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/piimap/piimap/application/handler"
	"github.com/piimap/piimap/application/service"
	domainscan "github.com/piimap/piimap/domain/scan"
	"github.com/piimap/piimap/domain/task"
)

// Scan handles the datasource scan task operation. It drives the full scan
// state machine for one datasource.
type Scan struct {
	orchestrator   *service.Orchestrator
	trackerFactory handler.TrackerFactory
	logger         *slog.Logger
}

// NewScan creates a new Scan handler.
func NewScan(orchestrator *service.Orchestrator, trackerFactory handler.TrackerFactory, logger *slog.Logger) *Scan {
	return &Scan{
		orchestrator:   orchestrator,
		trackerFactory: trackerFactory,
		logger:         logger,
	}
}

// Execute processes the scan task.
func (h *Scan) Execute(ctx context.Context, payload map[string]any) error {
	dataSourceID, err := handler.ExtractInt64(payload, "datasource_id")
	if err != nil {
		return err
	}
	scopeStr, err := handler.ExtractOptionalString(payload, "scope")
	if err != nil {
		return err
	}

	var scope domainscan.Scope
	if scopeStr != "" {
		scope, err = domainscan.ParseScope(scopeStr)
		if err != nil {
			return err
		}
	}

	tracker := h.trackerFactory.ForOperation(
		task.OperationScanDataSource,
		task.TrackableTypeDataSource,
		dataSourceID,
	)
	tracker.SetTotal(ctx, 1)
	tracker.SetCurrent(ctx, 0, "Scanning datasource")

	report, err := h.orchestrator.Run(ctx, dataSourceID, scope)
	if err != nil {
		tracker.Fail(ctx, err.Error())
		return fmt.Errorf("scan datasource %d: %w", dataSourceID, err)
	}

	switch report.Status() {
	case domainscan.RunPartialSuccess:
		tracker.SetCurrent(ctx, 1, fmt.Sprintf(
			"Partial success: %d items found, %d containers failed",
			report.FoundItems(), len(report.Failures())))
		tracker.Complete(ctx)
	case domainscan.RunFailed:
		tracker.Fail(ctx, "scan run failed")
	default:
		tracker.Complete(ctx)
	}

	h.logger.Info("scan task finished",
		slog.Int64("datasource_id", dataSourceID),
		slog.String("run_id", report.RunID()),
		slog.String("status", string(report.Status())),
	)
	return nil
}
