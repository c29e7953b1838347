package tracking

import (
	"context"
	"log/slog"

	"github.com/piimap/piimap/domain/task"
)

// LoggingReporter implements Reporter by logging status changes. Progress
// messages carry the container currently being scanned, so the log reads as
// a running account of the scan.
type LoggingReporter struct {
	logger *slog.Logger
}

// NewLoggingReporter creates a new LoggingReporter.
func NewLoggingReporter(logger *slog.Logger) *LoggingReporter {
	return &LoggingReporter{
		logger: logger,
	}
}

// OnChange logs the status change. Failures log at Error with the error
// message; everything else logs at Info.
func (r *LoggingReporter) OnChange(_ context.Context, status task.Status) error {
	attrs := []any{
		slog.String("state", string(status.State())),
		slog.Float64("completion_percent", status.CompletionPercent()),
		slog.Int64("trackable_id", status.TrackableID()),
	}
	if msg := status.Message(); msg != "" {
		attrs = append(attrs, slog.String("message", msg))
	}

	if status.State() == task.ReportingStateFailed {
		attrs = append(attrs, slog.String("error", status.Error()))
		r.logger.Error(status.Operation().String(), attrs...)
		return nil
	}

	r.logger.Info(status.Operation().String(), attrs...)
	return nil
}
