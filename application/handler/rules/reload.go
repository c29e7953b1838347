// Package rules provides handlers for rule lifecycle operations.
package rules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/piimap/piimap/application/service"
)

// Reload handles the rule reload task operation. It swaps the recognition
// engine's rule snapshot; on failure the previous snapshot stays active.
type Reload struct {
	recognition *service.Recognition
	logger      *slog.Logger
}

// NewReload creates a new Reload handler.
func NewReload(recognition *service.Recognition, logger *slog.Logger) *Reload {
	return &Reload{
		recognition: recognition,
		logger:      logger,
	}
}

// Execute processes the rule reload task.
func (h *Reload) Execute(ctx context.Context, _ map[string]any) error {
	if err := h.recognition.LoadRules(ctx); err != nil {
		h.logger.Error("rule reload failed, previous snapshot stays active",
			slog.String("error", err.Error()))
		return fmt.Errorf("reload rules: %w", err)
	}
	return nil
}
