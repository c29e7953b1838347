package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/piimap/piimap/domain/repository"
	"github.com/piimap/piimap/domain/scan"
	"github.com/piimap/piimap/domain/task"
	"github.com/piimap/piimap/internal/config"
)

// PeriodicRescan enqueues rescan tasks for datasources whose last scan is
// older than the rescan interval.
type PeriodicRescan struct {
	dataSources scan.DataSourceStore
	queue       *Queue
	logger      *slog.Logger
	interval    time.Duration
	enabled     bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPeriodicRescan creates a new PeriodicRescan from config and dependencies.
func NewPeriodicRescan(
	cfg config.PeriodicRescanConfig,
	dataSources scan.DataSourceStore,
	queue *Queue,
	logger *slog.Logger,
) *PeriodicRescan {
	return &PeriodicRescan{
		dataSources: dataSources,
		queue:       queue,
		logger:      logger,
		interval:    cfg.Interval(),
		enabled:     cfg.Enabled(),
	}
}

// Start begins periodic rescans in a background goroutine.
// If disabled, this is a no-op.
func (p *PeriodicRescan) Start(ctx context.Context) {
	if !p.enabled {
		p.logger.Info("periodic rescan disabled")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Go(func() {
		p.run(ctx)
	})

	p.logger.Info("periodic rescan started", slog.Duration("interval", p.interval))
}

// Stop cancels the background goroutine and waits for it to finish.
func (p *PeriodicRescan) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.logger.Info("periodic rescan stopped")
}

func (p *PeriodicRescan) run(ctx context.Context) {
	// Check immediately on startup
	p.rescanDue(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.rescanDue(ctx)
		}
	}
}

func (p *PeriodicRescan) rescanDue(ctx context.Context) {
	due, err := p.dataSources.Find(ctx, repository.WithRescanDueBefore(time.Now().Add(-p.interval)))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("periodic rescan failed to find datasources",
			slog.String("error", err.Error()),
		)
		return
	}

	operations := task.NewPrescribedOperations(true).RescanDataSource()

	for _, ds := range due {
		payload := map[string]any{"datasource_id": ds.ID()}
		if err := p.queue.EnqueueOperations(ctx, operations, task.PriorityBackground, payload); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("periodic rescan failed to enqueue",
				slog.Int64("datasource_id", ds.ID()),
				slog.String("error", err.Error()),
			)
		}
	}

	p.logger.Debug("periodic rescan enqueued", slog.Int("count", len(due)))
}
