package tracking

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/piimap/piimap/domain/task"
)

var (
	_ Reporter  = (*Cooldown)(nil)
	_ io.Closer = (*Cooldown)(nil)
)

// Cooldown wraps a Reporter and limits how frequently updates are delivered
// per status ID. A data scan reports progress after every container, which
// would hammer SQLite's single writer on large datasources; the cooldown
// collapses those bursts to one delivery per interval. Terminal states
// (completed, failed, skipped) always go through immediately, and the latest
// throttled status is flushed once the interval elapses.
type Cooldown struct {
	inner    Reporter
	interval time.Duration
	mu       sync.Mutex
	states   map[string]*throttleState
}

type throttleState struct {
	lastDelivered time.Time
	pending       *task.Status
	timer         *time.Timer
}

// NewCooldown creates a Cooldown wrapping the given reporter with the
// specified minimum interval between deliveries per status ID.
func NewCooldown(inner Reporter, interval time.Duration) *Cooldown {
	return &Cooldown{
		inner:    inner,
		interval: interval,
		states:   make(map[string]*throttleState),
	}
}

// OnChange receives a status update. Terminal states flush immediately;
// non-terminal states are throttled to at most one delivery per interval.
func (c *Cooldown) OnChange(ctx context.Context, status task.Status) error {
	id := status.ID()

	c.mu.Lock()

	if status.State().IsTerminal() {
		if state := c.states[id]; state != nil {
			if state.timer != nil {
				state.timer.Stop()
			}
			delete(c.states, id)
		}
		c.mu.Unlock()
		return c.inner.OnChange(ctx, status)
	}

	state, exists := c.states[id]
	if !exists {
		state = &throttleState{}
		c.states[id] = state
	}

	elapsed := time.Since(state.lastDelivered)
	if elapsed >= c.interval {
		if state.timer != nil {
			state.timer.Stop()
			state.timer = nil
		}
		state.pending = nil
		state.lastDelivered = time.Now()
		c.mu.Unlock()
		return c.inner.OnChange(ctx, status)
	}

	// Inside the cooldown window: remember the latest status and schedule a
	// flush unless one is already pending.
	statusCopy := status
	state.pending = &statusCopy

	if state.timer == nil {
		remaining := c.interval - elapsed
		state.timer = time.AfterFunc(remaining, func() {
			c.deliverPending(id)
		})
	}

	c.mu.Unlock()
	return nil
}

// Close flushes all pending statuses and stops all timers.
func (c *Cooldown) Close() error {
	c.mu.Lock()
	states := make(map[string]*throttleState, len(c.states))
	for k, v := range c.states {
		states[k] = v
	}
	c.states = make(map[string]*throttleState)
	c.mu.Unlock()

	for _, state := range states {
		if state.timer != nil {
			state.timer.Stop()
		}
		if state.pending != nil {
			_ = c.inner.OnChange(context.Background(), *state.pending)
		}
	}
	return nil
}

func (c *Cooldown) deliverPending(id string) {
	c.mu.Lock()
	state, exists := c.states[id]
	if !exists || state.pending == nil {
		if exists {
			state.timer = nil
		}
		c.mu.Unlock()
		return
	}

	status := *state.pending
	state.pending = nil
	state.lastDelivered = time.Now()
	state.timer = nil
	c.mu.Unlock()

	_ = c.inner.OnChange(context.Background(), status)
}
