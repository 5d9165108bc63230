package refresh

import (
	"log/slog"
	"sync"
	"time"
)

// Coordinator coalesces repeated refresh requests into a single delayed
// cache invalidation per resource key (trailing-edge debounce): a later
// request for the same key cancels and replaces the earlier one, and the
// invalidation fires only after the delay elapses with no new request.
//
// The coordinator owns its pending-timer map exclusively; after Stop it
// silently drops all requests instead of erroring, so callbacks racing a
// teardown have no dangling side effects.
type Coordinator struct {
	mu      sync.Mutex
	pending map[string]*time.Timer
	target  Invalidator
	logger  *slog.Logger
	stopped bool
}

// NewCoordinator creates a coordinator that invalidates target.
func NewCoordinator(target Invalidator, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		pending: make(map[string]*time.Timer),
		target:  target,
		logger:  logger,
	}
}

// Request schedules an invalidation of resourceKey after delay, replacing
// any pending invalidation for the same key.
func (c *Coordinator) Request(resourceKey string, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	if t, ok := c.pending[resourceKey]; ok {
		t.Stop()
	}

	c.pending[resourceKey] = time.AfterFunc(delay, func() {
		c.fire(resourceKey)
	})
}

func (c *Coordinator) fire(resourceKey string) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	delete(c.pending, resourceKey)
	c.mu.Unlock()

	c.target.Invalidate(resourceKey)
	c.logger.Debug("cache invalidated", "resource", resourceKey)
}

// Stop cancels all pending invalidations. Requests after Stop are no-ops.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	for key, t := range c.pending {
		t.Stop()
		delete(c.pending, key)
	}
}
