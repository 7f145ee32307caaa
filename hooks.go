package aliasmap

import (
	"sync"

	"github.com/agentstation/aliasmap/internal/cache"
	"github.com/agentstation/aliasmap/pkg/catalogs"
)

// Hook function types for rebuild events
type (
	// RebuildStartedHook is called when a rebuild begins
	RebuildStartedHook func(force bool)

	// RebuiltHook is called after a new snapshot replaced the previous one.
	// previous is nil for the first build.
	RebuiltHook func(previous, current *catalogs.Snapshot)

	// RebuildFailedHook is called when a rebuild produced no snapshot
	RebuildFailedHook func(err error)
)

// Hooks provides event callback registration.
type Hooks interface {
	OnRebuildStarted(RebuildStartedHook)
	OnRebuilt(RebuiltHook)
	OnRebuildFailed(RebuildFailedHook)
}

var (
	_ Hooks       = (*hooks)(nil)
	_ cache.Hooks = (*hooks)(nil)
)

// hooks manages event callbacks for rebuilds
type hooks struct {
	mu        sync.RWMutex
	onStarted []RebuildStartedHook
	onRebuilt []RebuiltHook
	onFailed  []RebuildFailedHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnRebuildStarted registers a callback for rebuild starts
func (h *hooks) OnRebuildStarted(fn RebuildStartedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStarted = append(h.onStarted, fn)
}

// OnRebuilt registers a callback for successful rebuilds
func (h *hooks) OnRebuilt(fn RebuiltHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRebuilt = append(h.onRebuilt, fn)
}

// OnRebuildFailed registers a callback for failed rebuilds
func (h *hooks) OnRebuildFailed(fn RebuildFailedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFailed = append(h.onFailed, fn)
}

// RebuildStarted implements cache.Hooks.
func (h *hooks) RebuildStarted(force bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onStarted {
		fn(force)
	}
}

// Rebuilt implements cache.Hooks.
func (h *hooks) Rebuilt(previous, current *catalogs.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onRebuilt {
		fn(previous, current)
	}
}

// RebuildFailed implements cache.Hooks.
func (h *hooks) RebuildFailed(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onFailed {
		fn(err)
	}
}

// OnRebuildStarted registers a callback for rebuild starts.
func (c *client) OnRebuildStarted(fn RebuildStartedHook) { c.hooks.OnRebuildStarted(fn) }

// OnRebuilt registers a callback for successful rebuilds.
func (c *client) OnRebuilt(fn RebuiltHook) { c.hooks.OnRebuilt(fn) }

// OnRebuildFailed registers a callback for failed rebuilds.
func (c *client) OnRebuildFailed(fn RebuildFailedHook) { c.hooks.OnRebuildFailed(fn) }
