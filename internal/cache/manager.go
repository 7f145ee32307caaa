// Package cache owns the current catalog snapshot and decides when it is
// rebuilt. Reads never wait on a lock: the snapshot sits behind an atomic
// pointer and is replaced whole. Rebuilds are single-flight.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/agentstation/aliasmap/pkg/catalogs"
	"github.com/agentstation/aliasmap/pkg/constants"
	"github.com/agentstation/aliasmap/pkg/errors"
	"github.com/agentstation/aliasmap/pkg/logging"
)

const rebuildKey = "rebuild"

// Builder produces a brand-new snapshot.
type Builder interface {
	Build(ctx context.Context) (*catalogs.Snapshot, error)
}

// Recorder receives cache measurements.
type Recorder interface {
	Rebuild(snap *catalogs.Snapshot, err error)
	CacheRequest(result string)
}

// Hooks observe rebuilds. Methods run on the rebuild goroutine and must
// not block for long.
type Hooks interface {
	RebuildStarted(force bool)
	Rebuilt(previous, current *catalogs.Snapshot)
	RebuildFailed(err error)
}

type nopRecorder struct{}

func (nopRecorder) Rebuild(*catalogs.Snapshot, error) {}
func (nopRecorder) CacheRequest(string)               {}

// Manager serves snapshots within their TTL and rebuilds them on demand.
type Manager struct {
	builder Builder
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  *zerolog.Logger
	metrics Recorder

	current    atomic.Pointer[catalogs.Snapshot]
	group      singleflight.Group
	rebuilding atomic.Bool

	mu      sync.RWMutex
	failure *Failure
	hooks   []Hooks
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets how long a snapshot stays fresh.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithRebuildTimeout bounds a single rebuild. Zero disables the bound.
func WithRebuildTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithClock sets the time source used for age and freshness.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRecorder sets where cache measurements go.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.metrics = r
		}
	}
}

// WithHooks registers rebuild observers.
func WithHooks(h ...Hooks) Option {
	return func(m *Manager) {
		m.hooks = append(m.hooks, h...)
	}
}

// New creates an empty Manager. Nothing is built until the first Get.
func New(builder Builder, opts ...Option) *Manager {
	m := &Manager{
		builder: builder,
		ttl:     constants.DefaultCacheTTL,
		timeout: constants.RebuildTimeout,
		now:     time.Now,
		logger:  logging.Default(),
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddHooks registers rebuild observers after construction.
func (m *Manager) AddHooks(h Hooks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, h)
}

// TTL returns the freshness window.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Current returns the installed snapshot without triggering a rebuild.
// It is nil until the first successful build.
func (m *Manager) Current() *catalogs.Snapshot {
	return m.current.Load()
}

// Get returns a fresh snapshot, rebuilding when forced, empty or expired.
// Concurrent callers share one rebuild. The rebuild is detached from ctx;
// a caller whose ctx ends first gets the previous snapshot, if any. A
// failed rebuild also falls back to the previous snapshot, so an error is
// returned only when no snapshot has ever been built.
func (m *Manager) Get(ctx context.Context, force bool) (*catalogs.Snapshot, error) {
	snap := m.current.Load()
	if !force && m.fresh(snap) {
		m.metrics.CacheRequest("fresh")
		return snap, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := m.group.DoChan(rebuildKey, func() (any, error) {
		return m.rebuild(detached, force)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return m.fallback(res.Err)
		}
		m.metrics.CacheRequest("rebuilt")
		return res.Val.(*catalogs.Snapshot), nil
	case <-ctx.Done():
		return m.fallback(errors.Join(errors.ErrCanceled, ctx.Err()))
	}
}

// Refresh forces a rebuild and returns the resulting snapshot.
func (m *Manager) Refresh(ctx context.Context) (*catalogs.Snapshot, error) {
	return m.Get(ctx, true)
}

// Valid reports whether the current snapshot is within its TTL.
func (m *Manager) Valid() bool {
	return m.fresh(m.current.Load())
}

// Rebuilding reports whether a rebuild is running.
func (m *Manager) Rebuilding() bool {
	return m.rebuilding.Load()
}

// Failure is a rebuild that did not produce a snapshot.
type Failure struct {
	Err error
	At  time.Time
}

// LastFailure returns the most recent failed rebuild, or nil once a later
// rebuild has succeeded.
func (m *Manager) LastFailure() *Failure {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failure
}

// Fresh reports whether snap is younger than the TTL.
func (m *Manager) Fresh(snap *catalogs.Snapshot) bool {
	return m.fresh(snap)
}

func (m *Manager) fresh(snap *catalogs.Snapshot) bool {
	return snap != nil && snap.Age(m.now()) < m.ttl
}

func (m *Manager) fallback(err error) (*catalogs.Snapshot, error) {
	if snap := m.current.Load(); snap != nil {
		m.metrics.CacheRequest("stale")
		m.logger.Warn().Err(err).Time("built_at", snap.BuiltAt()).Msg("Serving previous catalog snapshot")
		return snap, nil
	}
	m.metrics.CacheRequest("error")
	return nil, err
}

// rebuild runs inside the single flight.
func (m *Manager) rebuild(ctx context.Context, force bool) (*catalogs.Snapshot, error) {
	previous := m.current.Load()
	// A flight that finished just before this one may already have
	// produced a fresh snapshot.
	if !force && m.fresh(previous) {
		return previous, nil
	}

	m.rebuilding.Store(true)
	defer m.rebuilding.Store(false)

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	hooks := m.snapshotHooks()
	for _, h := range hooks {
		h.RebuildStarted(force)
	}

	m.logger.Info().Bool("force", force).Bool("had_snapshot", previous != nil).Msg("Rebuilding catalog")
	snap, err := m.builder.Build(ctx)
	m.metrics.Rebuild(snap, err)
	if err == nil && snap == nil {
		err = errors.ErrNoCatalog
	}
	if err != nil {
		m.mu.Lock()
		m.failure = &Failure{Err: err, At: m.now()}
		m.mu.Unlock()
		m.logger.Error().Err(err).Msg("Catalog rebuild failed")
		for _, h := range hooks {
			h.RebuildFailed(err)
		}
		return nil, err
	}

	m.current.Store(snap)
	m.mu.Lock()
	m.failure = nil
	m.mu.Unlock()

	for _, h := range hooks {
		h.Rebuilt(previous, snap)
	}
	return snap, nil
}

func (m *Manager) snapshotHooks() []Hooks {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Hooks(nil), m.hooks...)
}
