package aliasmap

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/aliasmap/pkg/catalogs"
	"github.com/agentstation/aliasmap/pkg/errors"
	"github.com/agentstation/aliasmap/pkg/logging"
)

type stubProviders struct {
	mu      sync.Mutex
	aliases map[string][]catalogs.Alias
	order   []string
	listErr error
	builds  atomic.Int32
}

func newStubProviders() *stubProviders {
	return &stubProviders{
		order: []string{"Microsoft.Compute", "Microsoft.Storage"},
		aliases: map[string][]catalogs.Alias{
			"Microsoft.Compute": {
				{Namespace: "Microsoft.Compute", ResourceType: "virtualMachines", AliasName: "Microsoft.Compute/virtualMachines/sku.name"},
				{Namespace: "Microsoft.Compute", ResourceType: "disks", AliasName: "Microsoft.Compute/disks/sku.name"},
			},
			"Microsoft.Storage": {
				{Namespace: "Microsoft.Storage", ResourceType: "storageAccounts", AliasName: "Microsoft.Storage/storageAccounts/sku.name"},
			},
		},
	}
}

func (s *stubProviders) ListProviders(context.Context) ([]string, error) {
	s.builds.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]string(nil), s.order...), nil
}

func (s *stubProviders) FetchAliases(_ context.Context, ns string) ([]catalogs.Alias, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliases[ns], nil
}

func newTestClient(t *testing.T, pc ProviderClient, opts ...Option) Client {
	t.Helper()
	base := []Option{
		WithProviderClient(pc),
		WithLogger(logging.NewNopLogger()),
	}
	c, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.AutoRefreshOff() })
	return c
}

func TestNewRequiresSubscription(t *testing.T) {
	_, err := New(WithLogger(logging.NewNopLogger()))
	require.Error(t, err)

	var cfgErr *errors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero workers", WithWorkers(0)},
		{"negative ttl", WithTTL(-time.Second)},
		{"zero budget", WithRequestsPerMinute(0, 10)},
		{"max below base", WithRetry(3, 2*time.Second, time.Second)},
		{"zero refresh interval", WithAutoRefreshInterval(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(WithProviderClient(newStubProviders()), tt.opt)
			assert.True(t, errors.IsValidationError(err), "got %v", err)
		})
	}
}

func TestClientQuery(t *testing.T) {
	pc := newStubProviders()
	c := newTestClient(t, pc)
	ctx := context.Background()

	assert.False(t, c.Ready())

	got, err := c.Query(ctx, catalogs.Query{Text: "SKU"}, false)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.True(t, c.Ready())

	got, err = c.Query(ctx, catalogs.Query{Namespace: "Microsoft.Storage"}, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Microsoft.Storage/storageAccounts/sku.name", got[0].AliasName)

	// Served from the cache.
	assert.Equal(t, int32(1), pc.builds.Load())
}

func TestClientNamespaces(t *testing.T) {
	c := newTestClient(t, newStubProviders())
	ctx := context.Background()

	names, err := c.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Microsoft.Compute", "Microsoft.Storage"}, names)

	summaries, err := c.NamespaceSummaries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []catalogs.NamespaceSummary{
		{Namespace: "Microsoft.Compute", Count: 2},
		{Namespace: "Microsoft.Storage", Count: 1},
	}, summaries)
}

func TestClientRefreshFiresHooks(t *testing.T) {
	pc := newStubProviders()
	c := newTestClient(t, pc)
	ctx := context.Background()

	var started, rebuilt atomic.Int32
	var firstPrevious atomic.Bool
	c.OnRebuildStarted(func(bool) { started.Add(1) })
	c.OnRebuilt(func(previous, current *catalogs.Snapshot) {
		if rebuilt.Add(1) == 1 {
			firstPrevious.Store(previous == nil)
		}
		assert.NotNil(t, current)
	})

	_, err := c.Snapshot(ctx, false)
	require.NoError(t, err)
	_, err = c.Refresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(2), started.Load())
	assert.Equal(t, int32(2), rebuilt.Load())
	assert.True(t, firstPrevious.Load())
	assert.Equal(t, int32(2), pc.builds.Load())
}

func TestClientFailedRebuild(t *testing.T) {
	pc := newStubProviders()
	pc.listErr = errors.NewAPIError("", 500, "internal")
	c := newTestClient(t, pc, WithRetry(1, time.Millisecond, time.Millisecond))

	var failed atomic.Int32
	c.OnRebuildFailed(func(error) { failed.Add(1) })

	_, err := c.Snapshot(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.IsProviderListUnavailable(err))
	assert.Equal(t, int32(1), failed.Load())

	stats := c.Stats()
	assert.False(t, stats.CacheValid)
	assert.Nil(t, stats.CacheAgeSeconds)
	assert.NotEmpty(t, stats.LastError)
}

func TestAutoRefresh(t *testing.T) {
	pc := newStubProviders()
	c := newTestClient(t, pc, WithAutoRefreshInterval(10*time.Millisecond))

	require.NoError(t, c.AutoRefreshOn())
	assert.Eventually(t, func() bool { return pc.builds.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.AutoRefreshOff())
	require.NoError(t, c.AutoRefreshOff())
	assert.True(t, c.Ready())
}

func TestSubscriptionID(t *testing.T) {
	c := newTestClient(t, newStubProviders(), WithSubscriptionID(" 00000000-1111-2222-3333-444444444444 "))
	assert.Equal(t, "00000000-1111-2222-3333-444444444444", c.SubscriptionID())
}

func TestFreshJudgesTheGivenSnapshot(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	c := newTestClient(t, newStubProviders(),
		WithSubscriptionID("sub"),
		WithTTL(time.Minute),
		WithClock(clock),
	)

	older, err := c.Snapshot(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, c.Fresh(older))

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	newer, err := c.Refresh(context.Background())
	require.NoError(t, err)

	assert.True(t, c.Stats().CacheValid)
	assert.True(t, c.Fresh(newer))
	assert.False(t, c.Fresh(older), "an expired snapshot stays stale after a newer one is installed")
	assert.False(t, c.Fresh(nil))
}
