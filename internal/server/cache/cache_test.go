package cache

import (
	"testing"
	"time"

	"github.com/agentstation/aliasmap/pkg/catalogs"
)

func snapshotAt(t time.Time) *catalogs.Snapshot {
	return catalogs.NewSnapshot([]catalogs.Alias{
		{Namespace: "Microsoft.Compute", ResourceType: "virtualMachines", AliasName: "Microsoft.Compute/virtualMachines/sku.name"},
	}, t, catalogs.ProviderReport{Total: 1, Succeeded: 1, Failed: []string{}})
}

// TestRemember tests that values are computed once per key.
func TestRemember(t *testing.T) {
	c := New(time.Minute, time.Minute)
	snap := snapshotAt(time.Unix(1700000000, 0))

	calls := 0
	compute := func() []string {
		calls++
		return []string{"Microsoft.Compute"}
	}

	key := Key(snap, "namespaces")
	first := Remember(c, key, compute)
	second := Remember(c, key, compute)

	if calls != 1 {
		t.Errorf("expected 1 computation, got %d", calls)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Errorf("unexpected results %v %v", first, second)
	}

	stats := c.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.ItemCount != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

// TestKey_ScopedToSnapshot tests that a rebuilt snapshot misses the old entries.
func TestKey_ScopedToSnapshot(t *testing.T) {
	older := snapshotAt(time.Unix(1700000000, 0))
	newer := snapshotAt(time.Unix(1700003600, 0))

	if Key(older, "aliases", "q") == Key(newer, "aliases", "q") {
		t.Error("keys for different snapshots must differ")
	}
	if Key(older, "aliases", "q") != Key(older, "aliases", "q") {
		t.Error("keys must be stable")
	}
	if Key(nil, "aliases") != "" {
		t.Error("nil snapshot must yield an empty key")
	}
}

// TestKey_SameBuildTime tests that snapshots sharing a timestamp keep separate entries.
func TestKey_SameBuildTime(t *testing.T) {
	at := time.Unix(1700000000, 0)
	first := catalogs.NewSnapshot([]catalogs.Alias{{Namespace: "Microsoft.Web", ResourceType: "sites", AliasName: "Microsoft.Web/sites/kind"}}, at, catalogs.ProviderReport{})
	second := catalogs.NewSnapshot(nil, at, catalogs.ProviderReport{})

	if Key(first, "aliases") == Key(second, "aliases") {
		t.Fatal("keys for snapshots built at the same instant must differ")
	}

	c := New(time.Minute, time.Minute)
	got := Remember(c, Key(first, "aliases"), first.Aliases)
	if len(got) != 1 {
		t.Fatalf("expected 1 alias, got %d", len(got))
	}
	if got := Remember(c, Key(second, "aliases"), second.Aliases); len(got) != 0 {
		t.Errorf("second snapshot served the first one's result: %v", got)
	}
}

// TestRemember_EmptyKeyNotStored tests the pass-through path.
func TestRemember_EmptyKeyNotStored(t *testing.T) {
	c := New(time.Minute, time.Minute)

	calls := 0
	for i := 0; i < 2; i++ {
		Remember(c, "", func() int { calls++; return calls })
	}
	if calls != 2 {
		t.Errorf("expected 2 computations, got %d", calls)
	}
	if c.ItemCount() != 0 {
		t.Errorf("expected empty cache, got %d items", c.ItemCount())
	}
}

// TestClear tests flushing.
func TestClear(t *testing.T) {
	c := New(time.Minute, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if c.ItemCount() != 0 {
		t.Errorf("expected 0 items after Clear, got %d", c.ItemCount())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after Clear")
	}
}
