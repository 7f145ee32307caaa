// Package cache memoizes derived HTTP responses for the current catalog snapshot.
// It uses patrickmn/go-cache for TTL-based expiry; keys carry the snapshot's
// sequence number so a rebuilt snapshot never sees results computed from an older one.
package cache

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/agentstation/aliasmap/pkg/catalogs"
)

// Cache wraps go-cache with hit accounting and snapshot-scoped keys.
type Cache struct {
	store  *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a new cache with the given TTL and cleanup interval.
// defaultTTL is the default expiration time for cache entries.
// cleanupInterval is how often expired items are removed from memory.
func New(defaultTTL, cleanupInterval time.Duration) *Cache {
	return &Cache{
		store: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Key scopes parts to snap. A nil snapshot yields an empty key, which is never stored.
func Key(snap *catalogs.Snapshot, parts ...string) string {
	if snap == nil {
		return ""
	}
	return strconv.FormatUint(snap.Seq(), 36) + "|" + strings.Join(parts, "|")
}

// Get retrieves a value from the cache.
func (c *Cache) Get(key string) (any, bool) {
	v, ok := c.store.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores a value in the cache with default TTL.
func (c *Cache) Set(key string, value any) {
	if key == "" {
		return
	}
	c.store.Set(key, value, gocache.DefaultExpiration)
}

// Remember returns the cached value for key or stores the result of compute.
// Concurrent misses may compute more than once; the last write wins.
func Remember[T any](c *Cache, key string, compute func() T) T {
	if c == nil || key == "" {
		return compute()
	}
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed
		}
	}
	v := compute()
	c.Set(key, v)
	return v
}

// Clear removes all items from the cache.
func (c *Cache) Clear() {
	c.store.Flush()
}

// ItemCount returns the number of items in the cache.
func (c *Cache) ItemCount() int {
	return c.store.ItemCount()
}

// Stats returns cache statistics.
type Stats struct {
	ItemCount int   `json:"item_count"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
}

// GetStats returns current cache statistics.
func (c *Cache) GetStats() Stats {
	return Stats{
		ItemCount: c.store.ItemCount(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
	}
}
