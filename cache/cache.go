/*
Package cache provides the in-process TTL cache for computed leave data.

PURPOSE:
  Balance aggregation and conflict detection are recomputed from the full
  request history on every read. This cache wraps those computations so
  repeated reads within the TTL window hit memory instead of the store.

KEY CONCEPTS:
  - Deterministic keys: operation name + arguments (keys.go), so identical
    calls always hit the same entry.
  - TTL expiry: entries expire lazily on read and are overwritten on every
    recompute.
  - Invalidation: ANY mutation to a leave request or TOIL entry for user U
    clears all entries keyed by U plus every global aggregate (team
    calendar, admin stats, pending counts), regardless of whose mutation
    triggered it. Global aggregates are conservatively cleared in full
    rather than selectively patched.

CONCURRENCY:
  A single-process sync.RWMutex map. Concurrent readers may observe a
  stale-but-valid entry while a writer invalidates; acceptable within the
  TTL window because invalidation after a user's own mutation is
  synchronous and unconditional. The cache is NOT shared across processes.

DESIGN:
  Explicitly constructed, never a package-level singleton, so every test
  can run against an isolated instance.
*/
package cache

import (
	"strings"
	"sync"
	"time"
)

// Default TTLs. Balances are minutes-scale; admin-wide aggregates a little
// longer because they are expensive and advisory.
const (
	DefaultBalanceTTL = 2 * time.Minute
	DefaultAdminTTL   = 5 * time.Minute
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a generic TTL key/value store.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	// now is injectable for expiry tests; defaults to time.Now.
	now func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewWithClock creates a cache with an injected clock.
func NewWithClock(now func() time.Time) *Cache {
	c := New()
	c.now = now
	return c
}

// Get returns the value for key, or (nil, false) on miss or expiry.
// Expired entries are removed on the way out.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have renewed it.
		if cur, ok := c.entries[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given TTL, overwriting any previous
// entry.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
}

// Delete removes a single entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DeletePrefix removes every entry whose key starts with prefix.
func (c *Cache) DeletePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Clear removes everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len returns the number of entries, including any not yet lazily expired.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
