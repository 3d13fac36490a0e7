package forge

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TTLCache is a fixed-capacity, LRU-evicted cache with a per-entry
// time-to-live, matchingcaching contract for read-only
// forge results (team membership ~15 min, issues ~5 min, repositories
// ~30 min). Capacity bounding is delegated to hashicorp/golang-lru/v2;
// TTL expiry is layered on top since that library does not expire
// entries on its own.
type TTLCache[V any] struct {
	lru *lru.Cache[string, ttlEntry[V]]
	ttl time.Duration
	now func() time.Time
}

type ttlEntry[V any] struct {
	value   V
	expires time.Time
}

// NewTTLCache builds a cache holding up to size entries, each entry
// expiring ttl after it was last set.
func NewTTLCache[V any](size int, ttl time.Duration) *TTLCache[V] {
	c, err := lru.New[string, ttlEntry[V]](size)
	if err != nil {
		// Only returns an error for size <= 0; callers pass static
		// positive constants, so this can't happen in practice.
		panic(err)
	}
	return &TTLCache[V]{lru: c, ttl: ttl, now: time.Now}
}

// Get returns the cached value for key if present and unexpired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(entry.expires) {
		c.lru.Remove(key)
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key with the cache's configured TTL.
func (c *TTLCache[V]) Set(key string, value V) {
	c.lru.Add(key, ttlEntry[V]{value: value, expires: c.now().Add(c.ttl)})
}

// Invalidate removes key, used when a write touches the cached entity
// so the next read doesn't serve stale data.
func (c *TTLCache[V]) Invalidate(key string) {
	c.lru.Remove(key)
}

// Len reports the number of entries currently cached (including any not
// yet lazily expired).
func (c *TTLCache[V]) Len() int {
	return c.lru.Len()
}
