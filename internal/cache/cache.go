// Package cache provides a small in-memory TTL cache and a variant with a
// self-gating background cleaner. Both the join-session store and the
// verification-code store are built on it.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	data V
	// expireAt is unix milliseconds; zero means the entry never expires
	// and only an explicit Remove or Clear can evict it.
	expireAt int64
}

func (e entry[V]) expiredAt(nowMillis int64) bool {
	return e.expireAt > 0 && nowMillis > e.expireAt
}

// Cache is a concurrency-safe key/value store with per-entry expiry.
// Expired entries are invisible to Get but stay in the map until a caller
// removes them or a cleaner sweep does.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
}

func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{entries: make(map[K]entry[V])}
}

// Get returns the live value for key. A lazily-expired entry appears
// absent; it is not removed here so that callers layering their own
// eviction (or the cleaner) stay in charge of removal.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || e.expiredAt(nowMillis()) {
		var zero V
		return zero, false
	}
	return e.data, true
}

// Peek returns the stored value along with its expired flag, letting
// callers implement lazy eviction with access to the stale value.
func (c *Cache[K, V]) Peek(key K) (value V, expired bool, ok bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false, false
	}
	return e.data, e.expiredAt(nowMillis()), true
}

// Put stores value under key. A non-positive ttl creates a permanent
// entry.
func (c *Cache[K, V]) Put(key K, value V, ttl time.Duration) {
	var expireAt int64
	if ttl > 0 {
		expireAt = nowMillis() + ttl.Milliseconds()
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{data: value, expireAt: expireAt}
	c.mu.Unlock()
}

func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}

// Len counts live and expired entries alike; expired entries still occupy
// the map until swept.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]K, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// removeExpired deletes every expired entry and returns the removed pairs.
func (c *Cache[K, V]) removeExpired() []removed[K, V] {
	now := nowMillis()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []removed[K, V]
	for k, e := range c.entries {
		if e.expiredAt(now) {
			delete(c.entries, k)
			out = append(out, removed[K, V]{key: k, value: e.data})
		}
	}
	return out
}

type removed[K comparable, V any] struct {
	key   K
	value V
}

func nowMillis() int64 { return time.Now().UnixMilli() }
