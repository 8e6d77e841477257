// Package pricecache holds recently fetched prices in memory so repeated
// lookups inside a TTL window skip the market provider.
package pricecache

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a TTL map with lazy expiry: an expired entry is evicted by the read
// that finds it. There is no background sweep. Writes are last-writer-wins.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	now     Clock
}

// New creates an empty cache. A nil clock uses time.Now.
func New[V any](clock Clock) *Cache[V] {
	if clock == nil {
		clock = time.Now
	}
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		now:     clock,
	}
}

// Get returns the value stored under key if it has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, still := c.entries[key]; still && !c.now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
