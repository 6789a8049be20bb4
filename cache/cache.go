// Package cache provides a bounded, mutex-guarded LRU map with a single
// global time-to-live. It backs the interaction-count and profile caches.
//
// The lock is only ever held for the in-memory map operation. Callers are
// expected to partition keys into hits and misses with GetBatch, release,
// perform their (slow) network fetch, and re-acquire via SetBatch — the
// cache must never be held across I/O.
package cache

import (
	"sync"
	"time"
)

// Clock supplies "now" for TTL computation. Injectable so tests can advance
// time deterministically; production code passes nil and gets time.Now.
type Clock func() time.Time

type entry[K comparable, V any] struct {
	key        K
	value      V
	insertedAt time.Time
}

// TTL is a keyed cache bounded by capacity with LRU eviction. An entry
// older than the configured TTL behaves as a miss; the stale entry is left
// in place and overwritten by the next Set rather than purged eagerly.
type TTL[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      Clock
	entries  map[K]*node[K, V]
	order    list[K, V] // most recently used at the front
}

// New creates a cache with the given capacity and TTL. Created once at
// startup and shared; all operations are safe for concurrent use.
func New[K comparable, V any](capacity int, ttl time.Duration, now Clock) *TTL[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	if now == nil {
		now = time.Now
	}
	return &TTL[K, V]{
		capacity: capacity,
		ttl:      ttl,
		now:      now,
		entries:  make(map[K]*node[K, V], capacity),
	}
}

// Get returns the cached value for key. A present entry older than the TTL
// is reported as a miss. A hit promotes the key to most recently used; a
// stale entry is left where it is.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(key)
}

// GetBatch applies Get to every key. Keys that miss are simply absent from
// the result. The whole batch runs under one lock acquisition.
func (c *TTL[K, V]) GetBatch(keys []K) map[K]V {
	c.mu.Lock()
	defer c.mu.Unlock()

	hits := make(map[K]V, len(keys))
	for _, key := range keys {
		if v, ok := c.get(key); ok {
			hits[key] = v
		}
	}
	return hits
}

// Set inserts or replaces the value for key, stamping it with the current
// time. When the insert would exceed capacity the least recently used entry
// is evicted, regardless of whether it is still fresh.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value)
}

// SetBatch applies Set to every pair under one lock acquisition.
func (c *TTL[K, V]) SetBatch(values map[K]V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, value := range values {
		c.set(key, value)
	}
}

// Invalidate removes keys unconditionally. Called when the authoritative
// source is known to have changed (e.g. the user just published an
// interaction) so the next read recomputes instead of waiting out the TTL.
func (c *TTL[K, V]) Invalidate(keys ...K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		if n, ok := c.entries[key]; ok {
			c.order.remove(n)
			delete(c.entries, key)
		}
	}
}

// Len returns the number of entries currently held, fresh or stale.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTL[K, V]) get(key K) (V, bool) {
	var zero V
	n, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(n.entry.insertedAt) >= c.ttl {
		return zero, false
	}
	c.order.moveToFront(n)
	return n.entry.value, true
}

func (c *TTL[K, V]) set(key K, value V) {
	if n, ok := c.entries[key]; ok {
		n.entry.value = value
		n.entry.insertedAt = c.now()
		c.order.moveToFront(n)
		return
	}
	if len(c.entries) >= c.capacity {
		if oldest := c.order.back(); oldest != nil {
			c.order.remove(oldest)
			delete(c.entries, oldest.entry.key)
		}
	}
	n := c.order.pushFront(entry[K, V]{key: key, value: value, insertedAt: c.now()})
	c.entries[key] = n
}
