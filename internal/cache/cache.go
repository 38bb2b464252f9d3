// Package cache provides a fixed-capacity key→value store with
// least-recently-used eviction and per-entry TTL expiry, used to avoid
// redundant calls to metered upstream APIs.
package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cache is a bounded LRU cache with lazy TTL expiry. The zero value is not
// usable; construct with New.
type Cache[V any] struct {
	capacity int
	ttl      time.Duration
	clock    clockwork.Clock

	mu      sync.Mutex
	entries map[string]*entry[V]
	head    *entry[V] // most recently used
	tail    *entry[V] // least recently used
}

type entry[V any] struct {
	key      string
	value    V
	storedAt time.Time
	prev     *entry[V]
	next     *entry[V]
}

// Stats is the side-effect-free introspection surface of a cache.
type Stats struct {
	Size        int     `json:"size"`
	Capacity    int     `json:"capacity"`
	Utilization float64 `json:"utilization"`
}

// New creates a cache holding at most capacity entries, each valid for ttl.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	return NewWithClock[V](capacity, ttl, clockwork.NewRealClock())
}

// NewWithClock creates a cache with an injected time source for tests.
func NewWithClock[V any](capacity int, ttl time.Duration, clock clockwork.Clock) *Cache[V] {
	return &Cache[V]{
		capacity: capacity,
		ttl:      ttl,
		clock:    clock,
		entries:  make(map[string]*entry[V]),
	}
}

// Get returns the value for key if present and unexpired, promoting it to
// most-recently-used. Expired entries are evicted on access, so expiry does
// not depend on the background sweep.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.clock.Since(e.storedAt) > c.ttl {
		c.removeEntry(e)
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

// Set inserts or updates key. Updates refresh the timestamp and promote the
// entry; inserts that overflow the capacity evict exactly one LRU entry.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.storedAt = c.clock.Now()
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value, storedAt: c.clock.Now()}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.capacity {
		c.removeEntry(c.tail)
	}
}

// CleanExpired sweeps every entry older than the TTL and returns the count
// removed. Intended for periodic maintenance independent of access patterns.
func (c *Cache[V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for e := c.tail; e != nil; {
		prev := e.prev
		if c.clock.Since(e.storedAt) > c.ttl {
			c.removeEntry(e)
			removed++
		}
		e = prev
	}
	return removed
}

// Clear drops all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[V])
	c.head = nil
	c.tail = nil
}

// Len returns the current entry count.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetStats returns size, capacity and utilization.
func (c *Cache[V]) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:        len(c.entries),
		Capacity:    c.capacity,
		Utilization: float64(len(c.entries)) / float64(c.capacity),
	}
}

func (c *Cache[V]) removeEntry(e *entry[V]) {
	if e == nil {
		return
	}
	delete(c.entries, e.key)
	c.unlink(e)
}

func (c *Cache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *Cache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache[V]) unlink(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}
