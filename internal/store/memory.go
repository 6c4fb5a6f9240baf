package store

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryCache is a concurrency-safe in-memory cache with a freshness TTL
// and a least-recently-used bound on the number of entries.
//
// Freshness is checked on every Get; stale entries read as misses and are
// dropped. Set overwrites any existing entry for the key.
type MemoryCache[V any] struct {
	mu sync.Mutex

	// key: lookup key, value: list node
	entries map[string]*entry[V]
	head    *entry[V] // most recently used
	tail    *entry[V] // least recently used

	// retention configuration
	ttl        time.Duration // 0 = never stale
	maxEntries int           // 0 = unbounded
	clock      clockwork.Clock
}

type entry[V any] struct {
	key      string
	value    V
	storedAt time.Time
	prev     *entry[V]
	next     *entry[V]
}

// Option configures a MemoryCache.
type Option func(*options)

type options struct {
	clock clockwork.Clock
}

// WithClock replaces the time source, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// NewMemoryCache creates a cache. ttl <= 0 disables expiry and
// maxEntries <= 0 disables the size bound.
func NewMemoryCache[V any](ttl time.Duration, maxEntries int, opts ...Option) *MemoryCache[V] {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryCache[V]{
		entries:    make(map[string]*entry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
		clock:      o.clock,
	}
}

// Get returns the fresh value for key.
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.expired(e, c.clock.Now()) {
		c.unlink(e)
		delete(c.entries, key)
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

// Set stores value under key, replacing any previous value, and evicts the
// least recently used entry when the cache is over its bound.
func (c *MemoryCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.storedAt = now
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value, storedAt: now}
	c.entries[key] = e
	c.addToFront(e)

	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

// Purge drops every stale entry and returns how many were removed.
func (c *MemoryCache[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl <= 0 {
		return 0
	}

	now := c.clock.Now()
	removed := 0
	// Walk from the LRU end; recency does not imply age, so visit all.
	for e := c.tail; e != nil; {
		prev := e.prev
		if c.expired(e, now) {
			c.unlink(e)
			delete(c.entries, e.key)
			removed++
		}
		e = prev
	}
	return removed
}

// Len returns the number of entries, stale or not.
func (c *MemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache[V]) expired(e *entry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.storedAt) >= c.ttl
}

func (c *MemoryCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *MemoryCache[V]) addToFront(e *entry[V]) {
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

func (c *MemoryCache[V]) unlink(e *entry[V]) {
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
	e.prev, e.next = nil, nil
}

func (c *MemoryCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlink(c.tail)
}
