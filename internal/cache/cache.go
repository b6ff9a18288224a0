// Package cache provides the process-local expiring key/value store that
// fronts the provider path.
package cache

import (
	"sync"
	"time"
)

// TTL is the fixed lifetime of every entry.
const TTL = 24 * time.Hour

type entry[T any] struct {
	value    T
	storedAt time.Time
}

func (e entry[T]) expired(now time.Time) bool {
	return now.Sub(e.storedAt) >= TTL
}

// Cache is a mutex-guarded map whose entries expire TTL after being stored.
// Expiry is checked lazily on Get and in Sweep; no background goroutine runs.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	now     func() time.Time
}

// New creates an empty cache using the wall clock.
func New[T any]() *Cache[T] {
	return NewWithClock[T](time.Now)
}

// NewWithClock creates an empty cache reading time from now.
func NewWithClock[T any](now func() time.Time) *Cache[T] {
	return &Cache[T]{
		entries: make(map[string]entry[T]),
		now:     now,
	}
}

// Get returns the value for key if present and unexpired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.expired(c.now()) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, replacing any prior entry.
func (c *Cache[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[T]{value: value, storedAt: c.now()}
}

// Clear removes every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry[T])
}

// Sweep drops expired entries and returns how many were removed.
func (c *Cache[T]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Size returns the number of stored entries, expired or not.
func (c *Cache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
