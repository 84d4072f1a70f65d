// Package testutil provides shared test helpers: a manual clock for driving
// TTL expiry deterministically and an in-memory Redis bootstrap.
package testutil

import (
	"sync"
	"time"
)

// Clock is a manually-advanced clock. Inject Clock.Now as the cache clock so
// tests control expiry without waiting on wall time.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock creates a clock starting at the given time.
func NewClock(start time.Time) *Clock {
	return &Clock{t: start}
}

// Now returns the current clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
