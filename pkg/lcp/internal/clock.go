// Package internal provides internal utilities for the lcp package.
package internal

import (
	"sync"
	"time"
)

// Clock tells the time used to measure how long an audit took.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock, including its monotonic reading.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// ManualClock only moves when told to. It is safe for concurrent use so that
// fakes running inside an audit can advance it.
type ManualClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewManualClock returns a clock stopped at t, or at a fixed instant if t is zero.
func NewManualClock(t time.Time) *ManualClock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0)
	}
	return &ManualClock{current: t}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward. Panics on a negative duration.
func (c *ManualClock) Advance(d time.Duration) {
	if d < 0 {
		panic("ManualClock.Advance: duration must be non-negative")
	}
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}
