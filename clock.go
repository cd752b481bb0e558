package throttlego

import (
	"sync"
	"time"
)

// Clock is the time source the limiters read "now" from.
// Implementations must be monotonic for comparisons within a key.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock. time.Now carries a monotonic reading,
// so differences between two of its values are not affected by clock jumps.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// ManualClock is a Clock that only moves when told to. Used by tests and
// by the simulation driver to play traffic without sleeping.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative values are ignored
// so the clock never runs backwards.
func (c *ManualClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set jumps the clock to t if t is not before the current reading.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	if !t.Before(c.now) {
		c.now = t
	}
	c.mu.Unlock()
}
