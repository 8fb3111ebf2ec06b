package chain

import (
	"sync"
	"time"
)

// SecondsPerDay is the length of a withdrawal-limit day.
const SecondsPerDay = 24 * 60 * 60

// Clock provides the block timestamp of one chain.
type Clock interface {
	Now() uint64
}

// DayIndex returns the calendar day a timestamp falls in.
func DayIndex(ts uint64) uint64 {
	return ts / SecondsPerDay
}

// SystemClock reads wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// ManualClock is advanced explicitly. Simulations and tests construct one per chain.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

// NewManualClock creates a clock starting at ts.
func NewManualClock(ts uint64) *ManualClock {
	return &ManualClock{now: ts}
}

func (c *ManualClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d seconds.
func (c *ManualClock) Advance(d uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// Set moves the clock to ts. Time never goes backwards.
func (c *ManualClock) Set(ts uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts > c.now {
		c.now = ts
	}
}
