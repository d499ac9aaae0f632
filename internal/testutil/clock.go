package testutil

import (
	"sync"
	"time"
)

// Epoch is the instant deterministic test clocks start from.
var Epoch = time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)

// DeterministicClock is a wall clock for tests that advances by a fixed
// step on every reading. With a zero step every reading is identical,
// which makes entry dates and elapsed times reproducible in golden output.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewDeterministicClock creates a clock at Epoch advancing by step per Now.
func NewDeterministicClock(step time.Duration) *DeterministicClock {
	return &DeterministicClock{now: Epoch, step: step}
}

// NewFixedClock creates a clock that always reads Epoch.
func NewFixedClock() *DeterministicClock {
	return NewDeterministicClock(0)
}

// Now returns the current reading, then advances the clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Reset moves the clock back to Epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = Epoch
}
