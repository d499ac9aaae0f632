package engine

import (
	"sync/atomic"
	"time"
)

// Clock issues transaction sequence numbers.
//
// Every executed transaction is stamped with a strictly increasing number
// from this clock; malformed records never draw one. The Driver's
// single dispatch goroutine is the only caller in practice, but Clock is
// safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// WallClock supplies wall-clock time for entry/delivery timestamps and for
// latency measurement. Tests substitute a fixed clock for reproducible
// output.
type WallClock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}
