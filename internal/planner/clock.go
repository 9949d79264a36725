package planner

import "sync/atomic"

// Clock is the monotonic logical clock for trace ordering.
//
// Every trace event is stamped with a strictly increasing seq from this
// clock, never with wall time: equal evaluations must produce identical
// traces, and wall clocks cannot promise that.
//
// Thread-safety: safe for concurrent use. Evaluation itself runs
// single-threaded.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
// Each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
