package executor

import "sync/atomic"

// Clock issues task ids. Ids are strictly increasing, so a smaller id
// always means an earlier submission.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The executor only calls Next while holding its mutex, which keeps queue
// order and id order identical.
type Clock struct {
	seq atomic.Uint64
}

// NewClock creates a clock whose first id is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose first id is start+1. Used to keep ids
// unique across executors that share a log.
func NewClockAt(start uint64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next id.
func (c *Clock) Next() uint64 {
	return c.seq.Add(1)
}

// Current returns the last id issued, or the start value.
func (c *Clock) Current() uint64 {
	return c.seq.Load()
}
