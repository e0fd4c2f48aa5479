package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant reported by a StepClock created with a zero
// start time.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// StepClock is a deterministic wall clock for tests.
//
// Every call to Now returns the previous instant advanced by a fixed step,
// so elapsed times and start stamps are reproducible in golden files.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	ticks int64
}

// NewStepClock creates a clock starting at start (Epoch when zero) that
// advances by step on every reading.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	if start.IsZero() {
		start = Epoch
	}
	return &StepClock{start: start, step: step}
}

// Now returns the current instant and advances the clock.
//
// The first call returns the start time.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.ticks) * c.step)
	c.ticks++
	return t
}

// Ticks returns how many times Now has been called.
func (c *StepClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock to its start time.
//
// Used for test reuse. After Reset(), the next call to Now() returns start.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
