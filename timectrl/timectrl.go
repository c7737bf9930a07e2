package timectrl

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

// Clock gives read access to the instant a component is working on. The
// snapshot layer uses WallClock; sweeps use a SweepClock.
type Clock interface {
	Now() time.Time
}

// WallClock reports the current UTC wall-clock time.
type WallClock struct{}

// Now returns time.Now in UTC.
func (WallClock) Now() time.Time { return time.Now().UTC() }

// SweepClock enumerates the instants of a sweep window in order and drives a
// step function at each one. It implements Clock: Now is the instant being
// processed (or the last one processed once Run returns).
type SweepClock struct {
	mu      sync.RWMutex
	window  model.SweepWindow
	first   int64
	current time.Time

	listeners []func(time.Time)
}

// NewSweepClock constructs a clock positioned at the window start.
func NewSweepClock(window model.SweepWindow) *SweepClock {
	return &SweepClock{
		window:  window,
		current: window.Start,
	}
}

// ResumeAfter positions the clock on the first grid instant strictly after
// t. Instants at or before t are skipped by Run.
func (c *SweepClock) ResumeAfter(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Before(c.window.Start) {
		c.first = 0
		c.current = c.window.Start
		return
	}
	c.first = int64(t.Sub(c.window.Start)/c.window.Step) + 1
	c.current = c.window.InstantAt(c.first)
}

// Now returns the current sweep instant. Implements Clock.
func (c *SweepClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Remaining returns how many instants Run would still visit.
func (c *SweepClock) Remaining() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := c.window.InstantCount() - c.first
	if n < 0 {
		return 0
	}
	return n
}

// AddListener registers a callback invoked after every completed instant.
func (c *SweepClock) AddListener(fn func(time.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Run calls step for each remaining instant in order. Cancellation is only
// observed between instants: a step that has started always runs to
// completion. Run stops at the first step error and returns it; if ctx is
// cancelled it returns ctx.Err().
func (c *SweepClock) Run(ctx context.Context, step func(context.Context, time.Time) error) error {
	total := c.window.InstantCount()

	c.mu.RLock()
	k := c.first
	c.mu.RUnlock()

	for ; k < total; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		instant := c.window.InstantAt(k)

		c.mu.Lock()
		c.current = instant
		c.mu.Unlock()

		if err := step(ctx, instant); err != nil {
			return err
		}

		c.mu.Lock()
		c.first = k + 1
		listeners := slices.Clone(c.listeners)
		c.mu.Unlock()

		for _, fn := range listeners {
			fn(instant)
		}
	}
	return nil
}
