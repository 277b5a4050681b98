// Package clock abstracts wall-clock access for the lock manager.
// Lock expiry is compared against wall-clock time, so every component
// that reads "now" or sleeps does it through the IClock interface.
// Tests substitute a ManualClock to drive expiry and backoff
// deterministically without real sleeping.
package clock

import (
	"sync"
	"time"
)

// IClock supplies the current time and blocks the calling goroutine
// for backoff delays.
type IClock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
	// Sleep blocks the caller for at least d.
	Sleep(d time.Duration)
}

// --------------------------------------------------------------------------
// System Clock
// --------------------------------------------------------------------------

// NewSystemClock returns an IClock backed by the real time package.
func NewSystemClock() IClock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// --------------------------------------------------------------------------
// Manual Clock (for tests)
// --------------------------------------------------------------------------

// ManualClock is an IClock whose time only moves when told to.
// Sleep advances the clock instead of blocking, which lets tests
// exercise retry loops and expiry windows instantly.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time

	// SleepDurations records every Sleep call in order.
	SleepDurations []time.Duration
}

// NewManualClock creates a ManualClock starting at the given time.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SleepDurations = append(c.SleepDurations, d)
	c.now = c.now.Add(d)
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SetNow pins the clock to the given time.
func (c *ManualClock) SetNow(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
