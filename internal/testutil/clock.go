package testutil

import (
	"fmt"
	"sync"
	"time"
)

// Clock is a settable wall clock for tests.
//
// It satisfies engine.Clock. Scenarios move it forward a day at a time so
// streak and rollover logic can be driven without waiting for midnight.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock frozen at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// NewClockOn creates a clock at 12:00 UTC on the given YYYY-MM-DD date.
// Panics on a malformed date; it is meant for literal test input.
func NewClockOn(date string) *Clock {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(fmt.Sprintf("testutil.NewClockOn(%q): %v", date, err))
	}
	return NewClock(t.Add(12 * time.Hour))
}

// Now returns the current frozen time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// AdvanceDays moves the clock forward n calendar days, keeping the time of
// day.
func (c *Clock) AdvanceDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, n)
}

// SetTimeOfDay keeps the date and sets the hour and minute.
func (c *Clock) SetTimeOfDay(hour, minute int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	y, m, d := c.now.Date()
	c.now = time.Date(y, m, d, hour, minute, 0, 0, c.now.Location())
}
