package engine

import (
	"time"

	"github.com/roach88/tally/internal/model"
)

// Clock supplies the current time. The returned time's location decides
// which calendar day is "today".
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in Location (time.Local if nil).
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time in the clock's location.
func (c SystemClock) Now() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return time.Now().In(loc)
}

// Today returns the calendar date of c.Now().
func Today(c Clock) model.Date {
	return model.DateOf(c.Now())
}
