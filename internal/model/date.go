package model

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day in the user's time zone, formatted "YYYY-MM-DD".
// The zero value means "no date".
type Date string

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// ParseDate validates s and returns it as a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(t.Format(dateLayout)), nil
}

// MustDate is ParseDate for literals in tests and fixtures.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is unset.
func (d Date) IsZero() bool {
	return d == ""
}

// Valid reports whether d parses as a calendar date.
func (d Date) Valid() bool {
	_, err := time.Parse(dateLayout, string(d))
	return err == nil
}

func (d Date) String() string {
	return string(d)
}

// Time returns midnight UTC of d. Arithmetic is done in UTC so that DST
// transitions in the user's zone never produce 23- or 25-hour days.
func (d Date) Time() time.Time {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date(d.Time().AddDate(0, 0, n).Format(dateLayout))
}

// Weekday returns the day of the week, Sunday == 0.
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// DaysSince returns the number of days from earlier to d. It is negative
// when earlier is after d.
func (d Date) DaysSince(earlier Date) int {
	return int(d.Time().Sub(earlier.Time()).Hours() / 24)
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	// The fixed-width layout makes lexical order chronological.
	return d < other
}

// WeekStart returns the Sunday that opens d's week.
func (d Date) WeekStart() Date {
	return d.AddDays(-int(d.Weekday()))
}

// WeekDays returns the seven dates of d's week, Sunday first.
func (d Date) WeekDays() []Date {
	start := d.WeekStart()
	days := make([]Date, 7)
	for i := range days {
		days[i] = start.AddDays(i)
	}
	return days
}
