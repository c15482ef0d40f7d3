// Package system provides wall-clock implementations of crawler.Clock.
package system

import "time"

// Clock reads the real wall clock.
type Clock struct {
	loc *time.Location
}

// New creates a Clock reporting times in UTC.
func New() *Clock {
	return &Clock{loc: time.UTC}
}

// NewIn creates a Clock reporting times in loc. A nil loc means UTC.
func NewIn(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Fixed is a Clock frozen at one instant, used by tests and dry runs.
type Fixed struct {
	At time.Time
}

// Now returns the frozen instant.
func (f Fixed) Now() time.Time {
	return f.At
}
