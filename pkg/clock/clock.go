// Package clock provides the time source and calendar-day keys used by the tracker.
package clock

import (
	"sync"
	"time"
)

// DayLayout is the layout of daily counter keys.
const DayLayout = "2006-01-02"

// Clock supplies the current time and the zone that day keys are computed in.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// System is the wall clock in a fixed location.
type System struct {
	loc *time.Location
}

// NewSystem returns a wall clock. A nil location means time.Local.
func NewSystem(loc *time.Location) *System {
	if loc == nil {
		loc = time.Local
	}
	return &System{loc: loc}
}

func (s *System) Now() time.Time           { return time.Now().In(s.loc) }
func (s *System) Location() *time.Location { return s.loc }

// Manual is a clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock frozen at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Location() *time.Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now.Location()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Today returns the day key for the clock's current time.
func Today(c Clock) string {
	return c.Now().In(c.Location()).Format(DayLayout)
}

// Midnight truncates t to the start of its calendar day in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DaysBetween returns the number of whole calendar days from day to today.
// It is negative when day lies after today. DST transitions do not
// shift the result because the arithmetic is done on UTC dates.
func DaysBetween(today, day time.Time) int {
	a := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return int(a.Sub(b).Hours() / 24)
}
