package schedule

import (
	"fmt"
	"time"

	"github.com/irysflip/questsync/internal/domain/quests"
)

// Clock abstracts wall-clock reads so resets can be tested without real time.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Calendar evaluates instants in the player's local timezone. Every reset
// decision goes through a Calendar, never through UTC dates.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a calendar for loc; a nil loc means time.Local.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{loc: loc}
}

// LoadCalendar resolves an IANA zone name. Empty or "Local" selects time.Local.
func LoadCalendar(name string) (Calendar, error) {
	if name == "" || name == "Local" {
		return NewCalendar(time.Local), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	return NewCalendar(loc), nil
}

func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

func (c Calendar) local(t time.Time) time.Time {
	return t.In(c.Location())
}

// DayID is the local date, YYYY-MM-DD.
func (c Calendar) DayID(t time.Time) string {
	return c.local(t).Format("2006-01-02")
}

// WeekID is the local ISO week, YYYY-Www. ISO weeks start on Monday.
func (c Calendar) WeekID(t time.Time) string {
	year, week := c.local(t).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthID is the local month, YYYY-MM.
func (c Calendar) MonthID(t time.Time) string {
	return c.local(t).Format("2006-01")
}

// ID returns the window identifier of t for a cadence. Identifiers of one
// cadence sort lexicographically in time order.
func (c Calendar) ID(cadence quests.Cadence, t time.Time) string {
	switch cadence {
	case quests.Weekly:
		return c.WeekID(t)
	case quests.Monthly:
		return c.MonthID(t)
	default:
		return c.DayID(t)
	}
}

// SameWindow reports whether a and b fall in the same local reset window.
func (c Calendar) SameWindow(cadence quests.Cadence, a, b time.Time) bool {
	return c.ID(cadence, a) == c.ID(cadence, b)
}

// SinceMidnight is the local time of day of t.
func (c Calendar) SinceMidnight(t time.Time) time.Duration {
	l := c.local(t)
	midnight := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, l.Location())
	return l.Sub(midnight)
}

// IsBoundaryDay reports whether t's local date is the first day of a new window.
func (c Calendar) IsBoundaryDay(cadence quests.Cadence, t time.Time) bool {
	l := c.local(t)
	switch cadence {
	case quests.Weekly:
		return l.Weekday() == time.Monday
	case quests.Monthly:
		return l.Day() == 1
	default:
		return true
	}
}

// NextBoundary returns the next local midnight at which cadence rolls over.
func (c Calendar) NextBoundary(cadence quests.Cadence, t time.Time) time.Time {
	l := c.local(t)
	switch cadence {
	case quests.Weekly:
		days := (7 - int(l.Weekday()) + int(time.Monday)) % 7
		if days == 0 {
			days = 7
		}
		return time.Date(l.Year(), l.Month(), l.Day()+days, 0, 0, 0, 0, l.Location())
	case quests.Monthly:
		return time.Date(l.Year(), l.Month()+1, 1, 0, 0, 0, 0, l.Location())
	default:
		return time.Date(l.Year(), l.Month(), l.Day()+1, 0, 0, 0, 0, l.Location())
	}
}
