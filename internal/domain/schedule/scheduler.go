// Package schedule decides when the daily, weekly and monthly quest windows
// roll over in the player's local timezone.
//
// A boundary fires when the current window id is later than the stored
// marker. Markers never move backwards, so a clock or timezone change that
// lands in an already processed window fires nothing, and a long gap (app
// closed, machine asleep) fires once for the latest window only.
package schedule

import (
	"time"

	"github.com/irysflip/questsync/internal/domain/quests"
)

// DefaultGraceWindow is how long after local midnight a firing counts as on time.
const DefaultGraceWindow = 5 * time.Minute

// Markers are the last processed window ids per cadence. Empty means never processed.
type Markers struct {
	Daily   string
	Weekly  string
	Monthly string
}

func (m Markers) Get(c quests.Cadence) string {
	switch c {
	case quests.Weekly:
		return m.Weekly
	case quests.Monthly:
		return m.Monthly
	default:
		return m.Daily
	}
}

func (m *Markers) Set(c quests.Cadence, id string) {
	switch c {
	case quests.Weekly:
		m.Weekly = id
	case quests.Monthly:
		m.Monthly = id
	default:
		m.Daily = id
	}
}

// Crossing is one boundary firing.
type Crossing struct {
	Cadence quests.Cadence
	From    string
	To      string
	// OnTime is true when the tick landed inside the grace window after the
	// boundary instant, false when a missed boundary is caught up later.
	OnTime bool
}

// Scheduler evaluates reset boundaries. Not goroutine-safe; the owning
// engine serializes access.
type Scheduler struct {
	cal     Calendar
	grace   time.Duration
	markers Markers
}

func NewScheduler(cal Calendar, grace time.Duration, markers Markers) *Scheduler {
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	return &Scheduler{cal: cal, grace: grace, markers: markers}
}

func (s *Scheduler) Calendar() Calendar { return s.cal }

func (s *Scheduler) Markers() Markers { return s.markers }

// Prime fills empty markers with the current windows without firing. It
// returns true if any marker changed.
func (s *Scheduler) Prime(now time.Time) bool {
	changed := false
	for _, c := range quests.Cadences {
		if s.markers.Get(c) == "" {
			s.markers.Set(c, s.cal.ID(c, now))
			changed = true
		}
	}
	return changed
}

// Tick returns the boundaries crossed since the previous tick and advances
// their markers. More than one cadence may fire on the same tick.
func (s *Scheduler) Tick(now time.Time) []Crossing {
	var crossed []Crossing
	for _, c := range quests.Cadences {
		current := s.cal.ID(c, now)
		last := s.markers.Get(c)
		if last == "" {
			s.markers.Set(c, current)
			continue
		}
		if current <= last {
			continue
		}
		s.markers.Set(c, current)
		crossed = append(crossed, Crossing{
			Cadence: c,
			From:    last,
			To:      current,
			OnTime:  s.cal.IsBoundaryDay(c, now) && s.cal.SinceMidnight(now) < s.grace,
		})
	}
	return crossed
}
