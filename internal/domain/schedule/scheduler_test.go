package schedule

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irysflip/questsync/internal/domain/quests"
)

var (
	utc8     = time.FixedZone("UTC+8", 8*3600)
	utcMinus = time.FixedZone("UTC-7", -7*3600)
)

func TestCalendar_IDs(t *testing.T) {
	cal := NewCalendar(utc8)
	tests := []struct {
		name  string
		at    time.Time
		day   string
		week  string
		month string
	}{
		{
			name:  "local date differs from utc",
			at:    time.Date(2024, 4, 30, 17, 30, 0, 0, time.UTC),
			day:   "2024-05-01",
			week:  "2024-W18",
			month: "2024-05",
		},
		{
			name:  "iso week belongs to next year",
			at:    time.Date(2024, 12, 30, 9, 0, 0, 0, utc8),
			day:   "2024-12-30",
			week:  "2025-W01",
			month: "2024-12",
		},
		{
			name:  "sunday closes the week",
			at:    time.Date(2024, 12, 29, 23, 59, 0, 0, utc8),
			day:   "2024-12-29",
			week:  "2024-W52",
			month: "2024-12",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.day, cal.ID(quests.Daily, tt.at))
			assert.Equal(t, tt.week, cal.ID(quests.Weekly, tt.at))
			assert.Equal(t, tt.month, cal.ID(quests.Monthly, tt.at))
		})
	}
}

func TestCalendar_NextBoundary(t *testing.T) {
	cal := NewCalendar(utc8)
	wed := time.Date(2024, 5, 1, 13, 0, 0, 0, utc8)

	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, utc8), cal.NextBoundary(quests.Daily, wed))
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, utc8), cal.NextBoundary(quests.Weekly, wed))
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, utc8), cal.NextBoundary(quests.Monthly, wed))

	mon := time.Date(2024, 5, 6, 0, 0, 1, 0, utc8)
	assert.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, utc8), cal.NextBoundary(quests.Weekly, mon))
}

func TestLoadCalendar(t *testing.T) {
	cal, err := LoadCalendar("America/New_York")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", cal.Location().String())

	cal, err = LoadCalendar("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, cal.Location())

	_, err = LoadCalendar("Mars/Olympus")
	assert.Error(t, err)
}

func TestScheduler_Tick(t *testing.T) {
	cal := NewCalendar(utc8)

	t.Run("daily boundary fires once on time", func(t *testing.T) {
		s := NewScheduler(cal, 0, Markers{})
		require.True(t, s.Prime(time.Date(2024, 5, 1, 23, 59, 0, 0, utc8)))

		assert.Empty(t, s.Tick(time.Date(2024, 5, 1, 23, 59, 59, 0, utc8)))

		got := s.Tick(time.Date(2024, 5, 2, 0, 1, 0, 0, utc8))
		require.Len(t, got, 1)
		assert.Equal(t, Crossing{Cadence: quests.Daily, From: "2024-05-01", To: "2024-05-02", OnTime: true}, got[0])

		assert.Empty(t, s.Tick(time.Date(2024, 5, 2, 0, 2, 0, 0, utc8)))
	})

	t.Run("new year monday fires every cadence", func(t *testing.T) {
		s := NewScheduler(cal, 0, Markers{})
		s.Prime(time.Date(2023, 12, 31, 23, 0, 0, 0, utc8))

		got := s.Tick(time.Date(2024, 1, 1, 0, 0, 30, 0, utc8))
		require.Len(t, got, 3)
		assert.Equal(t, quests.Daily, got[0].Cadence)
		assert.Equal(t, quests.Weekly, got[1].Cadence)
		assert.Equal(t, "2024-W01", got[1].To)
		assert.Equal(t, quests.Monthly, got[2].Cadence)
		assert.Equal(t, "2024-01", got[2].To)
		for _, c := range got {
			assert.True(t, c.OnTime, c.Cadence.String())
		}
	})

	t.Run("missed boundaries catch up once", func(t *testing.T) {
		s := NewScheduler(cal, time.Minute, Markers{Daily: "2024-04-20", Weekly: "2024-W16", Monthly: "2024-04"})

		got := s.Tick(time.Date(2024, 5, 2, 10, 0, 0, 0, utc8))
		require.Len(t, got, 3)
		assert.Equal(t, "2024-04-20", got[0].From)
		assert.Equal(t, "2024-05-02", got[0].To)
		for _, c := range got {
			assert.False(t, c.OnTime)
		}
		assert.Empty(t, s.Tick(time.Date(2024, 5, 2, 10, 1, 0, 0, utc8)))
	})

	t.Run("past grace window is not on time", func(t *testing.T) {
		s := NewScheduler(cal, 5*time.Minute, Markers{Daily: "2024-05-01", Weekly: "2024-W18", Monthly: "2024-05"})
		got := s.Tick(time.Date(2024, 5, 2, 0, 6, 0, 0, utc8))
		require.Len(t, got, 1)
		assert.False(t, got[0].OnTime)
	})

	t.Run("travel to an earlier local date fires nothing", func(t *testing.T) {
		s := NewScheduler(cal, 0, Markers{})
		s.Prime(time.Date(2024, 5, 2, 2, 0, 0, 0, utc8))

		west := NewScheduler(NewCalendar(utcMinus), 0, s.Markers())
		// 2024-05-01 12:00 local in UTC-7
		assert.Empty(t, west.Tick(time.Date(2024, 5, 1, 19, 0, 0, 0, time.UTC)))
		assert.Equal(t, "2024-05-02", west.Markers().Daily)

		assert.Len(t, west.Tick(time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)), 1)
	})

	t.Run("empty markers are primed without firing", func(t *testing.T) {
		s := NewScheduler(cal, 0, Markers{Daily: "2024-05-01"})
		got := s.Tick(time.Date(2024, 5, 1, 12, 0, 0, 0, utc8))
		assert.Empty(t, got)
		assert.Equal(t, Markers{Daily: "2024-05-01", Weekly: "2024-W18", Monthly: "2024-05"}, s.Markers())
	})
}
