package quests

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// QuestType mirrors the uint8 quest enum of the coinflip contract.
type QuestType uint8

const (
	DailyLogin QuestType = iota
	DailyFlip
	WeeklyFlips
	MonthlyStreak
)

// All lists every quest type in contract order.
var All = []QuestType{DailyLogin, DailyFlip, WeeklyFlips, MonthlyStreak}

func (q QuestType) Valid() bool {
	return q <= MonthlyStreak
}

func (q QuestType) String() string {
	switch q {
	case DailyLogin:
		return "daily_login"
	case DailyFlip:
		return "daily_flip"
	case WeeklyFlips:
		return "weekly_flips"
	case MonthlyStreak:
		return "monthly_streak"
	default:
		return "unknown"
	}
}

// Title is the human readable quest name.
func (q QuestType) Title() string {
	switch q {
	case DailyLogin:
		return "Daily Login"
	case DailyFlip:
		return "Daily Flip"
	case WeeklyFlips:
		return "Weekly Flips"
	case MonthlyStreak:
		return "Monthly Streak"
	default:
		return "Unknown Quest"
	}
}

// Cadence returns the reset window a quest's completion flag belongs to.
func (q QuestType) Cadence() Cadence {
	switch q {
	case WeeklyFlips:
		return Weekly
	case MonthlyStreak:
		return Monthly
	default:
		return Daily
	}
}

// Cadence is a reset boundary kind.
type Cadence int

const (
	Daily Cadence = iota
	Weekly
	Monthly
)

var Cadences = []Cadence{Daily, Weekly, Monthly}

func (c Cadence) String() string {
	switch c {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	default:
		return "unknown"
	}
}

// PlayerQuestState is the authoritative per-player quest state read from the contract.
type PlayerQuestState struct {
	DailyLoginCompleted    bool
	DailyFlipCompleted     bool
	WeeklyFlipsCompleted   bool
	MonthlyStreakCompleted bool
	DailyFlipsToday        uint64
	WeeklyFlips            uint64
	MonthlyStreak          uint64
	LastLoginTimestamp     int64
}

func (s PlayerQuestState) Completed(q QuestType) bool {
	switch q {
	case DailyLogin:
		return s.DailyLoginCompleted
	case DailyFlip:
		return s.DailyFlipCompleted
	case WeeklyFlips:
		return s.WeeklyFlipsCompleted
	case MonthlyStreak:
		return s.MonthlyStreakCompleted
	}
	return false
}

func (s *PlayerQuestState) SetCompleted(q QuestType, v bool) {
	switch q {
	case DailyLogin:
		s.DailyLoginCompleted = v
	case DailyFlip:
		s.DailyFlipCompleted = v
	case WeeklyFlips:
		s.WeeklyFlipsCompleted = v
	case MonthlyStreak:
		s.MonthlyStreakCompleted = v
	}
}

// Counter returns the counter backing a quest. Daily login has no counter,
// so it counts as 1 once completed.
func (s PlayerQuestState) Counter(q QuestType) uint64 {
	switch q {
	case DailyLogin:
		if s.DailyLoginCompleted {
			return 1
		}
		return 0
	case DailyFlip:
		return s.DailyFlipsToday
	case WeeklyFlips:
		return s.WeeklyFlips
	case MonthlyStreak:
		return s.MonthlyStreak
	}
	return 0
}

// LastLogin returns the login anchor, or the zero time if the player never logged in.
func (s PlayerQuestState) LastLogin() time.Time {
	if s.LastLoginTimestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(s.LastLoginTimestamp, 0)
}

// Requirements are the per-cadence thresholds enforced by the contract.
type Requirements struct {
	DailyFlips    uint64
	WeeklyFlips   uint64
	MonthlyStreak uint64
}

// DefaultRequirements are used when the contract getters cannot be read.
// Weekly is 50: one old UI default said 7, the enforced value is 50.
var DefaultRequirements = Requirements{
	DailyFlips:    10,
	WeeklyFlips:   50,
	MonthlyStreak: 30,
}

func (r Requirements) For(q QuestType) uint64 {
	switch q {
	case DailyFlip:
		return r.DailyFlips
	case WeeklyFlips:
		return r.WeeklyFlips
	case MonthlyStreak:
		return r.MonthlyStreak
	default:
		return 1
	}
}

// Snapshot is one complete authoritative read for a player. Snapshots are
// immutable once published; use Clone before modifying.
type Snapshot struct {
	Address      common.Address
	State        PlayerQuestState
	Claimable    map[QuestType]bool
	Quotes       map[QuestType]*big.Int
	Requirements Requirements
	FetchedAt    time.Time
	// Optimistic marks a local hint applied after a confirmed transaction,
	// pending a verifying resync.
	Optimistic bool
}

func NewSnapshot(address common.Address, fetchedAt time.Time) *Snapshot {
	return &Snapshot{
		Address:      address,
		Claimable:    make(map[QuestType]bool, len(All)),
		Quotes:       make(map[QuestType]*big.Int, len(All)),
		Requirements: DefaultRequirements,
		FetchedAt:    fetchedAt,
	}
}

// Quote returns the reward quote for q, never nil.
func (s *Snapshot) Quote(q QuestType) *big.Int {
	if v, ok := s.Quotes[q]; ok && v != nil {
		return v
	}
	return new(big.Int)
}

func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Claimable = make(map[QuestType]bool, len(s.Claimable))
	for k, v := range s.Claimable {
		c.Claimable[k] = v
	}
	c.Quotes = make(map[QuestType]*big.Int, len(s.Quotes))
	for k, v := range s.Quotes {
		if v != nil {
			c.Quotes[k] = new(big.Int).Set(v)
		}
	}
	return &c
}
