package reconcile

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/irysflip/questsync/internal/domain/quests"
	"github.com/irysflip/questsync/internal/domain/schedule"
)

// QuestView is the reconciled presentation of one quest.
type QuestView struct {
	Quest     quests.QuestType
	Completed bool
	// StaleFlag is set when the authority reported the quest completed but
	// its anchor lies outside the current local window.
	StaleFlag bool
	Claimable bool
	Quote     *big.Int
	Current   uint64
	Required  uint64
	Progress  float64
}

// Status is the reconciled state handed to the presentation layer.
type Status struct {
	Player         common.Address
	Ready          bool
	State          quests.PlayerQuestState
	Quests         []QuestView
	TotalClaimable *big.Int
	FetchedAt      time.Time
	LastSync       time.Time
	// Stale is set while the authority is unavailable and the data shown is
	// the last good snapshot.
	Stale      bool
	Optimistic bool
}

func (s Status) Quest(q quests.QuestType) QuestView {
	for _, v := range s.Quests {
		if v.Quest == q {
			return v
		}
	}
	return QuestView{Quest: q, Quote: new(big.Int)}
}

// reconcile derives the exposed view of snap at now. It reports whether a
// stale completion flag was found.
func reconcile(snap *quests.Snapshot, now time.Time, cal schedule.Calendar) (Status, bool) {
	st := Status{
		Player:         snap.Address,
		Ready:          true,
		State:          snap.State,
		Quests:         make([]QuestView, 0, len(quests.All)),
		TotalClaimable: new(big.Int),
		FetchedAt:      snap.FetchedAt,
		Optimistic:     snap.Optimistic,
	}

	inconsistent := false
	for _, q := range quests.All {
		stale := staleFlag(snap, q, now, cal)
		if stale {
			inconsistent = true
			st.State.SetCompleted(q, false)
		}
	}

	for _, q := range quests.All {
		completed := st.State.Completed(q)
		current := st.State.Counter(q)
		required := snap.Requirements.For(q)
		quote := snap.Quote(q)

		claimable := completed &&
			snap.Claimable[q] &&
			quote.Sign() > 0 &&
			current >= required

		v := QuestView{
			Quest:     q,
			Completed: completed,
			StaleFlag: snap.State.Completed(q) && !completed,
			Claimable: claimable,
			Quote:     new(big.Int).Set(quote),
			Current:   current,
			Required:  required,
			Progress:  quests.Progress(st.State, q, snap.Requirements),
		}
		if claimable {
			st.TotalClaimable.Add(st.TotalClaimable, quote)
		}
		st.Quests = append(st.Quests, v)
	}
	return st, inconsistent
}

// staleFlag reports a completion flag whose anchor is outside the current
// window. Daily login is anchored on the contract's last login timestamp;
// the other quests on the time the snapshot was read.
func staleFlag(snap *quests.Snapshot, q quests.QuestType, now time.Time, cal schedule.Calendar) bool {
	if !snap.State.Completed(q) {
		return false
	}
	if q == quests.DailyLogin {
		last := snap.State.LastLogin()
		return last.IsZero() || cal.DayID(last) != cal.DayID(now)
	}
	return !cal.SameWindow(q.Cadence(), snap.FetchedAt, now)
}
