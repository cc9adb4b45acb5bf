// Package authority gives typed, failure-contained read access to the quest
// state held by the coinflip contract. The contract is the single source of
// truth; everything read here is normalized into a quests.Snapshot.
package authority

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/irysflip/questsync/internal/domain/quests"
	"github.com/irysflip/questsync/internal/domain/schedule"
)

//go:generate mockgen -source=reader.go -destination=mock/contract.go -package=mock

// Contract is the raw read surface of the deployed coinflip contract.
type Contract interface {
	// GetPlayerQuestStatus returns the four completion flags and three counters.
	// LastLoginTimestamp is left zero.
	GetPlayerQuestStatus(ctx context.Context, player common.Address) (quests.PlayerQuestState, error)
	LastLoginTimestamp(ctx context.Context, player common.Address) (int64, error)
	CanClaimQuestReward(ctx context.Context, player common.Address, quest quests.QuestType) (bool, error)
	GetQuestRewardAmount(ctx context.Context, player common.Address, quest quests.QuestType) (*big.Int, error)
	Requirements(ctx context.Context) (quests.Requirements, error)
}

// Reader wraps a Contract. Every read failure surfaces as quests.ErrUnavailable.
type Reader struct {
	contract Contract
	clock    schedule.Clock
	group    singleflight.Group

	mu           sync.Mutex
	requirements *quests.Requirements
}

func NewReader(contract Contract, clock schedule.Clock) *Reader {
	if clock == nil {
		clock = schedule.SystemClock{}
	}
	return &Reader{contract: contract, clock: clock}
}

// Requirements returns the session-cached thresholds. A failed read yields
// quests.DefaultRequirements and is retried on the next call.
func (r *Reader) Requirements(ctx context.Context) quests.Requirements {
	r.mu.Lock()
	cached := r.requirements
	r.mu.Unlock()
	if cached != nil {
		return *cached
	}

	v, err, _ := r.group.Do("requirements", func() (interface{}, error) {
		req, err := r.contract.Requirements(ctx)
		if err != nil {
			return nil, err
		}
		req = normalizeRequirements(req)
		r.mu.Lock()
		r.requirements = &req
		r.mu.Unlock()
		return req, nil
	})
	if err != nil {
		slog.Warn("Failed to read quest requirements, using defaults",
			slog.String("type", "chain"),
			slog.Any("error", err))
		return quests.DefaultRequirements
	}
	return v.(quests.Requirements)
}

func normalizeRequirements(req quests.Requirements) quests.Requirements {
	def := quests.DefaultRequirements
	if req.DailyFlips == 0 {
		req.DailyFlips = def.DailyFlips
	}
	if req.WeeklyFlips == 0 {
		req.WeeklyFlips = def.WeeklyFlips
	}
	if req.MonthlyStreak == 0 {
		req.MonthlyStreak = def.MonthlyStreak
	}
	if req != def {
		slog.Warn("Contract quest requirements differ from defaults",
			slog.String("type", "chain"),
			slog.Uint64("daily_flips", req.DailyFlips),
			slog.Uint64("weekly_flips", req.WeeklyFlips),
			slog.Uint64("monthly_streak", req.MonthlyStreak))
	}
	return req
}

// Snapshot performs one full read cycle for player: quest state, login
// anchor, and claimability plus reward quote for every quest type.
func (r *Reader) Snapshot(ctx context.Context, player common.Address) (*quests.Snapshot, error) {
	var (
		state     quests.PlayerQuestState
		lastLogin int64
		claimable = make([]bool, len(quests.All))
		quotes    = make([]*big.Int, len(quests.All))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := r.contract.GetPlayerQuestStatus(gctx, player)
		if err != nil {
			return fmt.Errorf("getPlayerQuestStatus: %w", err)
		}
		state = s
		return nil
	})
	g.Go(func() error {
		ts, err := r.contract.LastLoginTimestamp(gctx, player)
		if err != nil {
			return fmt.Errorf("lastLoginTimestamp: %w", err)
		}
		lastLogin = ts
		return nil
	})
	for i, q := range quests.All {
		g.Go(func() error {
			ok, err := r.contract.CanClaimQuestReward(gctx, player, q)
			if err != nil {
				return fmt.Errorf("canClaimQuestReward(%s): %w", q, err)
			}
			claimable[i] = ok
			return nil
		})
		g.Go(func() error {
			amount, err := r.contract.GetQuestRewardAmount(gctx, player, q)
			if err != nil {
				return fmt.Errorf("getQuestRewardAmount(%s): %w", q, err)
			}
			if amount == nil || amount.Sign() < 0 {
				amount = new(big.Int)
			}
			quotes[i] = amount
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", quests.ErrUnavailable, err)
	}

	snap := quests.NewSnapshot(player, r.clock.Now())
	state.LastLoginTimestamp = lastLogin
	snap.State = state
	snap.Requirements = r.Requirements(ctx)
	for i, q := range quests.All {
		snap.Claimable[q] = claimable[i]
		snap.Quotes[q] = quotes[i]
	}
	return snap, nil
}
