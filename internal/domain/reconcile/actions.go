package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/irysflip/questsync/internal/domain/quests"
	"github.com/irysflip/questsync/internal/domain/schedule"
)

const (
	actionComplete = "complete"
	actionClaim    = "claim"

	// alreadyLoggedIn is the revert string the contract uses when the daily
	// login was completed earlier the same day.
	alreadyLoggedIn = "daily login already completed"
)

// CompleteDailyLogin submits the daily login transaction after checking the
// quest is not already completed for today.
func (e *Engine) CompleteDailyLogin(ctx context.Context) quests.Outcome {
	q := quests.DailyLogin
	if out, ok := e.precheck(q); !ok {
		return out
	}
	e.actionMu.Lock()
	defer e.actionMu.Unlock()

	snap, err := e.freshSnapshot(ctx)
	if err != nil {
		return failed(q, err)
	}
	st, _ := reconcile(snap, e.clock.Now(), e.cal)
	if st.Quest(q).Completed {
		return refused(actionComplete, q, quests.ReasonAlreadyCompleted)
	}

	hash, err := e.tx.CompleteDailyLogin(ctx)
	if err != nil {
		return e.submissionFailed(q, err)
	}
	logAction("Daily login submitted", q, hash)

	receipt, out, ok := e.confirm(ctx, q, hash)
	if !ok {
		return out
	}

	e.applyOptimistic(snap, func(s *quests.Snapshot) {
		s.State.DailyLoginCompleted = true
		s.State.LastLoginTimestamp = e.clock.Now().Unix()
		s.Claimable[q] = s.Quote(q).Sign() > 0
	})
	e.gate.request(ReasonVerify)

	return quests.Outcome{Status: quests.OutcomeSuccess, Quest: q, TxHash: receipt.TxHash}
}

// Claim submits claimQuestReward for q after re-validating it against a
// fresh snapshot. Monthly streak claims also require the full streak length
// regardless of what the contract's claimable flag says.
func (e *Engine) Claim(ctx context.Context, q quests.QuestType) quests.Outcome {
	if !q.Valid() {
		return failed(q, errors.New("unknown quest type"))
	}
	if out, ok := e.precheck(q); !ok {
		return out
	}
	e.actionMu.Lock()
	defer e.actionMu.Unlock()
	return e.claim(ctx, q)
}

// ClaimAll claims every quest that is claimable in the reconciled view, in
// contract order. It stops early when the signer declines a transaction.
func (e *Engine) ClaimAll(ctx context.Context) []quests.Outcome {
	if out, ok := e.precheck(quests.DailyLogin); !ok {
		return []quests.Outcome{out}
	}
	e.actionMu.Lock()
	defer e.actionMu.Unlock()

	snap, err := e.freshSnapshot(ctx)
	if err != nil {
		return []quests.Outcome{failed(quests.DailyLogin, err)}
	}
	st, _ := reconcile(snap, e.clock.Now(), e.cal)

	var outcomes []quests.Outcome
	for _, v := range st.Quests {
		if !v.Claimable {
			continue
		}
		out := e.claim(ctx, v.Quest)
		outcomes = append(outcomes, out)
		if out.Status == quests.OutcomeCancelled || ctx.Err() != nil {
			break
		}
	}
	return outcomes
}

func (e *Engine) claim(ctx context.Context, q quests.QuestType) quests.Outcome {
	snap, err := e.freshSnapshot(ctx)
	if err != nil {
		return failed(q, err)
	}
	if reason := validateClaim(snap, q, e.clock.Now(), e.cal); reason != "" {
		return refused(actionClaim, q, reason)
	}
	quote := new(big.Int).Set(snap.Quote(q))

	hash, err := e.tx.ClaimQuestReward(ctx, q)
	if err != nil {
		return e.submissionFailed(q, err)
	}
	logAction("Quest reward claim submitted", q, hash)

	receipt, out, ok := e.confirm(ctx, q, hash)
	if !ok {
		return out
	}

	amount := quote
	if receipt.ClaimedAmount != nil && receipt.ClaimedAmount.Sign() > 0 {
		amount = new(big.Int).Set(receipt.ClaimedAmount)
	}

	e.applyOptimistic(snap, func(s *quests.Snapshot) {
		s.Claimable[q] = false
		s.Quotes[q] = new(big.Int)
	})
	e.gate.request(ReasonVerify)

	e.notifyClaim(quests.ClaimReceipt{
		Player:    e.player,
		Quest:     q,
		Amount:    amount,
		TxHash:    receipt.TxHash,
		Block:     receipt.BlockNumber,
		SettledAt: e.clock.Now(),
	})

	return quests.Outcome{Status: quests.OutcomeSuccess, Quest: q, Amount: amount, TxHash: receipt.TxHash}
}

// validateClaim returns the refusal reason for claiming q, or "" if allowed.
func validateClaim(snap *quests.Snapshot, q quests.QuestType, now time.Time, cal schedule.Calendar) quests.Reason {
	st, _ := reconcile(snap, now, cal)
	v := st.Quest(q)
	switch {
	case q != quests.DailyLogin && v.Current < v.Required:
		return quests.ReasonThresholdNotMet
	case !v.Completed:
		return quests.ReasonNotCompleted
	case v.Quote.Sign() == 0:
		return quests.ReasonAlreadyClaimed
	case !v.Claimable:
		return quests.ReasonNotClaimable
	}
	return ""
}

// AutoLogin completes the daily login once per local day when the reconciled
// view says it is still open. Failures are logged and retried on the next run.
func (e *Engine) AutoLogin(ctx context.Context) {
	if e.tx == nil || e.disposed.Load() {
		return
	}
	day := e.cal.DayID(e.clock.Now())
	e.mu.Lock()
	done := e.autoLoginDay == day
	e.mu.Unlock()
	if done {
		return
	}

	snap := e.snapshot.Load()
	if snap != nil && !e.unavailable.Load() {
		st, _ := reconcile(snap, e.clock.Now(), e.cal)
		if st.Quest(quests.DailyLogin).Completed {
			e.markAutoLogin(day)
			return
		}
	}

	out := e.CompleteDailyLogin(ctx)
	switch {
	case out.Status == quests.OutcomeSuccess,
		out.Reason() == quests.ReasonAlreadyCompleted:
		e.markAutoLogin(day)
		slog.Info("Automatic daily login done",
			slog.String("type", "chain"),
			slog.String("player", e.player.Hex()),
			slog.Bool("already_completed", out.AlreadyCompleted || out.Reason() == quests.ReasonAlreadyCompleted))
	case out.Status == quests.OutcomeCancelled:
		e.markAutoLogin(day)
		slog.Info("Automatic daily login declined by signer",
			slog.String("type", "chain"),
			slog.String("player", e.player.Hex()))
	default:
		slog.Warn("Automatic daily login failed",
			slog.String("type", "chain"),
			slog.String("player", e.player.Hex()),
			slog.String("status", out.Status.String()),
			slog.Any("error", out.Err))
	}
}

func (e *Engine) markAutoLogin(day string) {
	e.mu.Lock()
	e.autoLoginDay = day
	e.mu.Unlock()
}

func (e *Engine) precheck(q quests.QuestType) (quests.Outcome, bool) {
	switch {
	case e.disposed.Load():
		return failed(q, quests.ErrDisposed), false
	case !e.started.Load():
		return failed(q, quests.ErrNotStarted), false
	case e.tx == nil:
		return failed(q, quests.ErrReadOnly), false
	}
	return quests.Outcome{}, true
}

// freshSnapshot returns the cached snapshot when it is recent, authoritative
// and from the current local day; otherwise it resyncs first.
func (e *Engine) freshSnapshot(ctx context.Context) (*quests.Snapshot, error) {
	snap := e.snapshot.Load()
	now := e.clock.Now()
	if snap != nil &&
		!e.unavailable.Load() &&
		!snap.Optimistic &&
		now.Sub(snap.FetchedAt) <= e.cfg.MaxSnapshotAge &&
		e.cal.DayID(snap.FetchedAt) == e.cal.DayID(now) {
		return snap, nil
	}
	snap, err := e.Resync(ctx, ReasonPreAction)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, &quests.ActionError{Action: "sync", Reason: quests.ReasonNoSnapshot}
	}
	return snap, nil
}

// submissionFailed maps an error returned before a transaction hash existed.
func (e *Engine) submissionFailed(q quests.QuestType, err error) quests.Outcome {
	if errors.Is(err, quests.ErrTxRejected) {
		slog.Info("Transaction declined",
			slog.String("type", "chain"),
			slog.String("player", e.player.Hex()),
			slog.String("quest", q.String()))
		return quests.Outcome{Status: quests.OutcomeCancelled, Quest: q, Err: err}
	}
	if q == quests.DailyLogin && strings.Contains(strings.ToLower(err.Error()), alreadyLoggedIn) {
		e.gate.request(ReasonVerify)
		return quests.Outcome{Status: quests.OutcomeSuccess, Quest: q, AlreadyCompleted: true}
	}

	slog.Error("Transaction submission failed",
		slog.String("type", "chain"),
		slog.String("player", e.player.Hex()),
		slog.String("quest", q.String()),
		slog.Any("error", err))
	e.gate.request(ReasonTxFailed)

	var tf *quests.TxFailedError
	if !errors.As(err, &tf) {
		err = &quests.TxFailedError{Quest: q, Message: err.Error()}
	}
	return quests.Outcome{Status: quests.OutcomeFailed, Quest: q, Err: err}
}

// confirm waits for hash to be mined. ok is false when the returned outcome
// is final (failed or still pending).
func (e *Engine) confirm(ctx context.Context, q quests.QuestType, hash common.Hash) (*quests.TxReceipt, quests.Outcome, bool) {
	receipt, err := e.tx.WaitConfirmed(ctx, hash)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			slog.Warn("Transaction not yet confirmed",
				slog.String("type", "chain"),
				slog.String("player", e.player.Hex()),
				slog.String("quest", q.String()),
				slog.String("tx", hash.Hex()))
			e.gate.request(ReasonTxPending)
			return nil, quests.Outcome{Status: quests.OutcomePending, Quest: q, TxHash: hash, Err: err}, false
		}
		e.gate.request(ReasonTxFailed)
		return nil, quests.Outcome{
			Status: quests.OutcomeFailed,
			Quest:  q,
			TxHash: hash,
			Err:    &quests.TxFailedError{Quest: q, TxHash: hash, Message: err.Error()},
		}, false
	}

	if !receipt.Succeeded {
		msg := receipt.RevertReason
		if msg == "" {
			msg = "execution reverted"
		}
		if q == quests.DailyLogin && strings.Contains(strings.ToLower(msg), alreadyLoggedIn) {
			e.gate.request(ReasonVerify)
			return nil, quests.Outcome{Status: quests.OutcomeSuccess, Quest: q, TxHash: hash, AlreadyCompleted: true}, false
		}
		slog.Error("Transaction reverted",
			slog.String("type", "chain"),
			slog.String("player", e.player.Hex()),
			slog.String("quest", q.String()),
			slog.String("tx", hash.Hex()),
			slog.String("reason", msg))
		e.gate.request(ReasonTxFailed)
		return nil, quests.Outcome{
			Status: quests.OutcomeFailed,
			Quest:  q,
			TxHash: hash,
			Err:    &quests.TxFailedError{Quest: q, TxHash: hash, Message: msg},
		}, false
	}
	return receipt, quests.Outcome{}, true
}

// applyOptimistic publishes a modified copy of base as a hint. If a resync
// already replaced base, the authoritative snapshot wins and nothing is applied.
func (e *Engine) applyOptimistic(base *quests.Snapshot, mutate func(*quests.Snapshot)) {
	for {
		cur := e.snapshot.Load()
		if cur == nil || cur.FetchedAt.After(base.FetchedAt) && !cur.Optimistic {
			return
		}
		next := cur.Clone()
		mutate(next)
		next.Optimistic = true
		if e.snapshot.CompareAndSwap(cur, next) {
			return
		}
	}
}

func (e *Engine) notifyClaim(receipt quests.ClaimReceipt) {
	if len(e.cfg.ClaimObservers) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultStoreTimeout)
	defer cancel()
	for _, o := range e.cfg.ClaimObservers {
		if err := o.ObserveClaim(ctx, receipt); err != nil {
			slog.Warn("Claim observer failed",
				slog.String("type", "sync"),
				slog.String("player", receipt.Player.Hex()),
				slog.String("quest", receipt.Quest.String()),
				slog.Any("error", err))
		}
	}
}

func failed(q quests.QuestType, err error) quests.Outcome {
	return quests.Outcome{Status: quests.OutcomeFailed, Quest: q, Err: err}
}

func refused(action string, q quests.QuestType, reason quests.Reason) quests.Outcome {
	return quests.Outcome{
		Status: quests.OutcomeRejected,
		Quest:  q,
		Err:    &quests.ActionError{Action: action, Quest: q, Reason: reason},
	}
}

func logAction(msg string, q quests.QuestType, hash common.Hash) {
	slog.Info(msg,
		slog.String("type", "chain"),
		slog.String("quest", q.String()),
		slog.String("tx", hash.Hex()))
}
