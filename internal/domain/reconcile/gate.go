package reconcile

import (
	"context"
	"sync"

	"github.com/irysflip/questsync/internal/domain/quests"
)

// Reason names what asked for a resync.
type Reason string

const (
	ReasonStartup      Reason = "startup"
	ReasonDaily        Reason = "boundary_daily"
	ReasonWeekly       Reason = "boundary_weekly"
	ReasonMonthly      Reason = "boundary_monthly"
	ReasonVisibility   Reason = "visibility"
	ReasonInconsistent Reason = "inconsistent_state"
	ReasonManual       Reason = "manual"
	ReasonPeriodic     Reason = "periodic"
	ReasonPreAction    Reason = "pre_action"
	ReasonVerify       Reason = "verify"
	ReasonTxFailed     Reason = "tx_failed"
	ReasonTxPending    Reason = "tx_pending"
)

func boundaryReason(c quests.Cadence) Reason {
	switch c {
	case quests.Weekly:
		return ReasonWeekly
	case quests.Monthly:
		return ReasonMonthly
	default:
		return ReasonDaily
	}
}

// joinsInFlight reports whether a request for r may be served by a read
// that is already in flight. Boundary crossings and post-transaction checks
// need a read that starts after their cause, so they queue a follow-up.
func joinsInFlight(r Reason) bool {
	switch r {
	case ReasonStartup, ReasonVisibility, ReasonManual, ReasonPeriodic, ReasonPreAction:
		return true
	}
	return false
}

type result struct {
	snap *quests.Snapshot
	err  error
}

type waiter struct {
	reasons []Reason
	done    chan result
}

func (w *waiter) joinable() bool {
	for _, r := range w.reasons {
		if !joinsInFlight(r) {
			return false
		}
	}
	return true
}

// gate runs at most one resync at a time. A request that arrives while no
// resync is running starts one. A request that arrives during a run shares
// that run's result when all its reasons allow it; otherwise it is batched
// into a single follow-up run, whose result the whole batch shares.
type gate struct {
	ctx context.Context
	run func(ctx context.Context, reasons []Reason) (*quests.Snapshot, error)

	mu       sync.Mutex
	running  bool
	inflight []*waiter
	pending  []*waiter
}

func newGate(ctx context.Context, run func(ctx context.Context, reasons []Reason) (*quests.Snapshot, error)) *gate {
	return &gate{ctx: ctx, run: run}
}

// request enqueues a resync. The returned channel is buffered, so callers
// that do not care about the result may drop it.
func (g *gate) request(reasons ...Reason) <-chan result {
	w := &waiter{reasons: reasons, done: make(chan result, 1)}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ctx.Err() != nil {
		w.done <- result{err: quests.ErrDisposed}
		return w.done
	}
	if g.inflight != nil && w.joinable() {
		g.inflight = append(g.inflight, w)
		return w.done
	}
	g.pending = append(g.pending, w)
	if !g.running {
		g.running = true
		go g.loop()
	}
	return w.done
}

func (g *gate) loop() {
	for {
		g.mu.Lock()
		batch := g.pending
		g.pending = nil
		if len(batch) == 0 {
			g.running = false
			g.mu.Unlock()
			return
		}
		g.inflight = batch
		g.mu.Unlock()

		var reasons []Reason
		seen := make(map[Reason]bool)
		for _, w := range batch {
			for _, r := range w.reasons {
				if !seen[r] {
					seen[r] = true
					reasons = append(reasons, r)
				}
			}
		}

		var res result
		if g.ctx.Err() != nil {
			res.err = quests.ErrDisposed
		} else {
			res.snap, res.err = g.run(g.ctx, reasons)
		}

		g.mu.Lock()
		served := g.inflight
		g.inflight = nil
		g.mu.Unlock()
		for _, w := range served {
			w.done <- res
		}
	}
}

// waiting returns how many requests wait on the current run and the next one.
func (g *gate) waiting() (inflight, pending int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight), len(g.pending)
}

// wait blocks until the result arrives or ctx ends.
func wait(ctx context.Context, ch <-chan result) (*quests.Snapshot, error) {
	select {
	case res := <-ch:
		return res.snap, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
