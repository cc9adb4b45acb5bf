// Package reconcile keeps a local mirror of a player's on-chain quest state
// and guarantees it never drifts from the contract for longer than one
// synchronization cycle.
//
// The Engine owns the mirror and the reset markers. Snapshots are published
// atomically, so readers see either the old or the new snapshot in full.
// Resyncs are coalesced: at most one read cycle is in flight, and every
// request that arrives meanwhile is served by a single follow-up cycle.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/irysflip/questsync/internal/domain/quests"
	"github.com/irysflip/questsync/internal/domain/schedule"
)

const (
	DefaultTickInterval      = 60 * time.Second
	DefaultSyncInterval      = 60 * time.Second
	DefaultAutoLoginInterval = 2 * time.Minute
	DefaultMaxSnapshotAge    = time.Minute
	defaultReadTimeout       = 30 * time.Second
	defaultStoreTimeout      = 5 * time.Second
)

// Reader is the authority read surface.
type Reader interface {
	Snapshot(ctx context.Context, player common.Address) (*quests.Snapshot, error)
}

// Transactor submits the contract's state-changing calls. Submissions return
// as soon as the transaction is accepted; WaitConfirmed blocks until mined.
type Transactor interface {
	CompleteDailyLogin(ctx context.Context) (common.Hash, error)
	ClaimQuestReward(ctx context.Context, quest quests.QuestType) (common.Hash, error)
	WaitConfirmed(ctx context.Context, hash common.Hash) (*quests.TxReceipt, error)
}

// ClaimObserver is told about every settled claim.
type ClaimObserver interface {
	ObserveClaim(ctx context.Context, receipt quests.ClaimReceipt) error
}

// CrossingObserver is told about every reset boundary crossing.
type CrossingObserver interface {
	ObserveCrossing(ctx context.Context, player common.Address, crossing schedule.Crossing) error
}

type Config struct {
	Player     common.Address
	Reader     Reader
	Transactor Transactor
	Store      Store
	Clock      schedule.Clock
	Calendar   schedule.Calendar

	GraceWindow time.Duration
	// TickInterval drives boundary checks. A negative value disables the
	// internal loop; the host then calls Tick itself.
	TickInterval time.Duration
	// SyncInterval requests a periodic resync. Zero disables it.
	SyncInterval      time.Duration
	AutoLogin         bool
	AutoLoginInterval time.Duration
	MaxSnapshotAge    time.Duration

	ClaimObservers    []ClaimObserver
	CrossingObservers []CrossingObserver
}

type Engine struct {
	cfg    Config
	player common.Address
	reader Reader
	tx     Transactor
	store  Store
	clock  schedule.Clock
	cal    schedule.Calendar

	snapshot    atomic.Pointer[quests.Snapshot]
	reported    atomic.Pointer[quests.Snapshot]
	unavailable atomic.Bool

	mu           sync.Mutex
	scheduler    *schedule.Scheduler
	lastSync     time.Time
	hidden       bool
	lastTick     time.Time
	autoLoginDay string

	actionMu         sync.Mutex
	autoLoginRunning atomic.Bool

	// lifeMu fences Dispose against a resync that is publishing or persisting.
	lifeMu sync.RWMutex

	gate     *gate
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  atomic.Bool
	disposed atomic.Bool
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Reader == nil {
		return nil, errors.New("reconcile: reader is required")
	}
	if cfg.Player == (common.Address{}) {
		return nil, errors.New("reconcile: player address is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = schedule.SystemClock{}
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.AutoLoginInterval <= 0 {
		cfg.AutoLoginInterval = DefaultAutoLoginInterval
	}
	if cfg.MaxSnapshotAge <= 0 {
		cfg.MaxSnapshotAge = DefaultMaxSnapshotAge
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:       cfg,
		player:    cfg.Player,
		reader:    cfg.Reader,
		tx:        cfg.Transactor,
		store:     cfg.Store,
		clock:     cfg.Clock,
		cal:       cfg.Calendar,
		scheduler: schedule.NewScheduler(cfg.Calendar, cfg.GraceWindow, schedule.Markers{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	e.gate = newGate(ctx, e.resync)
	return e, nil
}

func (e *Engine) Player() common.Address { return e.player }

// Start loads persisted markers, catches up on boundaries missed while the
// engine was down, requests the initial resync and starts the timers.
func (e *Engine) Start(ctx context.Context) error {
	if e.disposed.Load() {
		return quests.ErrDisposed
	}
	if !e.started.CompareAndSwap(false, true) {
		return nil
	}

	rec, err := e.store.LoadSyncRecord(ctx, e.player)
	if err != nil {
		slog.Warn("Failed to load sync record, starting fresh",
			slog.String("type", "sync"),
			slog.String("player", e.player.Hex()),
			slog.Any("error", err))
		rec = SyncRecord{Player: e.player}
	}

	now := e.clock.Now()
	e.mu.Lock()
	e.scheduler = schedule.NewScheduler(e.cal, e.cfg.GraceWindow, rec.Markers)
	e.lastSync = rec.LastSyncAt
	e.lastTick = now
	crossings := e.scheduler.Tick(now)
	e.mu.Unlock()

	reasons := e.handleCrossings(crossings)
	e.persist()
	e.gate.request(append(reasons, ReasonStartup)...)

	slog.Info("Quest sync engine started",
		slog.String("type", "sync"),
		slog.String("player", e.player.Hex()),
		slog.String("timezone", e.cal.Location().String()),
		slog.Int("missed_boundaries", len(crossings)))

	if e.cfg.TickInterval > 0 {
		e.wg.Add(1)
		go e.loop()
	}
	return nil
}

// Dispose stops all timers. A resync still in flight is discarded when it
// returns, and nothing is published or persisted once Dispose returns.
func (e *Engine) Dispose() {
	if !e.disposed.CompareAndSwap(false, true) {
		return
	}
	e.lifeMu.Lock()
	e.cancel()
	e.lifeMu.Unlock()
	e.wg.Wait()
	slog.Info("Quest sync engine disposed",
		slog.String("type", "sync"),
		slog.String("player", e.player.Hex()))
}

func (e *Engine) loop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	var syncC, loginC <-chan time.Time
	if e.cfg.SyncInterval > 0 {
		t := time.NewTicker(e.cfg.SyncInterval)
		defer t.Stop()
		syncC = t.C
	}
	if e.cfg.AutoLogin && e.tx != nil {
		t := time.NewTicker(e.cfg.AutoLoginInterval)
		defer t.Stop()
		loginC = t.C
	}

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.detectSuspend()
			e.Tick()
		case <-syncC:
			e.RequestResync(ReasonPeriodic)
		case <-loginC:
			e.startAutoLogin()
		}
	}
}

// detectSuspend treats a wall-clock gap of more than two tick intervals as
// the host having been asleep, which is the same as becoming visible again.
func (e *Engine) detectSuspend() {
	now := e.clock.Now()
	e.mu.Lock()
	gap := now.Round(0).Sub(e.lastTick.Round(0))
	e.mu.Unlock()
	if gap > 2*e.cfg.TickInterval {
		slog.Info("Wall clock jumped, treating as resume",
			slog.String("type", "sync"),
			slog.String("player", e.player.Hex()),
			slog.Duration("gap", gap))
		e.Resume()
	}
}

// Tick evaluates the reset boundaries once and requests a resync for every
// crossing. It never fails.
func (e *Engine) Tick() {
	if e.disposed.Load() {
		return
	}
	now := e.clock.Now()
	e.mu.Lock()
	crossings := e.scheduler.Tick(now)
	e.lastTick = now
	e.mu.Unlock()

	if len(crossings) == 0 {
		return
	}
	reasons := e.handleCrossings(crossings)
	e.persist()
	e.gate.request(reasons...)

	if e.cfg.AutoLogin && slices.Contains(reasons, ReasonDaily) {
		e.startAutoLogin()
	}
}

// startAutoLogin runs AutoLogin off the timer loop. A confirmation can take
// minutes, so at most one attempt runs at a time and ticks keep firing.
func (e *Engine) startAutoLogin() {
	if e.tx == nil || e.disposed.Load() {
		return
	}
	if !e.autoLoginRunning.CompareAndSwap(false, true) {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.autoLoginRunning.Store(false)
		e.AutoLogin(e.ctx)
	}()
}

func (e *Engine) handleCrossings(crossings []schedule.Crossing) []Reason {
	reasons := make([]Reason, 0, len(crossings))
	for _, c := range crossings {
		slog.Info("Quest reset boundary crossed",
			slog.String("type", "sync"),
			slog.String("player", e.player.Hex()),
			slog.String("cadence", c.Cadence.String()),
			slog.String("from", c.From),
			slog.String("to", c.To),
			slog.Bool("on_time", c.OnTime))
		reasons = append(reasons, boundaryReason(c.Cadence))
		for _, o := range e.cfg.CrossingObservers {
			if err := o.ObserveCrossing(e.ctx, e.player, c); err != nil {
				slog.Warn("Crossing observer failed",
					slog.String("type", "sync"),
					slog.Any("error", err))
			}
		}
	}
	return reasons
}

// SetVisible is the host's liveness signal. A hidden to visible transition
// triggers a resync when the last successful sync was on an earlier local day.
func (e *Engine) SetVisible(visible bool) {
	e.mu.Lock()
	wasHidden := e.hidden
	e.hidden = !visible
	e.mu.Unlock()
	if visible && wasHidden {
		e.Resume()
	}
}

// Resume handles the host coming back after it may have missed ticks.
func (e *Engine) Resume() {
	if e.disposed.Load() {
		return
	}
	now := e.clock.Now()
	e.mu.Lock()
	lastSync := e.lastSync
	crossings := e.scheduler.Tick(now)
	e.lastTick = now
	e.mu.Unlock()

	reasons := e.handleCrossings(crossings)
	if len(crossings) > 0 {
		e.persist()
	}
	if lastSync.IsZero() || e.cal.DayID(lastSync) != e.cal.DayID(now) {
		reasons = append(reasons, ReasonVisibility)
	}
	if len(reasons) > 0 {
		e.gate.request(reasons...)
	}
}

// RequestResync schedules a resync without waiting for it.
func (e *Engine) RequestResync(reasons ...Reason) {
	e.gate.request(reasons...)
}

// Resync runs (or joins) a resync and returns its snapshot. On an
// unavailable authority the previous snapshot is returned with the error.
func (e *Engine) Resync(ctx context.Context, reasons ...Reason) (*quests.Snapshot, error) {
	return wait(ctx, e.gate.request(reasons...))
}

// Refresh is the user initiated clear-and-refresh.
func (e *Engine) Refresh(ctx context.Context) (*quests.Snapshot, error) {
	return e.Resync(ctx, ReasonManual)
}

func (e *Engine) resync(ctx context.Context, reasons []Reason) (*quests.Snapshot, error) {
	readCtx, cancel := context.WithTimeout(ctx, defaultReadTimeout)
	defer cancel()

	start := time.Now()
	snap, err := e.reader.Snapshot(readCtx, e.player)

	e.lifeMu.RLock()
	defer e.lifeMu.RUnlock()
	if e.disposed.Load() || ctx.Err() != nil {
		return nil, quests.ErrDisposed
	}
	if err != nil {
		e.unavailable.Store(true)
		slog.Warn("Quest authority unavailable, keeping last snapshot",
			slog.String("type", "sync"),
			slog.String("player", e.player.Hex()),
			slog.Any("reasons", reasons),
			slog.Any("error", err))
		if !errors.Is(err, quests.ErrUnavailable) {
			err = fmt.Errorf("%w: %w", quests.ErrUnavailable, err)
		}
		return e.snapshot.Load(), err
	}

	e.snapshot.Store(snap)
	e.unavailable.Store(false)
	if slices.Contains(reasons, ReasonInconsistent) {
		// The authority was asked again and still reports the flag; keep
		// hiding it without asking once more.
		e.reported.Store(snap)
	}

	e.mu.Lock()
	e.lastSync = snap.FetchedAt
	e.mu.Unlock()
	e.save()

	slog.Debug("Quest state resynced",
		slog.String("type", "sync"),
		slog.String("player", e.player.Hex()),
		slog.Any("reasons", reasons),
		slog.Duration("took", time.Since(start)))
	return snap, nil
}

func (e *Engine) persist() {
	e.lifeMu.RLock()
	defer e.lifeMu.RUnlock()
	if e.disposed.Load() {
		return
	}
	e.save()
}

// save writes the sync record. Callers hold lifeMu for reading.
func (e *Engine) save() {
	e.mu.Lock()
	rec := SyncRecord{
		Player:     e.player,
		Markers:    e.scheduler.Markers(),
		LastSyncAt: e.lastSync,
	}
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultStoreTimeout)
	defer cancel()
	if err := e.store.SaveSyncRecord(ctx, rec); err != nil {
		slog.Error("Failed to persist sync record",
			slog.String("type", "sync"),
			slog.String("player", e.player.Hex()),
			slog.Any("error", err))
	}
}

// Markers returns the current reset markers.
func (e *Engine) Markers() schedule.Markers {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scheduler.Markers()
}

// LastSync is the time of the last successful resync.
func (e *Engine) LastSync() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

// Snapshot returns the raw cached snapshot, nil before the first resync.
func (e *Engine) Snapshot() *quests.Snapshot {
	return e.snapshot.Load()
}

// Status returns the reconciled view. Completion flags whose anchor is
// outside the current window are reported false and a resync is requested.
func (e *Engine) Status() Status {
	snap := e.snapshot.Load()
	if snap == nil {
		return Status{Player: e.player, Stale: e.unavailable.Load(), TotalClaimable: new(big.Int)}
	}
	st, inconsistent := reconcile(snap, e.clock.Now(), e.cal)
	st.LastSync = e.LastSync()
	st.Stale = e.unavailable.Load()

	if inconsistent && !e.disposed.Load() {
		if prev := e.reported.Load(); prev != snap && e.reported.CompareAndSwap(prev, snap) {
			e.reportInconsistency(snap)
		}
	}
	return st
}

// reportInconsistency fires at most once per snapshot.
func (e *Engine) reportInconsistency(snap *quests.Snapshot) {
	slog.Warn("Stale quest completion flag, resyncing",
		slog.String("type", "sync"),
		slog.String("player", e.player.Hex()),
		slog.Bool("daily_login", snap.State.DailyLoginCompleted),
		slog.Time("last_login", snap.State.LastLogin()),
		slog.Time("fetched_at", snap.FetchedAt))
	e.gate.request(ReasonInconsistent)
}
