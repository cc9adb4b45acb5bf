package reconcile

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irysflip/questsync/internal/domain/quests"
	"github.com/irysflip/questsync/internal/domain/schedule"
)

var (
	testPlayer = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testZone   = time.FixedZone("UTC+8", 8*3600)
)

func at(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, testZone)
}

func wei(v int64) *big.Int { return big.NewInt(v) }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// fakeReader serves snapshots built from its fields. When hold is set every
// read blocks until hold is closed or the read context ends.
type fakeReader struct {
	clock *fakeClock

	mu        sync.Mutex
	state     quests.PlayerQuestState
	claimable map[quests.QuestType]bool
	quotes    map[quests.QuestType]*big.Int
	err       error
	calls     int
	entered   chan struct{}
	hold      chan struct{}
}

func newFakeReader(clock *fakeClock) *fakeReader {
	return &fakeReader{
		clock:     clock,
		claimable: make(map[quests.QuestType]bool),
		quotes:    make(map[quests.QuestType]*big.Int),
	}
}

func (r *fakeReader) Snapshot(ctx context.Context, player common.Address) (*quests.Snapshot, error) {
	r.mu.Lock()
	r.calls++
	entered, hold := r.entered, r.hold
	r.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	snap := quests.NewSnapshot(player, r.clock.Now())
	snap.State = r.state
	for q, ok := range r.claimable {
		snap.Claimable[q] = ok
	}
	for q, v := range r.quotes {
		snap.Quotes[q] = new(big.Int).Set(v)
	}
	return snap, nil
}

func (r *fakeReader) update(fn func(r *fakeReader)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

func (r *fakeReader) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeTransactor struct {
	mu        sync.Mutex
	submitErr error
	waitErr   error
	receipt   quests.TxReceipt
	onConfirm func()
	logins    int
	claims    []quests.QuestType
}

func newFakeTransactor() *fakeTransactor {
	return &fakeTransactor{receipt: quests.TxReceipt{Succeeded: true, BlockNumber: 42}}
}

func (t *fakeTransactor) CompleteDailyLogin(context.Context) (common.Hash, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logins++
	if t.submitErr != nil {
		return common.Hash{}, t.submitErr
	}
	return common.HexToHash("0xaa"), nil
}

func (t *fakeTransactor) ClaimQuestReward(_ context.Context, q quests.QuestType) (common.Hash, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.claims = append(t.claims, q)
	if t.submitErr != nil {
		return common.Hash{}, t.submitErr
	}
	return common.BigToHash(big.NewInt(int64(0xb0 + int(q)))), nil
}

func (t *fakeTransactor) WaitConfirmed(_ context.Context, hash common.Hash) (*quests.TxReceipt, error) {
	t.mu.Lock()
	waitErr, onConfirm, rcpt := t.waitErr, t.onConfirm, t.receipt
	t.mu.Unlock()
	if waitErr != nil {
		return nil, waitErr
	}
	if onConfirm != nil {
		onConfirm()
	}
	rcpt.TxHash = hash
	if rcpt.ClaimedAmount != nil {
		rcpt.ClaimedAmount = new(big.Int).Set(rcpt.ClaimedAmount)
	}
	return &rcpt, nil
}

func (t *fakeTransactor) Logins() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.logins
}

func (t *fakeTransactor) Claims() []quests.QuestType {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]quests.QuestType(nil), t.claims...)
}

type recordingObserver struct {
	mu        sync.Mutex
	crossings []schedule.Crossing
	claims    []quests.ClaimReceipt
}

func (o *recordingObserver) ObserveCrossing(_ context.Context, _ common.Address, c schedule.Crossing) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.crossings = append(o.crossings, c)
	return nil
}

func (o *recordingObserver) ObserveClaim(_ context.Context, r quests.ClaimReceipt) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.claims = append(o.claims, r)
	return nil
}

func (o *recordingObserver) Crossings() []schedule.Crossing {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]schedule.Crossing(nil), o.crossings...)
}

func (o *recordingObserver) Claims() []quests.ClaimReceipt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]quests.ClaimReceipt(nil), o.claims...)
}

type harness struct {
	clock    *fakeClock
	reader   *fakeReader
	tx       *fakeTransactor
	store    *MemoryStore
	observer *recordingObserver
}

func newHarness(now time.Time) *harness {
	clock := &fakeClock{now: now}
	return &harness{
		clock:    clock,
		reader:   newFakeReader(clock),
		tx:       newFakeTransactor(),
		store:    NewMemoryStore(),
		observer: &recordingObserver{},
	}
}

func (h *harness) config() Config {
	return Config{
		Player:            testPlayer,
		Reader:            h.reader,
		Transactor:        h.tx,
		Store:             h.store,
		Clock:             h.clock,
		Calendar:          schedule.NewCalendar(testZone),
		TickInterval:      -1,
		ClaimObservers:    []ClaimObserver{h.observer},
		CrossingObservers: []CrossingObserver{h.observer},
	}
}

// engine builds and starts an engine, then waits for a completed resync.
func (h *harness) engine(t *testing.T, mutate ...func(*Config)) *Engine {
	t.Helper()
	cfg := h.config()
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	t.Cleanup(e.Dispose)

	require.NoError(t, e.Start(context.Background()))
	_, err = e.Resync(context.Background(), ReasonManual)
	require.NoError(t, err)
	return e
}

func TestNewEngine_Validation(t *testing.T) {
	h := newHarness(at(2024, 5, 1, 12, 0))

	cfg := h.config()
	cfg.Reader = nil
	_, err := NewEngine(cfg)
	assert.Error(t, err)

	cfg = h.config()
	cfg.Player = common.Address{}
	_, err = NewEngine(cfg)
	assert.Error(t, err)
}

func TestEngine_StaleDailyLoginHidden(t *testing.T) {
	h := newHarness(at(2024, 5, 2, 9, 0))
	h.reader.update(func(r *fakeReader) {
		r.state.DailyLoginCompleted = true
		r.state.LastLoginTimestamp = at(2024, 5, 1, 20, 0).Unix()
		r.claimable[quests.DailyLogin] = true
		r.quotes[quests.DailyLogin] = wei(10_000_000_000_000_000)
	})
	e := h.engine(t)
	before := h.reader.Calls()

	st := e.Status()
	login := st.Quest(quests.DailyLogin)
	assert.False(t, login.Completed)
	assert.True(t, login.StaleFlag)
	assert.False(t, login.Claimable)
	assert.Equal(t, 0, st.TotalClaimable.Sign())

	require.Eventually(t, func() bool {
		return h.reader.Calls() > before && e.reported.Load() == e.Snapshot()
	}, time.Second, 5*time.Millisecond)

	// the authority still reports the flag, so it stays hidden without another resync
	calls := h.reader.Calls()
	assert.False(t, e.Status().Quest(quests.DailyLogin).Completed)
	assert.Equal(t, calls, h.reader.Calls())
}

func TestEngine_StartupCatchUp(t *testing.T) {
	h := newHarness(at(2024, 5, 2, 10, 0))
	require.NoError(t, h.store.SaveSyncRecord(context.Background(), SyncRecord{
		Player:  testPlayer,
		Markers: schedule.Markers{Daily: "2024-04-28", Weekly: "2024-W17", Monthly: "2024-04"},
	}))

	e := h.engine(t)

	crossings := h.observer.Crossings()
	require.Len(t, crossings, 3)
	for _, c := range crossings {
		assert.False(t, c.OnTime, c.Cadence.String())
	}
	assert.Equal(t, schedule.Markers{Daily: "2024-05-02", Weekly: "2024-W18", Monthly: "2024-05"}, e.Markers())

	rec, err := h.store.LoadSyncRecord(context.Background(), testPlayer)
	require.NoError(t, err)
	assert.Equal(t, e.Markers(), rec.Markers)
	assert.Equal(t, at(2024, 5, 2, 10, 0), rec.LastSyncAt)
}

func TestEngine_TickCrossesMidnight(t *testing.T) {
	h := newHarness(at(2024, 5, 1, 23, 59))
	e := h.engine(t)
	assert.Empty(t, h.observer.Crossings())
	before := h.reader.Calls()

	h.clock.Set(at(2024, 5, 2, 0, 1))
	e.Tick()

	crossings := h.observer.Crossings()
	require.Len(t, crossings, 1)
	assert.Equal(t, schedule.Crossing{Cadence: quests.Daily, From: "2024-05-01", To: "2024-05-02", OnTime: true}, crossings[0])
	assert.Equal(t, "2024-05-02", e.Markers().Daily)
	require.Eventually(t, func() bool { return h.reader.Calls() > before }, time.Second, 5*time.Millisecond)

	e.Tick()
	assert.Len(t, h.observer.Crossings(), 1)
}

func TestEngine_VisibilityCatchUp(t *testing.T) {
	h := newHarness(at(2024, 5, 1, 22, 0))
	h.reader.update(func(r *fakeReader) {
		r.state.DailyFlipCompleted = true
		r.state.DailyFlipsToday = 10
	})
	e := h.engine(t)
	assert.True(t, e.Status().Quest(quests.DailyFlip).Completed)

	e.SetVisible(false)
	h.clock.Set(at(2024, 5, 2, 8, 30))
	h.reader.update(func(r *fakeReader) {
		r.state.DailyFlipCompleted = false
		r.state.DailyFlipsToday = 0
	})
	e.SetVisible(true)

	require.Eventually(t, func() bool {
		return schedule.NewCalendar(testZone).DayID(e.LastSync()) == "2024-05-02"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "2024-05-02", e.Markers().Daily)
	assert.False(t, e.Status().Quest(quests.DailyFlip).Completed)
	require.Len(t, h.observer.Crossings(), 1)
	assert.False(t, h.observer.Crossings()[0].OnTime)
}

func TestEngine_UnavailableKeepsLastSnapshot(t *testing.T) {
	h := newHarness(at(2024, 5, 1, 12, 0))
	h.reader.update(func(r *fakeReader) { r.state.WeeklyFlips = 20 })
	e := h.engine(t)
	good := e.Snapshot()
	require.NotNil(t, good)

	rpcErr := errors.New("dial tcp: connection refused")
	h.reader.update(func(r *fakeReader) { r.err = rpcErr })

	snap, err := e.Resync(context.Background(), ReasonManual)
	assert.ErrorIs(t, err, quests.ErrUnavailable)
	assert.ErrorIs(t, err, rpcErr)
	assert.Same(t, good, snap)

	st := e.Status()
	assert.True(t, st.Ready)
	assert.True(t, st.Stale)
	assert.Equal(t, uint64(20), st.Quest(quests.WeeklyFlips).Current)

	h.reader.update(func(r *fakeReader) { r.err = nil })
	_, err = e.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, e.Status().Stale)
}

func TestEngine_UnavailableBeforeFirstSnapshot(t *testing.T) {
	h := newHarness(at(2024, 5, 1, 12, 0))
	h.reader.update(func(r *fakeReader) { r.err = errors.New("timeout") })

	e, err := NewEngine(h.config())
	require.NoError(t, err)
	t.Cleanup(e.Dispose)
	require.NoError(t, e.Start(context.Background()))

	snap, err := e.Resync(context.Background(), ReasonManual)
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, quests.ErrUnavailable)

	st := e.Status()
	assert.False(t, st.Ready)
	assert.True(t, st.Stale)
}

func TestEngine_DisposeDiscardsInFlightResync(t *testing.T) {
	h := newHarness(at(2024, 5, 1, 12, 0))
	entered := make(chan struct{}, 1)
	h.reader.update(func(r *fakeReader) {
		r.entered = entered
		r.hold = make(chan struct{})
	})

	e, err := NewEngine(h.config())
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	<-entered

	followUp := e.gate.request(ReasonManual)
	e.Dispose()

	_, err = wait(context.Background(), followUp)
	assert.ErrorIs(t, err, quests.ErrDisposed)
	assert.Nil(t, e.Snapshot())

	_, err = e.Resync(context.Background(), ReasonManual)
	assert.ErrorIs(t, err, quests.ErrDisposed)
	assert.ErrorIs(t, e.Start(context.Background()), quests.ErrDisposed)
}

func TestEngine_ImmediateResyncsShareOneRead(t *testing.T) {
	h := newHarness(at(2024, 5, 1, 12, 0))
	e := h.engine(t)
	before := h.reader.Calls()

	hold := make(chan struct{})
	h.reader.update(func(r *fakeReader) { r.hold = hold })

	e.RequestResync(ReasonManual)
	done := make(chan result, 1)
	go func() {
		snap, err := e.Resync(context.Background(), ReasonManual)
		done <- result{snap: snap, err: err}
	}()
	require.Eventually(t, func() bool {
		inflight, pending := e.gate.waiting()
		return inflight+pending == 2
	}, time.Second, 5*time.Millisecond)
	close(hold)

	res := <-done
	require.NoError(t, res.err)
	assert.Same(t, e.Snapshot(), res.snap)
	assert.Equal(t, before+1, h.reader.Calls())
}

func TestEngine_TicksContinueWhileAutoLoginPending(t *testing.T) {
	h := newHarness(at(2024, 5, 1, 23, 58))
	release := make(chan struct{})
	h.tx.onConfirm = func() { <-release }
	e := h.engine(t, func(c *Config) {
		c.TickInterval = 10 * time.Millisecond
		c.AutoLogin = true
		c.AutoLoginInterval = 5 * time.Millisecond
	})
	defer close(release)

	require.Eventually(t, func() bool { return h.tx.Logins() == 1 }, time.Second, time.Millisecond)

	h.clock.Set(at(2024, 5, 2, 0, 1))
	require.Eventually(t, func() bool {
		return len(h.observer.Crossings()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "2024-05-02", e.Markers().Daily)

	// the confirmation is still pending, so no second login was started
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, h.tx.Logins())
}

// gatedStore blocks saves while block is set, reporting each one on entered.
type gatedStore struct {
	*MemoryStore
	block   atomic.Bool
	saves   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) SaveSyncRecord(ctx context.Context, rec SyncRecord) error {
	if s.block.Load() {
		s.entered <- struct{}{}
		<-s.release
	}
	s.saves.Add(1)
	return s.MemoryStore.SaveSyncRecord(ctx, rec)
}

func TestEngine_DisposeWaitsForInFlightSave(t *testing.T) {
	h := newHarness(at(2024, 5, 1, 12, 0))
	store := &gatedStore{
		MemoryStore: h.store,
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	e := h.engine(t, func(c *Config) { c.Store = store })

	store.block.Store(true)
	h.clock.Set(at(2024, 5, 1, 13, 0))
	e.RequestResync(ReasonManual)
	<-store.entered
	store.block.Store(false)

	disposed := make(chan struct{})
	go func() {
		e.Dispose()
		close(disposed)
	}()
	isClosed := func() bool {
		select {
		case <-disposed:
			return true
		default:
			return false
		}
	}
	assert.Never(t, isClosed, 50*time.Millisecond, 5*time.Millisecond)
	close(store.release)
	require.Eventually(t, isClosed, time.Second, 5*time.Millisecond)

	rec, err := store.LoadSyncRecord(context.Background(), testPlayer)
	require.NoError(t, err)
	assert.Equal(t, at(2024, 5, 1, 13, 0), rec.LastSyncAt)

	saves := store.saves.Load()
	h.clock.Set(at(2024, 5, 2, 1, 0))
	e.Tick()
	e.persist()
	assert.Equal(t, saves, store.saves.Load())
	assert.Equal(t, "2024-05-01", e.Markers().Daily)
}
