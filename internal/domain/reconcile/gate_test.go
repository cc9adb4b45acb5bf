package reconcile

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irysflip/questsync/internal/domain/quests"
)

func TestGate_BatchesFollowUpDuringFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	started := make(chan []Reason, 4)
	var runs atomic.Int32
	g := newGate(ctx, func(ctx context.Context, reasons []Reason) (*quests.Snapshot, error) {
		n := runs.Add(1)
		started <- reasons
		if n == 1 {
			<-release
		}
		return &quests.Snapshot{FetchedAt: time.Unix(int64(n), 0)}, nil
	})

	a := g.request(ReasonDaily)
	assert.Equal(t, []Reason{ReasonDaily}, <-started)

	b := g.request(ReasonVerify)
	c := g.request(ReasonTxFailed, ReasonVerify)
	close(release)

	snapA, err := wait(ctx, a)
	require.NoError(t, err)
	snapB, err := wait(ctx, b)
	require.NoError(t, err)
	snapC, err := wait(ctx, c)
	require.NoError(t, err)

	assert.Equal(t, []Reason{ReasonVerify, ReasonTxFailed}, <-started)
	assert.Same(t, snapB, snapC)
	assert.NotSame(t, snapA, snapB)
	assert.Equal(t, int32(2), runs.Load())
}

func TestGate_JoinsRunInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	entered := make(chan struct{}, 4)
	var runs atomic.Int32
	g := newGate(ctx, func(ctx context.Context, reasons []Reason) (*quests.Snapshot, error) {
		n := runs.Add(1)
		entered <- struct{}{}
		<-release
		return &quests.Snapshot{FetchedAt: time.Unix(int64(n), 0)}, nil
	})

	a := g.request(ReasonManual)
	<-entered
	b := g.request(ReasonManual)
	c := g.request(ReasonVisibility, ReasonPreAction)
	d := g.request(ReasonManual, ReasonMonthly)

	inflight, pending := g.waiting()
	assert.Equal(t, 3, inflight)
	assert.Equal(t, 1, pending, "boundary reason waits for a fresh read")
	close(release)

	snapA, err := wait(ctx, a)
	require.NoError(t, err)
	snapB, err := wait(ctx, b)
	require.NoError(t, err)
	snapC, err := wait(ctx, c)
	require.NoError(t, err)
	snapD, err := wait(ctx, d)
	require.NoError(t, err)

	assert.Same(t, snapA, snapB)
	assert.Same(t, snapA, snapC)
	assert.NotSame(t, snapA, snapD)
	assert.Equal(t, int32(2), runs.Load())
}

func TestGate_BackToBackRequestsShareOneRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 200; i++ {
		var runs atomic.Int32
		release := make(chan struct{})
		g := newGate(ctx, func(context.Context, []Reason) (*quests.Snapshot, error) {
			runs.Add(1)
			<-release
			return &quests.Snapshot{}, nil
		})

		a := g.request(ReasonManual)
		b := g.request(ReasonManual)
		close(release)
		snapA, err := wait(ctx, a)
		require.NoError(t, err)
		snapB, err := wait(ctx, b)
		require.NoError(t, err)

		require.Same(t, snapA, snapB)
		require.Equal(t, int32(1), runs.Load())
	}
}

func TestGate_RejectsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := newGate(ctx, func(context.Context, []Reason) (*quests.Snapshot, error) {
		t.Fatal("run after cancel")
		return nil, nil
	})
	cancel()

	_, err := wait(context.Background(), g.request(ReasonManual))
	assert.ErrorIs(t, err, quests.ErrDisposed)
}

func TestWait_ContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := wait(ctx, make(chan result))
	assert.ErrorIs(t, err, context.Canceled)
}
