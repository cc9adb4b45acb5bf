package reconcile

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_EvictsLeastRecentlyUsed(t *testing.T) {
	h := newHarness(at(2024, 5, 1, 12, 0))
	m, err := NewManager(h.config(), 1)
	require.NoError(t, err)

	alice := common.HexToAddress("0xa1")
	bob := common.HexToAddress("0xb0")

	first, err := m.Engine(context.Background(), alice)
	require.NoError(t, err)
	again, err := m.Engine(context.Background(), alice)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, alice, first.Player())

	second, err := m.Engine(context.Background(), bob)
	require.NoError(t, err)
	assert.True(t, first.disposed.Load())
	assert.False(t, second.disposed.Load())
	assert.Equal(t, []common.Address{bob}, m.Players())

	m.Close()
	assert.True(t, second.disposed.Load())
	assert.Empty(t, m.Players())
}

func TestManager_Remove(t *testing.T) {
	h := newHarness(at(2024, 5, 1, 12, 0))
	m, err := NewManager(h.config(), 0)
	require.NoError(t, err)
	defer m.Close()

	e, err := m.Engine(context.Background(), testPlayer)
	require.NoError(t, err)
	m.Remove(testPlayer)
	assert.True(t, e.disposed.Load())
	assert.Empty(t, m.Players())
}
