package repositories_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irysflip/questsync/internal/domain/quests"
	"github.com/irysflip/questsync/internal/domain/reconcile"
	"github.com/irysflip/questsync/internal/domain/schedule"
	"github.com/irysflip/questsync/internal/gateways/database"
	"github.com/irysflip/questsync/internal/gateways/database/repositories"
)

var player = common.HexToAddress("0xAbCdEf0000000000000000000000000000000001")

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.New(ctx, database.DBConfig{Driver: database.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.InitializeSchema(ctx))
	return db
}

func TestSyncRecordRepository(t *testing.T) {
	db := setupDB(t)
	repo := repositories.NewSyncRecordRepository(db.BunDB())
	ctx := context.Background()

	t.Run("missing record is zero", func(t *testing.T) {
		rec, err := repo.LoadSyncRecord(ctx, player)
		require.NoError(t, err)
		assert.Equal(t, reconcile.SyncRecord{Player: player}, rec)
	})

	t.Run("save then update", func(t *testing.T) {
		synced := time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)
		first := reconcile.SyncRecord{
			Player:     player,
			Markers:    schedule.Markers{Daily: "2024-05-01", Weekly: "2024-W18", Monthly: "2024-05"},
			LastSyncAt: synced,
		}
		require.NoError(t, repo.SaveSyncRecord(ctx, first))

		second := first
		second.Markers.Daily = "2024-05-02"
		second.LastSyncAt = synced.Add(2 * time.Minute)
		require.NoError(t, repo.SaveSyncRecord(ctx, second))

		got, err := repo.LoadSyncRecord(ctx, player)
		require.NoError(t, err)
		assert.Equal(t, second.Markers, got.Markers)
		assert.True(t, second.LastSyncAt.Equal(got.LastSyncAt))
		assert.Equal(t, player, got.Player)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, player))
		rec, err := repo.LoadSyncRecord(ctx, player)
		require.NoError(t, err)
		assert.Empty(t, rec.Markers.Daily)
	})
}

func TestClaimReceiptRepository(t *testing.T) {
	db := setupDB(t)
	repo := repositories.NewClaimReceiptRepository(db.BunDB())
	ctx := context.Background()

	settled := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	receipts := []quests.ClaimReceipt{
		{
			Player:    player,
			Quest:     quests.DailyFlip,
			Amount:    big.NewInt(20_000_000_000_000_000),
			TxHash:    common.HexToHash("0x01"),
			Block:     100,
			SettledAt: settled,
		},
		{
			Player:    player,
			Quest:     quests.WeeklyFlips,
			Amount:    big.NewInt(100_000_000_000_000_000),
			TxHash:    common.HexToHash("0x02"),
			Block:     101,
			SettledAt: settled.Add(time.Hour),
		},
	}
	for _, r := range receipts {
		require.NoError(t, repo.Record(ctx, r))
	}
	// duplicate transaction is ignored
	require.NoError(t, repo.ObserveClaim(ctx, receipts[0]))

	got, err := repo.ListByPlayer(ctx, player, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, quests.WeeklyFlips, got[0].Quest)
	assert.Equal(t, receipts[1].TxHash, got[0].TxHash)
	assert.Equal(t, 0, receipts[0].Amount.Cmp(got[1].Amount))

	limited, err := repo.ListByPlayer(ctx, player, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	total, err := repo.TotalClaimed(ctx, player)
	require.NoError(t, err)
	assert.Equal(t, "0.12", quests.FormatAmount(total))

	other, err := repo.ListByPlayer(ctx, common.HexToAddress("0x02"), 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}
