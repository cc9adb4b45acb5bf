package repositories

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"

	"github.com/irysflip/questsync/internal/domain/quests"
	"github.com/irysflip/questsync/internal/gateways/database/models"
)

type ClaimReceiptRepository interface {
	Record(ctx context.Context, receipt quests.ClaimReceipt) error
	ListByPlayer(ctx context.Context, player common.Address, limit int) ([]quests.ClaimReceipt, error)
	TotalClaimed(ctx context.Context, player common.Address) (*big.Int, error)
	// ObserveClaim lets the repository be registered as a claim observer.
	ObserveClaim(ctx context.Context, receipt quests.ClaimReceipt) error
}

type claimReceiptRepository struct {
	db *bun.DB
}

func NewClaimReceiptRepository(db *bun.DB) ClaimReceiptRepository {
	return &claimReceiptRepository{db: db}
}

// Record stores receipt. Recording the same transaction twice is a no-op.
func (r *claimReceiptRepository) Record(ctx context.Context, receipt quests.ClaimReceipt) error {
	amount := "0"
	if receipt.Amount != nil {
		amount = receipt.Amount.String()
	}
	m := &models.ClaimReceipt{
		Player:    addressKey(receipt.Player),
		QuestType: int16(receipt.Quest),
		Amount:    amount,
		TxHash:    receipt.TxHash.Hex(),
		Block:     int64(receipt.Block),
		SettledAt: receipt.SettledAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	return withRetry(func() error {
		_, err := r.db.NewInsert().
			Model(m).
			On("CONFLICT (tx_hash) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to record claim receipt: %w", err)
		}
		return nil
	})
}

func (r *claimReceiptRepository) ObserveClaim(ctx context.Context, receipt quests.ClaimReceipt) error {
	return r.Record(ctx, receipt)
}

// ListByPlayer returns the newest receipts first. limit <= 0 means all.
func (r *claimReceiptRepository) ListByPlayer(ctx context.Context, player common.Address, limit int) ([]quests.ClaimReceipt, error) {
	var rows []models.ClaimReceipt
	q := r.db.NewSelect().
		Model(&rows).
		Where("player = ?", addressKey(player)).
		Order("settled_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list claim receipts: %w", err)
	}

	out := make([]quests.ClaimReceipt, 0, len(rows))
	for _, m := range rows {
		amount, ok := new(big.Int).SetString(m.Amount, 10)
		if !ok {
			amount = new(big.Int)
		}
		out = append(out, quests.ClaimReceipt{
			Player:    common.HexToAddress(m.Player),
			Quest:     quests.QuestType(m.QuestType),
			Amount:    amount,
			TxHash:    common.HexToHash(m.TxHash),
			Block:     uint64(m.Block),
			SettledAt: m.SettledAt,
		})
	}
	return out, nil
}

// TotalClaimed sums in Go because amounts are stored as decimal text.
func (r *claimReceiptRepository) TotalClaimed(ctx context.Context, player common.Address) (*big.Int, error) {
	var amounts []string
	err := r.db.NewSelect().
		Model((*models.ClaimReceipt)(nil)).
		Column("amount").
		Where("player = ?", addressKey(player)).
		Scan(ctx, &amounts)
	if err != nil {
		return nil, fmt.Errorf("failed to sum claim receipts: %w", err)
	}
	total := new(big.Int)
	for _, s := range amounts {
		if v, ok := new(big.Int).SetString(s, 10); ok {
			total.Add(total, v)
		}
	}
	return total, nil
}
