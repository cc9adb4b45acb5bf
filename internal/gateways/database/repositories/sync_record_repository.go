package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"

	"github.com/irysflip/questsync/internal/domain/reconcile"
	"github.com/irysflip/questsync/internal/domain/schedule"
	"github.com/irysflip/questsync/internal/gateways/database/models"
)

// SyncRecordRepository is the durable reconcile.Store.
type SyncRecordRepository interface {
	reconcile.Store
	List(ctx context.Context) ([]reconcile.SyncRecord, error)
	Delete(ctx context.Context, player common.Address) error
}

type syncRecordRepository struct {
	db *bun.DB
}

func NewSyncRecordRepository(db *bun.DB) SyncRecordRepository {
	return &syncRecordRepository{db: db}
}

func (r *syncRecordRepository) LoadSyncRecord(ctx context.Context, player common.Address) (reconcile.SyncRecord, error) {
	var m models.PlayerSyncRecord
	err := withRetry(func() error {
		return r.db.NewSelect().
			Model(&m).
			Where("address = ?", addressKey(player)).
			Scan(ctx)
	})
	if err != nil {
		if isNoRows(err) {
			return reconcile.SyncRecord{Player: player}, nil
		}
		return reconcile.SyncRecord{}, fmt.Errorf("failed to load sync record: %w", err)
	}
	return toSyncRecord(m), nil
}

func (r *syncRecordRepository) SaveSyncRecord(ctx context.Context, rec reconcile.SyncRecord) error {
	m := &models.PlayerSyncRecord{
		Address:       addressKey(rec.Player),
		DailyMarker:   rec.Markers.Daily,
		WeeklyMarker:  rec.Markers.Weekly,
		MonthlyMarker: rec.Markers.Monthly,
		LastSyncAt:    rec.LastSyncAt.UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	return withRetry(func() error {
		_, err := r.db.NewInsert().
			Model(m).
			On("CONFLICT (address) DO UPDATE").
			Set("daily_marker = EXCLUDED.daily_marker").
			Set("weekly_marker = EXCLUDED.weekly_marker").
			Set("monthly_marker = EXCLUDED.monthly_marker").
			Set("last_sync_at = EXCLUDED.last_sync_at").
			Set("updated_at = EXCLUDED.updated_at").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save sync record: %w", err)
		}
		return nil
	})
}

func (r *syncRecordRepository) List(ctx context.Context) ([]reconcile.SyncRecord, error) {
	var rows []models.PlayerSyncRecord
	if err := r.db.NewSelect().Model(&rows).Order("address ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list sync records: %w", err)
	}
	out := make([]reconcile.SyncRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, toSyncRecord(m))
	}
	return out, nil
}

func (r *syncRecordRepository) Delete(ctx context.Context, player common.Address) error {
	_, err := r.db.NewDelete().
		Model((*models.PlayerSyncRecord)(nil)).
		Where("address = ?", addressKey(player)).
		Exec(ctx)
	return err
}

func toSyncRecord(m models.PlayerSyncRecord) reconcile.SyncRecord {
	return reconcile.SyncRecord{
		Player: common.HexToAddress(m.Address),
		Markers: schedule.Markers{
			Daily:   m.DailyMarker,
			Weekly:  m.WeeklyMarker,
			Monthly: m.MonthlyMarker,
		},
		LastSyncAt: m.LastSyncAt,
	}
}

// addressKey normalizes addresses so checksummed and lowercase input match.
func addressKey(a common.Address) string {
	return strings.ToLower(a.Hex())
}
