package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PlayerSyncRecord holds the reset markers and last sync time of one player.
type PlayerSyncRecord struct {
	bun.BaseModel `bun:"table:player_sync_records,alias:psr"`

	Address       string    `bun:"address,pk,type:text"`
	DailyMarker   string    `bun:"daily_marker,notnull,default:''"`
	WeeklyMarker  string    `bun:"weekly_marker,notnull,default:''"`
	MonthlyMarker string    `bun:"monthly_marker,notnull,default:''"`
	LastSyncAt    time.Time `bun:"last_sync_at,nullzero"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}
