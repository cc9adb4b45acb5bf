package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ClaimReceipt struct {
	bun.BaseModel `bun:"table:claim_receipts,alias:cr"`

	ID        int64  `bun:"id,pk,autoincrement"`
	Player    string `bun:"player,notnull,type:text"`
	QuestType int16  `bun:"quest_type,notnull"`
	// Amount is the claimed reward in wei, as a decimal string.
	Amount    string    `bun:"amount,notnull,type:text"`
	TxHash    string    `bun:"tx_hash,notnull,unique,type:text"`
	Block     int64     `bun:"block,notnull"`
	SettledAt time.Time `bun:"settled_at,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
