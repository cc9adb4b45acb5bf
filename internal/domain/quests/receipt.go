package quests

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TxReceipt is the settled result of a state-changing call.
type TxReceipt struct {
	TxHash       common.Hash
	BlockNumber  uint64
	Succeeded    bool
	RevertReason string
	// ClaimedAmount is taken from the QuestRewardClaimed event; nil when the
	// receipt carries no such event.
	ClaimedAmount *big.Int
}

// ClaimReceipt records one settled reward claim.
type ClaimReceipt struct {
	Player    common.Address
	Quest     QuestType
	Amount    *big.Int
	TxHash    common.Hash
	Block     uint64
	SettledAt time.Time
}
