package quests

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnavailable means the contract could not be read. Callers keep the
	// previous snapshot and retry on the next scheduled resync.
	ErrUnavailable = errors.New("quest authority unavailable")
	// ErrTxRejected means the signer declined the transaction.
	ErrTxRejected = errors.New("transaction rejected by signer")
	ErrNotStarted = errors.New("engine not started")
	ErrDisposed   = errors.New("engine disposed")
)

// Reason explains why an action was refused before reaching the network.
type Reason string

const (
	ReasonAlreadyClaimed   Reason = "already_claimed"
	ReasonNotCompleted     Reason = "not_completed"
	ReasonThresholdNotMet  Reason = "threshold_not_met"
	ReasonNotClaimable     Reason = "not_claimable"
	ReasonAlreadyCompleted Reason = "already_completed"
	ReasonNoSnapshot       Reason = "no_snapshot"
)

// ActionError is returned for claim or complete actions that fail local validation.
type ActionError struct {
	Action string
	Quest  QuestType
	Reason Reason
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s %s refused: %s", e.Action, e.Quest, e.Reason)
}

// TxFailedError is a transaction that was submitted but reverted or could not be confirmed.
type TxFailedError struct {
	Quest   QuestType
	TxHash  common.Hash
	Message string
}

func (e *TxFailedError) Error() string {
	if e.TxHash == (common.Hash{}) {
		return fmt.Sprintf("%s transaction failed: %s", e.Quest, e.Message)
	}
	return fmt.Sprintf("%s transaction %s failed: %s", e.Quest, e.TxHash.Hex(), e.Message)
}

// ErrReadOnly is returned for actions on an engine built without a transactor.
var ErrReadOnly = errors.New("engine has no transactor configured")
