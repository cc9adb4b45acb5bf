package quests

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type OutcomeStatus int

const (
	OutcomeSuccess OutcomeStatus = iota
	OutcomeRejected
	OutcomeCancelled
	OutcomeFailed
	OutcomePending
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeSuccess:
		return "success"
	case OutcomeRejected:
		return "rejected"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	case OutcomePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Outcome is the typed result of a claim or complete action.
type Outcome struct {
	Status           OutcomeStatus
	Quest            QuestType
	Amount           *big.Int
	TxHash           common.Hash
	AlreadyCompleted bool
	Err              error
}

// Reason returns the refusal reason for rejected outcomes.
func (o Outcome) Reason() Reason {
	var ae *ActionError
	if errors.As(o.Err, &ae) {
		return ae.Reason
	}
	return ""
}

func (o Outcome) Message() string {
	switch o.Status {
	case OutcomeSuccess:
		if o.AlreadyCompleted {
			return o.Quest.Title() + " quest already completed today"
		}
		if o.Amount != nil && o.Amount.Sign() > 0 {
			return o.Quest.Title() + " reward claimed! +" + FormatAmount(o.Amount) + " " + NativeSymbol
		}
		return o.Quest.Title() + " quest completed"
	case OutcomePending:
		return o.Quest.Title() + " transaction submitted, waiting for confirmation"
	case OutcomeCancelled:
		return o.Quest.Title() + " transaction cancelled"
	}
	if o.Err != nil {
		return o.Err.Error()
	}
	return o.Status.String()
}
