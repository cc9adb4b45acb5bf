package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/irysflip/questsync/internal/domain/quests"
)

// codeUserRejected is the EIP-1193 "user rejected request" code returned by
// remote signers.
const codeUserRejected = 4001

var rejectionHints = []string{
	"user rejected",
	"user denied",
	"rejected by user",
}

// classify maps a submission error onto the quest error model. Declines
// become quests.ErrTxRejected; anything else keeps its revert message.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeUserRejected {
		return fmt.Errorf("%w: %w", quests.ErrTxRejected, err)
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range rejectionHints {
		if strings.Contains(msg, hint) {
			return fmt.Errorf("%w: %w", quests.ErrTxRejected, err)
		}
	}
	if reason := revertMessage(err); reason != "" && reason != err.Error() {
		return fmt.Errorf("%s: %w", reason, err)
	}
	return err
}

// revertMessage extracts the Error(string) payload from a call error when the
// node returns revert data, otherwise the error text itself.
func revertMessage(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			if data, decErr := hexutil.Decode(s); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason
				}
			}
		}
	}
	return strings.TrimPrefix(err.Error(), "execution reverted: ")
}
