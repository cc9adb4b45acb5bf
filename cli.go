package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/irysflip/questsync/internal/domain/quests"
	"github.com/irysflip/questsync/internal/domain/reconcile"
	"github.com/irysflip/questsync/internal/gateways/chain"
)

// terminalApprover asks on out and reads y/N from in before every transaction.
func terminalApprover(in io.Reader, out io.Writer) chain.Approver {
	var mu sync.Mutex
	reader := bufio.NewReader(in)
	return func(ctx context.Context, req chain.TxRequest) (bool, error) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(out, "Sign %s (%s) from %s? [y/N] ", req.Method, req.Quest.Title(), req.From.Hex())
		answer := make(chan string, 1)
		go func() {
			line, _ := reader.ReadString('\n')
			answer <- strings.ToLower(strings.TrimSpace(line))
		}()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case a := <-answer:
			return a == "y" || a == "yes", nil
		}
	}
}

// timedTransactor bounds how long an action waits for a receipt. When the
// bound is hit the action reports Pending and a resync picks up the result.
type timedTransactor struct {
	reconcile.Transactor
	timeout time.Duration
}

func confirmTimeout(t reconcile.Transactor, timeout time.Duration) reconcile.Transactor {
	if timeout <= 0 {
		return t
	}
	return timedTransactor{Transactor: t, timeout: timeout}
}

func (t timedTransactor) WaitConfirmed(ctx context.Context, hash common.Hash) (*quests.TxReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Transactor.WaitConfirmed(ctx, hash)
}

func printStatus(w io.Writer, st reconcile.Status) {
	if !st.Ready {
		fmt.Fprintf(w, "%s: no quest data yet\n", st.Player.Hex())
		return
	}
	fmt.Fprintf(w, "Player %s (synced %s)\n", st.Player.Hex(), st.FetchedAt.Local().Format(time.DateTime))
	if st.Stale {
		fmt.Fprintln(w, "  authority unavailable, showing last known state")
	}
	if st.Optimistic {
		fmt.Fprintln(w, "  awaiting on-chain verification")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  QUEST\tPROGRESS\tDONE\tREWARD\tCLAIMABLE")
	for _, v := range st.Quests {
		done := "no"
		if v.Completed {
			done = "yes"
		}
		claimable := "-"
		if v.Claimable {
			claimable = "yes"
		}
		fmt.Fprintf(tw, "  %s\t%d/%d (%.0f%%)\t%s\t%s %s\t%s\n",
			v.Quest.Title(), v.Current, v.Required, v.Progress, done,
			quests.FormatAmount(v.Quote), quests.NativeSymbol, claimable)
	}
	tw.Flush()
	fmt.Fprintf(w, "  Total claimable: %s %s\n", quests.FormatAmount(st.TotalClaimable), quests.NativeSymbol)
}

func printOutcomes(w io.Writer, outcomes []quests.Outcome) {
	for _, o := range outcomes {
		line := fmt.Sprintf("[%s] %s", o.Status, o.Message())
		if o.TxHash != (common.Hash{}) {
			line += " tx=" + o.TxHash.Hex()
		}
		fmt.Fprintln(w, line)
	}
}

func printHistory(w io.Writer, receipts []quests.ClaimReceipt, total *big.Int) {
	if len(receipts) == 0 {
		fmt.Fprintln(w, "No claims recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SETTLED\tQUEST\tAMOUNT\tTX")
	for _, r := range receipts {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\n",
			r.SettledAt.Local().Format(time.DateTime), r.Quest.Title(),
			quests.FormatAmount(r.Amount), quests.NativeSymbol, r.TxHash.Hex())
	}
	tw.Flush()
	fmt.Fprintf(w, "Total claimed: %s %s\n", quests.FormatAmount(total), quests.NativeSymbol)
}
