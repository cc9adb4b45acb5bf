// Package notify posts claim and reset announcements to a Discord webhook.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/webhook"
	"github.com/disgoorg/snowflake/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/irysflip/questsync/internal/domain/quests"
	"github.com/irysflip/questsync/internal/domain/schedule"
)

const (
	colorClaim = 0x00FF00
	colorReset = 0x5865F2
)

// Sender is the part of webhook.Client the notifier uses.
type Sender interface {
	CreateEmbeds(embeds []discord.Embed, opts ...rest.RequestOpt) (*discord.Message, error)
}

type Notifier struct {
	sender     Sender
	webhookID  snowflake.ID
	explorer   string
	announceUp bool
	close      func()
}

type Options struct {
	// ExplorerTxURL is a printf pattern for transaction links, e.g.
	// "https://testnet-explorer.irys.xyz/tx/%s". Empty disables links.
	ExplorerTxURL string
	// AnnounceResets also posts boundary crossings.
	AnnounceResets bool
}

func New(url string, opts Options) (*Notifier, error) {
	client, err := webhook.NewWithURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url: %w", err)
	}
	n := NewWithSender(client, opts)
	n.webhookID = client.ID()
	n.close = func() { client.Close(context.Background()) }
	return n, nil
}

func NewWithSender(sender Sender, opts Options) *Notifier {
	return &Notifier{
		sender:     sender,
		explorer:   opts.ExplorerTxURL,
		announceUp: opts.AnnounceResets,
	}
}

func (n *Notifier) Close() {
	if n.close != nil {
		n.close()
	}
}

func (n *Notifier) ObserveClaim(ctx context.Context, r quests.ClaimReceipt) error {
	desc := fmt.Sprintf("**%s** reward claimed by `%s`\n+%s %s",
		r.Quest.Title(), shortAddress(r.Player), quests.FormatAmount(r.Amount), quests.NativeSymbol)
	if n.explorer != "" {
		desc += fmt.Sprintf("\n[View transaction](%s)", fmt.Sprintf(n.explorer, r.TxHash.Hex()))
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Quest Reward Claimed").
		SetDescription(desc).
		SetColor(colorClaim).
		SetTimestamp(r.SettledAt).
		Build()
	return n.send(ctx, embed, "claim")
}

func (n *Notifier) ObserveCrossing(ctx context.Context, player common.Address, c schedule.Crossing) error {
	if !n.announceUp {
		return nil
	}
	desc := fmt.Sprintf("%s quests reset for `%s` (%s → %s)",
		titleCase(c.Cadence.String()), shortAddress(player), c.From, c.To)
	if !c.OnTime {
		desc += "\nCaught up after the engine was offline."
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Quest Reset").
		SetDescription(desc).
		SetColor(colorReset).
		SetTimestamp(time.Now()).
		Build()
	return n.send(ctx, embed, "reset")
}

func (n *Notifier) send(ctx context.Context, embed discord.Embed, kind string) error {
	if _, err := n.sender.CreateEmbeds([]discord.Embed{embed}, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to post %s notification: %w", kind, err)
	}
	slog.Debug("Webhook notification sent",
		slog.String("type", "sys"),
		slog.String("kind", kind),
		slog.String("webhook_id", n.webhookID.String()))
	return nil
}

func shortAddress(a common.Address) string {
	h := a.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
