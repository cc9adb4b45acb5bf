package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/irysflip/questsync/internal/domain/authority"
	"github.com/irysflip/questsync/internal/domain/quests"
	"github.com/irysflip/questsync/internal/domain/reconcile"
	"github.com/irysflip/questsync/internal/domain/schedule"
	"github.com/irysflip/questsync/internal/gateways/archive"
	"github.com/irysflip/questsync/internal/gateways/chain"
	"github.com/irysflip/questsync/internal/gateways/database"
	"github.com/irysflip/questsync/internal/gateways/database/repositories"
	"github.com/irysflip/questsync/internal/gateways/notify"
	"github.com/irysflip/questsync/questsync"
	"github.com/irysflip/questsync/questsync/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	path := flag.String("config", "config.toml", "path to config")
	playerFlag := flag.String("player", "", "player address (defaults to the signer)")
	showStatus := flag.Bool("status", false, "print reconciled quest status and exit")
	claimFlag := flag.String("claim", "", "claim one quest reward by name, alias or index and exit")
	claimAll := flag.Bool("claim-all", false, "claim every claimable quest reward and exit")
	completeLogin := flag.Bool("complete-login", false, "complete the daily login quest and exit")
	history := flag.Int("history", 0, "print the last N claim receipts and exit")
	flag.Parse()

	cfg, err := questsync.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	color := cfg.Log.Color == nil || *cfg.Log.Color
	slog.SetDefault(slog.New(logger.NewHandlerWithWriter(os.Stdout, cfg.Log.Level, color)))
	logger.LogSystem("Starting quest sync engine",
		slog.String("version", version),
		slog.String("commit", commit))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		logger.LogError("Startup failed", err)
		os.Exit(-1)
	}
	defer app.Close()

	players, err := app.players(*playerFlag)
	if err != nil {
		logger.LogError("No player to track", err)
		os.Exit(-1)
	}

	oneShot := *showStatus || *claimFlag != "" || *claimAll || *completeLogin || *history > 0
	if !oneShot {
		app.run(ctx, players)
		return
	}

	code := 0
	if err := app.once(ctx, players[0], onceOptions{
		status:        *showStatus,
		claim:         *claimFlag,
		claimAll:      *claimAll,
		completeLogin: *completeLogin,
		history:       *history,
	}); err != nil {
		logger.LogError("Command failed", err)
		code = 1
	}
	app.Close()
	os.Exit(code)
}

type app struct {
	cfg      *questsync.Config
	db       *database.DB
	client   *chain.Client
	receipts repositories.ClaimReceiptRepository
	manager  *reconcile.Manager
	notifier *notify.Notifier
	closed   bool
}

func newApp(ctx context.Context, cfg *questsync.Config) (*app, error) {
	cal, err := schedule.LoadCalendar(cfg.Sync.Timezone)
	if err != nil {
		return nil, err
	}

	dbStart := time.Now()
	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := db.InitializeSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.LogSystem("Database ready",
		slog.String("driver", db.Driver()),
		slog.Duration("took", time.Since(dbStart)))

	var approver chain.Approver
	if cfg.Chain.ConfirmTransactions {
		approver = terminalApprover(os.Stdin, os.Stdout)
	}
	client, err := chain.Dial(ctx, chain.Config{
		RPCURL:              cfg.Chain.RPCURL,
		ChainID:             cfg.Chain.ChainID,
		Contract:            cfg.Chain.Contract,
		PrivateKey:          cfg.Chain.PrivateKey,
		ABIPath:             cfg.Chain.ABIPath,
		ReceiptPollInterval: cfg.Chain.ReceiptPollInterval.Duration,
	}, approver)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		db:       db,
		client:   client,
		receipts: repositories.NewClaimReceiptRepository(db.BunDB()),
	}

	claimObservers := []reconcile.ClaimObserver{a.receipts}
	var crossingObservers []reconcile.CrossingObserver
	if cfg.Archive.Enabled() {
		arch, err := archive.New(ctx, archive.Config(cfg.Archive))
		if err != nil {
			a.Close()
			return nil, err
		}
		claimObservers = append(claimObservers, arch)
	}
	if cfg.Notify.Enabled() {
		n, err := notify.New(cfg.Notify.WebhookURL, notify.Options{
			ExplorerTxURL:  cfg.Notify.ExplorerTxURL,
			AnnounceResets: cfg.Notify.AnnounceResets,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.notifier = n
		claimObservers = append(claimObservers, n)
		crossingObservers = append(crossingObservers, n)
	}

	template := reconcile.Config{
		Reader:            authority.NewReader(client, nil),
		Store:             repositories.NewSyncRecordRepository(db.BunDB()),
		Calendar:          cal,
		GraceWindow:       cfg.Sync.GraceWindow.Duration,
		TickInterval:      cfg.Sync.TickInterval.Duration,
		SyncInterval:      cfg.Sync.SyncInterval.Duration,
		AutoLogin:         cfg.Sync.AutoLogin,
		AutoLoginInterval: cfg.Sync.AutoLoginInterval.Duration,
		MaxSnapshotAge:    cfg.Sync.MaxSnapshotAge.Duration,
		ClaimObservers:    claimObservers,
		CrossingObservers: crossingObservers,
	}
	if client.CanTransact() {
		template.Transactor = confirmTimeout(client, cfg.Chain.ConfirmTimeout.Duration)
		logger.LogChain("Transactions enabled",
			slog.String("signer", client.Signer().Hex()),
			slog.Bool("confirm", cfg.Chain.ConfirmTransactions))
	}

	a.manager, err = reconcile.NewManager(template, cfg.Sync.CacheSize)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if a.closed {
		return
	}
	a.closed = true
	if a.manager != nil {
		a.manager.Close()
	}
	if a.notifier != nil {
		a.notifier.Close()
	}
	a.client.Close()
	a.db.Close()
}

// players resolves which addresses to track: the flag, then the config
// list, then the signer itself.
func (a *app) players(flagValue string) ([]common.Address, error) {
	if flagValue != "" {
		if !common.IsHexAddress(flagValue) {
			return nil, fmt.Errorf("invalid player address %q", flagValue)
		}
		return []common.Address{common.HexToAddress(flagValue)}, nil
	}
	if players := a.cfg.PlayerAddresses(); len(players) > 0 {
		return players, nil
	}
	if a.client.CanTransact() {
		return []common.Address{a.client.Signer()}, nil
	}
	return nil, errors.New("set -player, sync.players or chain.private_key")
}

func (a *app) run(ctx context.Context, players []common.Address) {
	for _, p := range players {
		if _, err := a.manager.Engine(ctx, p); err != nil {
			logger.LogError("Failed to start engine", err, slog.String("player", p.Hex()))
		}
	}
	logger.LogSync("Quest sync engine is running. Press CTRL-C to exit.",
		slog.Int("players", len(a.manager.Players())),
		slog.Bool("auto_login", a.cfg.Sync.AutoLogin))

	<-ctx.Done()
	logger.LogSystem("Shutting down quest sync engine...")
}

type onceOptions struct {
	status        bool
	claim         string
	claimAll      bool
	completeLogin bool
	history       int
}

func (a *app) once(ctx context.Context, player common.Address, opts onceOptions) error {
	if opts.history > 0 {
		receipts, err := a.receipts.ListByPlayer(ctx, player, opts.history)
		if err != nil {
			return err
		}
		total, err := a.receipts.TotalClaimed(ctx, player)
		if err != nil {
			return err
		}
		printHistory(os.Stdout, receipts, total)
	}

	needsEngine := opts.status || opts.claim != "" || opts.claimAll || opts.completeLogin
	if !needsEngine {
		return nil
	}

	engine, err := a.manager.Engine(ctx, player)
	if err != nil {
		return err
	}
	if _, err := engine.Resync(ctx, reconcile.ReasonManual); err != nil {
		return err
	}

	var outcomes []quests.Outcome
	switch {
	case opts.completeLogin:
		outcomes = append(outcomes, engine.CompleteDailyLogin(ctx))
	case opts.claim != "":
		q, err := quests.ParseQuestType(opts.claim)
		if err != nil {
			return err
		}
		outcomes = append(outcomes, engine.Claim(ctx, q))
	case opts.claimAll:
		outcomes = engine.ClaimAll(ctx)
		if len(outcomes) == 0 {
			fmt.Fprintln(os.Stdout, "Nothing to claim.")
		}
	}
	printOutcomes(os.Stdout, outcomes)

	if opts.status || len(outcomes) > 0 {
		printStatus(os.Stdout, engine.Status())
	}
	for _, o := range outcomes {
		if o.Status == quests.OutcomeFailed {
			return o.Err
		}
	}
	return nil
}
