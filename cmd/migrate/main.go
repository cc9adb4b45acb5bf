// Command migrate creates the questsync schema and offers offline admin
// operations on it.
//
// The sync records belong to the running daemon, which rewrites a player's
// row on every boundary crossing and resync. Run -reset-player only while
// the daemon is stopped; otherwise the reset is overwritten.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/irysflip/questsync/internal/gateways/database"
	"github.com/irysflip/questsync/internal/gateways/database/repositories"
	"github.com/irysflip/questsync/questsync"
	"github.com/irysflip/questsync/questsync/logger"
)

func main() {
	path := flag.String("config", "config.toml", "path to config")
	list := flag.Bool("list", false, "list stored reset markers")
	reset := flag.String("reset-player", "", "forget the stored reset markers of a player (daemon must be stopped)")
	flag.Parse()

	slog.SetDefault(slog.New(logger.NewHandler(slog.LevelInfo)))

	cfg, err := questsync.LoadConfig(*path)
	if err != nil {
		logger.LogError("Failed to load configuration", err)
		os.Exit(-1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		logger.LogError("Failed to connect to database", err)
		os.Exit(-1)
	}
	defer db.Close()

	start := time.Now()
	err = db.InitializeSchema(ctx)
	logger.LogQuery("initialize schema", time.Since(start), err)
	if err != nil {
		os.Exit(-1)
	}

	records := repositories.NewSyncRecordRepository(db.BunDB())

	if *reset != "" {
		if !common.IsHexAddress(*reset) {
			logger.LogError("Invalid player address", fmt.Errorf("%q", *reset))
			os.Exit(-1)
		}
		if err := records.Delete(ctx, common.HexToAddress(*reset)); err != nil {
			logger.LogError("Failed to reset player", err)
			os.Exit(-1)
		}
		logger.LogSystem("Player markers reset, next start begins from the current period",
			slog.String("player", *reset))
	}

	if *list {
		all, err := records.List(ctx)
		if err != nil {
			logger.LogError("Failed to list sync records", err)
			os.Exit(-1)
		}
		for _, r := range all {
			fmt.Printf("%s daily=%s weekly=%s monthly=%s last_sync=%s\n",
				r.Player.Hex(), r.Markers.Daily, r.Markers.Weekly, r.Markers.Monthly,
				r.LastSyncAt.Format(time.RFC3339))
		}
	}

	logger.LogSystem("Migration completed successfully!", slog.String("driver", db.Driver()))
}
