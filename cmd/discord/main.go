// cmd/discord/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"stash-bot/datastore"
	"stash-bot/internal/backup"
	"stash-bot/internal/command"
	"stash-bot/internal/commands"
	"stash-bot/internal/config"
	"stash-bot/internal/cooldown"
	"stash-bot/internal/discord"
	"stash-bot/internal/logging"
	"stash-bot/internal/metrics"
	"stash-bot/internal/permission"
	"stash-bot/internal/router"
	"stash-bot/internal/storage"
	v "stash-bot/internal/version"
	"stash-bot/pkg/jobmgr"
	"stash-bot/pkg/util"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Bot stopped with an error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireToken(); err != nil {
		return err
	}

	logFile, err := logging.Setup(logging.Options{
		Dir:        cfg.LogDir,
		Level:      cfg.LogLevel,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Console:    true,
	})
	if err != nil {
		return err
	}
	defer logFile.Close()

	log.Info().Str("version", v.String()).Msg("Starting bot")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return err
	}
	defer store.Close()

	blacklistStore, err := datastore.New(cfg.BlacklistPath)
	if err != nil {
		return err
	}
	perms, err := permission.New(cfg.AdminIDs(), cfg.BlacklistIDs(), blacklistStore)
	if err != nil {
		return err
	}

	roasts, err := commands.LoadRoasts(cfg.RoastsPath)
	if err != nil {
		log.Warn().Err(err).Msg("Roasts unavailable")
	}

	collector := metrics.NewCollector("stash")

	var mirror backup.Uploader
	if cfg.S3.Bucket != "" {
		up, err := backup.NewS3Uploader(ctx, backup.S3Config(cfg.S3))
		if err != nil {
			return err
		}
		mirror = up
	}
	scheduler := backup.NewScheduler(store, backup.Options{
		Dir:      cfg.BackupDir,
		Interval: cfg.BackupInterval(),
		Mirror:   mirror,
		Observer: collector,
	})

	reg := command.NewRegistry()
	commands.Register(reg, commands.Deps{
		Store:       store,
		Permissions: perms,
		Backup:      scheduler,
		Fetcher:     discord.NewFetcher(&http.Client{Timeout: 20 * time.Second}),
		Prefix:      cfg.CommandPrefix,
		Roasts:      roasts,
	}, command.WithCommandLogger())

	tracker := cooldown.New()
	pool := util.NewPool(cfg.WorkerLimit)
	disp := command.NewDispatcher(reg, perms, tracker, command.Options{
		Prefix:   cfg.CommandPrefix,
		Cooldown: cfg.Cooldown(),
		Pool:     pool,
		Observer: collector,
	})
	rt := router.New(disp, store, perms, router.Options{Pool: pool, Observer: collector})
	bot := discord.NewBot(cfg.DiscordToken, rt)

	jobs := jobmgr.NewManager(func(s string) { log.Debug().Str("job", s).Msg("Job status") })
	defer jobs.StopAll()

	if err := jobs.StartAsync(ctx, "backup", scheduler.Run); err != nil {
		return err
	}
	if err := jobs.StartAsync(ctx, "cooldown-pruner", func(ctx context.Context) error {
		return cooldown.RunPruner(ctx, tracker, cfg.Cooldown())
	}); err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		if err := jobs.StartAsync(ctx, "metrics", func(ctx context.Context) error {
			return metrics.RunServer(ctx, cfg.MetricsAddr, collector)
		}); err != nil {
			return err
		}
	}

	err = bot.Run(ctx)
	cancel()
	jobs.StopAll()
	pool.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("Discord bot exited cleanly")
	return nil
}
