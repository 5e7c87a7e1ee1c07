package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"refinery/internal/catalog"
	"refinery/internal/config"
	"refinery/internal/db"
	"refinery/internal/game"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Error("catalog load failed", "err", err)
		os.Exit(1)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.DefaultPoolOptions("refinery-worker"))
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := game.NewService(pool, cat, logger)

	if cfg.RunOnce {
		n, err := svc.PurgeExpiredEvents(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("purge failed", "err", err)
			os.Exit(1)
		}
		snap, err := svc.RefreshBoosts(ctx)
		if err != nil {
			logger.Error("refresh failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed", "purged", n, "sources", snap.Len())
		return
	}

	sched := game.NewEventScheduler(ctx, svc, logger)
	if err := sched.RegisterAll(cat.Events()); err != nil {
		logger.Error("register events failed", "err", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	ticker := time.NewTicker(cfg.TickEvery)
	defer ticker.Stop()

	logger.Info("worker started", "tick_every", cfg.TickEvery.String(), "events", len(cat.Events()))
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			snap, err := svc.RefreshBoosts(ctx)
			if err != nil {
				logger.Error("boost refresh failed", "err", err)
				continue
			}
			logger.Debug("boost refresh complete", "version", snap.Version, "sources", snap.Len())
		}
	}
}
