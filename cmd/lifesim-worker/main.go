package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lifesim/internal/config"
	"lifesim/internal/game"
	"lifesim/internal/notify"
	"lifesim/internal/store"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.LogLevel)}))
	engineCfg, err := cfg.Engine.Build(logger)
	if err != nil {
		logger.Error("engine config failed", "err", err)
		os.Exit(1)
	}
	st, err := store.Open(ctx, cfg.Store.Options(logger))
	if err != nil {
		logger.Error("store open failed", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	svc, err := game.NewService(st, engineCfg, logger)
	if err != nil {
		logger.Error("game service init failed", "err", err)
		os.Exit(1)
	}

	var notifier notify.Notifier = notify.NewLog(logger)
	if cfg.DiscordToken != "" {
		d, err := notify.NewDiscord(cfg.DiscordToken, cfg.DiscordChannel, logger)
		if err != nil {
			logger.Error("discord init failed", "err", err)
			os.Exit(1)
		}
		notifier = d
	}
	defer notifier.Close()

	if cfg.RunOnce {
		if err := runPass(ctx, svc, notifier, logger); err != nil {
			logger.Error("tick failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.TickEvery)
	defer ticker.Stop()

	logger.Info("worker started", "tick_every", cfg.TickEvery.String(), "store", cfg.Store.Kind, "volatility", cfg.Engine.Volatility)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			if err := runPass(ctx, svc, notifier, logger); err != nil {
				logger.Error("tick failed", "err", err)
			}
		}
	}
}

func runPass(ctx context.Context, svc *game.Service, notifier notify.Notifier, logger *slog.Logger) error {
	report, err := svc.RunTick(ctx)
	if err != nil {
		return err
	}
	sent, err := notifier.Notify(ctx, report.Pending)
	if err != nil {
		logger.Warn("notify incomplete", "sent", sent, "pending", len(report.Pending), "err", err)
		return nil
	}
	if sent > 0 {
		logger.Info("pending events announced", "sent", sent)
	}
	return nil
}
