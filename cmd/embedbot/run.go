package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"embedbot/internal/bus"
	"embedbot/internal/catalog"
	"embedbot/internal/channel"
	"embedbot/internal/config"
	"embedbot/internal/journal"
	"embedbot/internal/metrics"
	"embedbot/internal/sender"

	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the enabled gateways (Discord, Telegram, Slack)",
		Long:  "Connects every enabled chat gateway and answers matching messages from the catalog. Press Ctrl+C to stop.",
		RunE:  runGateways,
	}
}

func openCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	return catalog.Open(config.ExpandPath(cfg.Catalog.Dir), logger)
}

// openJournal opens the delivery journal and prunes rows past retention.
// It returns nil when the journal is disabled.
func openJournal(ctx context.Context, cfg *config.Config) (*journal.Store, error) {
	if !cfg.Journal.Enabled {
		return nil, nil
	}
	store, err := journal.Open(cfg.Journal.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	if days := cfg.Journal.RetentionDays; days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days)
		if n, err := store.Prune(ctx, cutoff); err != nil {
			logger.Warn("journal prune failed", "err", err)
		} else if n > 0 {
			logger.Info("journal pruned", "rows", n, "older_than", cutoff.Format(time.RFC3339))
		}
	}
	return store, nil
}

func runGateways(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	if !cfg.Channels.Discord.Enabled && !cfg.Channels.Telegram.Enabled && !cfg.Channels.Slack.Enabled {
		return errors.New("no gateway enabled: set channels.discord, channels.telegram or channels.slack enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := bus.NewEventBus(logger)

	store, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		store.Subscribe(events)
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metrics.Collector.Subscribe(events)
		mux := http.NewServeMux()
		mux.HandleFunc(cfg.Metrics.Endpoint, metrics.Collector.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", "addr", cfg.Metrics.Listen, "endpoint", cfg.Metrics.Endpoint)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "err", err)
			}
		}()
	}

	cat, err := openCatalog(cfg)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	logger.Info("catalog loaded", "dir", cfg.Catalog.Dir, "entries", len(cat.List()))

	rl := cfg.Channels.RateLimit
	var wg sync.WaitGroup

	if d := cfg.Channels.Discord; d.Enabled {
		discord := channel.NewDiscord(channel.DiscordConfig{
			Token:      d.Token,
			GuildID:    d.GuildID,
			ShardID:    d.ShardID,
			ShardCount: d.ShardCount,
			Source:     cat,
			Sender: sender.New(sender.Config{
				Limits: limitsFor(d.Limits),
				Events: events,
				Logger: logger,
			}),
			Events:  events,
			Limiter: channel.NewRateLimiter(rl.Burst, rl.PerMinute),
			Logger:  logger,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := discord.Start(ctx); err != nil {
				logger.Error("discord gateway error", "err", err)
			}
		}()
		logger.Info("discord gateway enabled", "shard", d.ShardID, "shards", d.ShardCount)
	}

	if tg := cfg.Channels.Telegram; tg.Enabled {
		telegram := channel.NewTelegram(channel.TelegramConfig{
			Token:     tg.Token,
			AllowFrom: tg.AllowFrom,
			Source:    cat,
			Sender: sender.New(sender.Config{
				Limits: limitsFor(tg.Limits),
				Events: events,
				Logger: logger,
			}),
			Events:  events,
			Limiter: channel.NewRateLimiter(rl.Burst, rl.PerMinute),
			Logger:  logger,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := telegram.Start(ctx); err != nil {
				logger.Error("telegram gateway error", "err", err)
			}
		}()
		logger.Info("telegram gateway enabled")
	}

	if sl := cfg.Channels.Slack; sl.Enabled {
		slackGW := channel.NewSlack(channel.SlackConfig{
			BotToken: sl.BotToken,
			AppToken: sl.AppToken,
			Source:   cat,
			Sender: sender.New(sender.Config{
				Limits: limitsFor(sl.Limits),
				Events: events,
				Logger: logger,
			}),
			Events:  events,
			Limiter: channel.NewRateLimiter(rl.Burst, rl.PerMinute),
			Logger:  logger,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := slackGW.Start(ctx); err != nil {
				logger.Error("slack gateway error", "err", err)
			}
		}()
		logger.Info("slack gateway enabled")
	}

	logger.Info("embedbot started. Press Ctrl+C to stop.", "version", version)

	<-ctx.Done()
	logger.Info("shutting down...")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
		if metricsSrv != nil {
			metricsSrv.Shutdown(shutdownCtx)
		}
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}
