package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"embedbot/internal/config"
	"embedbot/internal/sender"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "embedbot",
		Short: "embedbot: send catalog responses to Discord and Telegram",
		Long: `embedbot answers chat messages with text, embeds, and files, splitting each
response into as many messages as the platform's limits require.`,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.embedbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(planCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the config file and rebuilds the package logger from it.
// A missing file falls back to defaults when allowDefaults is set.
func loadConfig(allowDefaults bool) (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if !allowDefaults {
			return nil, fmt.Errorf("load config: %w", err)
		}
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}
	l, err := newLogger(cfg.General)
	if err != nil {
		return nil, err
	}
	logger = l
	return cfg, nil
}

// newLogger builds a text logger at the configured level. With a log file
// set, records go to both stderr and the file.
func newLogger(g config.GeneralConfig) (*slog.Logger, error) {
	var level slog.Level
	switch g.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if g.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(g.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(g.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), nil
}

func limitsFor(l config.LimitsConfig) sender.Limits {
	return sender.Limits{
		MaxEmbedsPerMessage: l.MaxEmbedsPerMessage,
		MaxFileSize:         l.MaxFileSizeBytes,
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config and create the catalog directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			catalogDir := config.ExpandPath(cfg.Catalog.Dir)
			if err := os.MkdirAll(catalogDir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "catalog", catalogDir)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and catalog status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false, "err", err)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			d := cfg.Channels.Discord
			logger.Info("discord",
				"enabled", d.Enabled,
				"shard", fmt.Sprintf("%d/%d", d.ShardID, d.ShardCount),
				"max_embeds", d.Limits.MaxEmbedsPerMessage,
				"max_file_size", d.Limits.MaxFileSizeBytes,
			)
			tg := cfg.Channels.Telegram
			logger.Info("telegram",
				"enabled", tg.Enabled,
				"allow_from", len(tg.AllowFrom),
				"max_file_size", tg.Limits.MaxFileSizeBytes,
			)
			sl := cfg.Channels.Slack
			logger.Info("slack",
				"enabled", sl.Enabled,
				"max_file_size", sl.Limits.MaxFileSizeBytes,
			)

			cat, err := openCatalog(cfg)
			if err != nil {
				logger.Info("catalog", "dir", cfg.Catalog.Dir, "loaded", false, "err", err)
			} else {
				logger.Info("catalog", "dir", cfg.Catalog.Dir, "entries", len(cat.List()))
			}
			logger.Info("journal", "enabled", cfg.Journal.Enabled, "db", cfg.Journal.DBPath)
			logger.Info("metrics", "enabled", cfg.Metrics.Enabled, "listen", cfg.Metrics.Listen)
			return nil
		},
	}
}
