package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for embedbot.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Channels ChannelsConfig `json:"channels"`
	Catalog  CatalogConfig  `json:"catalog"`
	Journal  JournalConfig  `json:"journal"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`          // debug | info | warn | error
	LogFile  string `json:"logFile"` // optional log file path
}

// LimitsConfig holds the per-message ceilings used when partitioning a
// response for one platform.
type LimitsConfig struct {
	MaxEmbedsPerMessage int   `json:"maxEmbedsPerMessage"`
	MaxFileSizeBytes    int64 `json:"maxFileSizeBytes"`
}

type ChannelsConfig struct {
	Discord   DiscordConfig   `json:"discord"`
	Telegram  TelegramConfig  `json:"telegram"`
	Slack     SlackConfig     `json:"slack"`
	RateLimit RateLimitConfig `json:"rateLimit"`
}

// RateLimitConfig throttles how often one user can trigger a response.
// perMinute = 0 disables throttling.
type RateLimitConfig struct {
	Burst     int     `json:"burst"`
	PerMinute float64 `json:"perMinute"`
}

type DiscordConfig struct {
	Enabled    bool         `json:"enabled"`
	Token      string       `json:"token"`
	GuildID    string       `json:"guildId"` // optional: restrict to one guild
	ShardID    int          `json:"shardId"`
	ShardCount int          `json:"shardCount"`
	Limits     LimitsConfig `json:"limits"`
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled"`
	Token     string         `json:"token"`
	AllowFrom FlexStringList `json:"allowFrom"`
	Limits    LimitsConfig   `json:"limits"`
}

// SlackConfig connects over Socket Mode, which needs both the bot token
// (xoxb-) and an app-level token (xapp-).
type SlackConfig struct {
	Enabled  bool         `json:"enabled"`
	BotToken string       `json:"botToken"`
	AppToken string       `json:"appToken"`
	Limits   LimitsConfig `json:"limits"`
}

// FlexStringList accepts IDs written either as JSON strings or numbers,
// so ["123", 456] and ["123", "456"] decode the same.
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return err
	}
	out := make(FlexStringList, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case json.Number:
			if n, err := v.Float64(); err == nil && n == math.Trunc(n) {
				out = append(out, strconv.FormatInt(int64(n), 10))
			} else {
				out = append(out, v.String())
			}
		default:
			return fmt.Errorf("list item %v: want string or number", item)
		}
	}
	*f = out
	return nil
}

type CatalogConfig struct {
	Dir string `json:"dir"` // directory of response YAML files
}

type JournalConfig struct {
	Enabled       bool   `json:"enabled"`
	DBPath        string `json:"dbPath"`
	RetentionDays int    `json:"retentionDays"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Listen   string `json:"listen"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.embedbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".embedbot"
	}
	return filepath.Join(home, ".embedbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads, env-expands, and validates a config file on top of Defaults.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Catalog.Dir = ExpandPath(cfg.Catalog.Dir)
	cfg.Journal.DBPath = ExpandPath(cfg.Journal.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envRef matches ${NAME} and ${NAME:-fallback}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars substitutes environment references in input. A variable
// that is unset or empty takes its fallback; with no fallback the
// reference is kept verbatim so the gap stays visible.
func ExpandEnvVars(input string) string {
	var b strings.Builder
	last := 0
	for _, m := range envRef.FindAllStringSubmatchIndex(input, -1) {
		b.WriteString(input[last:m[0]])
		last = m[1]

		name := input[m[2]:m[3]]
		if val := os.Getenv(name); val != "" {
			b.WriteString(val)
			continue
		}
		if m[4] >= 0 && m[5] > m[4] {
			b.WriteString(input[m[4]:m[5]])
			continue
		}
		b.WriteString(input[m[0]:m[1]])
	}
	b.WriteString(input[last:])
	return b.String()
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values and reports every
// problem at once.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	d := cfg.Channels.Discord
	if d.Enabled && d.Token == "" {
		errs = append(errs, "channels.discord.token is required when discord is enabled")
	}
	if d.ShardCount < 1 {
		errs = append(errs, "channels.discord.shardCount must be >= 1")
	} else if d.ShardID < 0 || d.ShardID >= d.ShardCount {
		errs = append(errs, "channels.discord.shardId must be in [0, shardCount)")
	}
	errs = append(errs, validateLimits("channels.discord.limits", d.Limits)...)

	tg := cfg.Channels.Telegram
	if tg.Enabled && tg.Token == "" {
		errs = append(errs, "channels.telegram.token is required when telegram is enabled")
	}
	errs = append(errs, validateLimits("channels.telegram.limits", tg.Limits)...)

	sl := cfg.Channels.Slack
	if sl.Enabled && (sl.BotToken == "" || sl.AppToken == "") {
		errs = append(errs, "channels.slack.botToken and appToken are required when slack is enabled")
	}
	errs = append(errs, validateLimits("channels.slack.limits", sl.Limits)...)

	if rl := cfg.Channels.RateLimit; rl.Burst < 0 || rl.PerMinute < 0 {
		errs = append(errs, "channels.rateLimit.burst and perMinute must be >= 0")
	}

	if cfg.Journal.Enabled && cfg.Journal.DBPath == "" {
		errs = append(errs, "journal.dbPath is required when the journal is enabled")
	}
	if cfg.Journal.RetentionDays < 0 {
		errs = append(errs, "journal.retentionDays must be >= 0")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateLimits(prefix string, l LimitsConfig) []string {
	var errs []string
	if l.MaxEmbedsPerMessage < 1 || l.MaxEmbedsPerMessage > 10 {
		errs = append(errs, prefix+".maxEmbedsPerMessage must be between 1 and 10")
	}
	if l.MaxFileSizeBytes < 1 {
		errs = append(errs, prefix+".maxFileSizeBytes must be >= 1")
	}
	return errs
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
