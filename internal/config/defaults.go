package config

// Defaults returns the configuration used when no file overrides it.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Enabled:    false,
				ShardID:    0,
				ShardCount: 1,
				Limits: LimitsConfig{
					MaxEmbedsPerMessage: 4,
					MaxFileSizeBytes:    8 * 1024 * 1024,
				},
			},
			Telegram: TelegramConfig{
				Enabled: false,
				Limits: LimitsConfig{
					MaxEmbedsPerMessage: 10,
					MaxFileSizeBytes:    50 * 1024 * 1024,
				},
			},
			Slack: SlackConfig{
				Enabled: false,
				Limits: LimitsConfig{
					MaxEmbedsPerMessage: 10,
					MaxFileSizeBytes:    1024 * 1024 * 1024,
				},
			},
			RateLimit: RateLimitConfig{
				Burst:     5,
				PerMinute: 20,
			},
		},
		Catalog: CatalogConfig{
			Dir: "~/.embedbot/catalog",
		},
		Journal: JournalConfig{
			Enabled:       true,
			DBPath:        "~/.embedbot/journal.db",
			RetentionDays: 30,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Listen:   "127.0.0.1:9464",
			Endpoint: "/metrics",
		},
	}
}
