package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds infrastructure configuration. It is constructed once in main
// and passed explicitly to every component that needs it; there is no global
// instance.
type Config struct {
	// Discord configuration
	DiscordToken   string `env:"DISCORD_TOKEN"`
	DiscordGuildID string `env:"DISCORD_GUILD_ID"`

	// Database configuration
	DatabaseURL string `env:"DATABASE_URL"`

	// Text-generation collaborator (empty disables it; callers fall back
	// to the short hint verbatim)
	GenTextURL string `env:"GENTEXT_URL"`

	// Announcement channel IDs. An unset channel makes the corresponding
	// announcement unavailable; the cashout flow treats that as a hard
	// collaborator failure and refunds the escrow.
	CashoutChannelID          string `env:"CASHOUT_CHANNEL_ID"`
	LevelUpChannelID          string `env:"LEVEL_UP_CHANNEL_ID"`
	LotteryChannelID          string `env:"LOTTERY_CHANNEL_ID"`
	LeaderboardChannelID      string `env:"LEADERBOARD_CHANNEL_ID"`
	GuildLeaderboardChannelID string `env:"GUILD_LEADERBOARD_CHANNEL_ID"`
	ModAlertsChannelID        string `env:"MOD_ALERTS_CHANNEL_ID"`
	PromoChannelID            string `env:"PROMO_CHANNEL_ID"`

	// Path to a JSON file overriding the default economy tunables
	EconomyFile string `env:"ECONOMY_CONFIG_FILE"`

	// Environment is "development", "production" or "test"
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.Environment != "test" {
		if cfg.DiscordToken == "" {
			return nil, fmt.Errorf("DISCORD_TOKEN is required")
		}
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return cfg, nil
}
