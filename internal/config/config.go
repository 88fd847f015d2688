// Package config loads bot settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	st "stash-bot/internal/storagetypes"
)

type Config struct {
	DiscordToken  string `env:"DISCORD_TOKEN"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:";;"`

	StoragePath   string `env:"STORAGE_PATH" envDefault:"data/stash.sqlite"`
	BackupDir     string `env:"BACKUP_DIR" envDefault:"backups"`
	BlacklistPath string `env:"BLACKLIST_PATH" envDefault:"data/blacklist.json"`
	RoastsPath    string `env:"ROASTS_PATH" envDefault:"assets/roasts.txt"`

	Admins    []int64 `env:"ADMINS" envSeparator:","`
	Blacklist []int64 `env:"BLACKLIST" envSeparator:","`

	CooldownSeconds       int `env:"COMMAND_COOLDOWN_SECONDS" envDefault:"3"`
	BackupIntervalSeconds int `env:"BACKUP_INTERVAL_SECONDS" envDefault:"86400"`
	WorkerLimit           int `env:"WORKER_LIMIT" envDefault:"8"`

	LogDir        string `env:"LOG_DIR" envDefault:"logs"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"10"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"7"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"30"`

	MetricsAddr string `env:"METRICS_ADDR"`

	S3 S3Config `envPrefix:"BACKUP_S3_"`
}

type S3Config struct {
	Bucket    string `env:"BUCKET"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Prefix    string `env:"PREFIX"`
}

// Load reads .env when present, then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using system environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CommandPrefix == "" {
		return fmt.Errorf("COMMAND_PREFIX cannot be empty")
	}
	if c.StoragePath == "" {
		return fmt.Errorf("STORAGE_PATH cannot be empty")
	}
	if c.CooldownSeconds < 0 {
		return fmt.Errorf("COMMAND_COOLDOWN_SECONDS must not be negative, got %d", c.CooldownSeconds)
	}
	if c.BackupIntervalSeconds <= 0 {
		return fmt.Errorf("BACKUP_INTERVAL_SECONDS must be positive, got %d", c.BackupIntervalSeconds)
	}
	if c.WorkerLimit <= 0 {
		return fmt.Errorf("WORKER_LIMIT must be positive, got %d", c.WorkerLimit)
	}
	return nil
}

// RequireToken fails when the bot token is missing. Only the bot binary needs it.
func (c *Config) RequireToken() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is not set")
	}
	return nil
}

func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	return time.Duration(c.BackupIntervalSeconds) * time.Second
}

func (c *Config) AdminIDs() []st.UserID { return toUserIDs(c.Admins) }

func (c *Config) BlacklistIDs() []st.UserID { return toUserIDs(c.Blacklist) }

func toUserIDs(ids []int64) []st.UserID {
	out := make([]st.UserID, 0, len(ids))
	for _, id := range ids {
		out = append(out, st.UserID(id))
	}
	return out
}
