package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    slog.Level

	RawLogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	BlobBackend string        `env:"BLOB_BACKEND" envDefault:"memory"`
	RedisURL    string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	SQLitePath  string        `env:"SQLITE_PATH" envDefault:"campfire.db"`
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	StoryPath         string `env:"STORY_PATH"`
	SaveKey           string `env:"SAVE_KEY" envDefault:"campfire.save"`
	MaxIncludeDepth   int    `env:"MAX_INCLUDE_DEPTH" envDefault:"10"`
	MaxLoopIterations int    `env:"MAX_LOOP_ITERATIONS" envDefault:"1000"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.RawLogLevel)
	return cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
