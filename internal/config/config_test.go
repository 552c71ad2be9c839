package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "memory", cfg.BlobBackend)
	assert.Equal(t, "campfire.save", cfg.SaveKey)
	assert.Equal(t, 10, cfg.MaxIncludeDepth)
	assert.Equal(t, 1000, cfg.MaxLoopIterations)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("BLOB_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("MAX_INCLUDE_DEPTH", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "redis", cfg.BlobBackend)
	assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	assert.Equal(t, 90*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 4, cfg.MaxIncludeDepth)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("MAX_LOOP_ITERATIONS", "lots")
	_, err := Load()
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"nope":    slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}
