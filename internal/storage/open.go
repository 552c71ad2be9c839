// Package storage holds the persistent blob store backends.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/campfire/pkg/storage"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	RedisURL   string
	SQLitePath string
	TTL        time.Duration
}

// Open creates the configured blob store. Redis is waited on before
// returning so a service does not start against a cold cache.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (storage.BlobStore, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return storage.NewMemoryStore(), nil
	case BackendRedis:
		r, err := NewRedisStore(opts.RedisURL, opts.TTL, logger)
		if err != nil {
			return nil, err
		}
		if err := r.WaitForConnection(ctx, 30, 2*time.Second); err != nil {
			_ = r.Close()
			return nil, err
		}
		return r, nil
	case BackendSQLite:
		return OpenSQLite(opts.SQLitePath, logger)
	}
	return nil, fmt.Errorf("unknown blob backend %q", opts.Backend)
}
