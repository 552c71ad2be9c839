package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/campfire/pkg/storage"
)

// RedisStore implements storage.BlobStore on Redis. Every blob is a plain
// string key, optionally expiring after ttl.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

var _ storage.BlobStore = (*RedisStore)(nil)

// NewRedisStore connects to redisURL, which is either a redis:// URL or a
// bare host:port address. A zero ttl keeps blobs forever.
func NewRedisStore(redisURL string, ttl time.Duration, logger *slog.Logger) (*RedisStore, error) {
	opts := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}
	return newRedisStore(redis.NewClient(opts), ttl, logger), nil
}

func newRedisStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RedisStore{client: client, logger: logger, ttl: ttl}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping failed: %v", storage.ErrUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStore) WaitForConnection(ctx context.Context, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		err := r.Ping(ctx)
		if err == nil {
			r.logger.Info("Redis connection established")
			return nil
		}
		r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("redis did not become available after %d attempts", attempts)
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Blob not found", "key", key)
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	if err != nil {
		r.logger.Error("Redis GET failed", "key", key, "error", err)
		return "", fmt.Errorf("%w: redis get failed: %v", storage.ErrUnavailable, err)
	}
	r.logger.Debug("Redis GET successful", "key", key, "value_length", len(value))
	return value, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		r.logger.Error("Redis SET failed", "key", key, "error", err)
		return fmt.Errorf("%w: redis set failed: %v", storage.ErrUnavailable, err)
	}
	r.logger.Debug("Redis SET successful", "key", key)
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Error("Redis DEL failed", "key", key, "error", err)
		return fmt.Errorf("%w: redis del failed: %v", storage.ErrUnavailable, err)
	}
	r.logger.Debug("Redis DEL successful", "key", key)
	return nil
}
