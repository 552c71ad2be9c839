package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("blob not found")
	// ErrUnavailable marks a backend that cannot be reached. Save and load
	// directives degrade to no-ops when they see it.
	ErrUnavailable = errors.New("blob store unavailable")
)

// BlobStore is the key/value medium that save data is written to. Values are
// opaque strings; the engine stores JSON.
type BlobStore interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Prefixed namespaces every key of an underlying store. The API uses it to
// give each session its own save slots.
type Prefixed struct {
	BlobStore
	prefix string
}

// WithPrefix wraps s so every key is prefix+key.
func WithPrefix(s BlobStore, prefix string) *Prefixed {
	return &Prefixed{BlobStore: s, prefix: prefix}
}

func (p *Prefixed) Get(ctx context.Context, key string) (string, error) {
	return p.BlobStore.Get(ctx, p.prefix+key)
}

func (p *Prefixed) Set(ctx context.Context, key, value string) error {
	return p.BlobStore.Set(ctx, p.prefix+key, value)
}

func (p *Prefixed) Remove(ctx context.Context, key string) error {
	return p.BlobStore.Remove(ctx, p.prefix+key)
}

// Close is a no-op; the wrapped store is owned by whoever created it.
func (p *Prefixed) Close() error {
	return nil
}
