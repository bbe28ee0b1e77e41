// Package cache defines the storage contract shared by the in-memory and
// Redis-backed stores.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache: key not found")

// Store represents a simple TTL-based cache abstraction that can be backed
// by memory, Redis, or any other KV store. A ttl <= 0 on Set means the
// store's configured default.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Inspector is implemented by stores that can report and reset their contents.
type Inspector interface {
	Len(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}
