// Package redis implements cache.Store on a shared Redis server so several
// replicas can share memoized upstream responses.
//
// Capacity is left to the server (maxmemory with allkeys-lru); expiry is
// delegated to PX on every SET.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/adeilh/go-dex/cache"
)

const scanBatch = 256

// Store implements cache.Store using go-redis.
type Store struct {
	opts   Options
	client *goredis.Client
}

var (
	_ cache.Store     = (*Store)(nil)
	_ cache.Inspector = (*Store)(nil)
)

// NewStore builds a Redis-backed cache store. No connection is made until
// the first command.
func NewStore(opts Options) *Store {
	cfg := opts.withDefaults()
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})
	return &Store{opts: cfg, client: client}
}

// Ping checks connectivity; used at startup to fail fast.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.opts.Prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: GET: %w", err)
	}
	return payload, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.opts.TTL
	}
	if err := s.client.Set(ctx, s.opts.Prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: SET: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, s.opts.Prefix+key).Result()
	if err != nil {
		return fmt.Errorf("redis: DEL: %w", err)
	}
	if n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// Len counts keys under the configured prefix.
func (s *Store) Len(ctx context.Context) (int, error) {
	keys, err := s.keys(ctx)
	return len(keys), err
}

// Clear deletes every key under the configured prefix. Keys are collected
// before any is deleted so the SCAN cursor never sees a shrinking keyspace.
func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		if err := s.client.Unlink(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("redis: UNLINK: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// keys lists every key under the prefix once; SCAN itself may repeat keys.
func (s *Store) keys(ctx context.Context) ([]string, error) {
	var keys []string
	seen := make(map[string]struct{})
	iter := s.client.Scan(ctx, 0, s.opts.Prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan: %w", err)
	}
	return keys, nil
}
