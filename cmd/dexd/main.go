// Command dexd serves the Pokémon catalog API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/adeilh/go-dex/api"
	"github.com/adeilh/go-dex/cache"
	"github.com/adeilh/go-dex/cache/memory"
	"github.com/adeilh/go-dex/cache/redis"
	"github.com/adeilh/go-dex/config"
	"github.com/adeilh/go-dex/httpx"
	"github.com/adeilh/go-dex/pokeapi"
	"github.com/adeilh/go-dex/query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := newLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("exit")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	store, closeStore, err := newStore(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer closeStore()

	client := pokeapi.New(cfg.UpstreamURL,
		pokeapi.WithTimeout(cfg.UpstreamTimeout),
		pokeapi.WithRateLimit(cfg.UpstreamRPS),
		pokeapi.WithLogger(logger.With().Str("component", "pokeapi").Logger()),
	)
	engine := query.New(client, store,
		query.WithTTL(cfg.Cache.TTL),
		query.WithMaxInFlight(cfg.MaxInFlight),
		query.WithListAllLimit(cfg.ListAllLimit),
		query.WithMaxCategories(cfg.MaxCategories),
		query.WithLogger(logger.With().Str("component", "query").Logger()),
	)

	srv := httpx.NewServer(
		httpx.WithAddress(cfg.Addr),
		httpx.WithLogger(logger),
		httpx.WithCORS(cfg.AllowedOrigins...),
	)
	srv.RegisterRoutes(api.New(engine, store, api.WithLogger(logger)).Register)

	logger.Info().
		Str("addr", cfg.Addr).
		Str("upstream", cfg.UpstreamURL).
		Str("cache", cfg.Cache.Backend).
		Msg("listening")
	err = srv.Start(ctx, httpx.WithShutdownTimeout(10*time.Second))
	if errors.Is(err, context.Canceled) {
		logger.Info().Msg("shutdown complete")
		return nil
	}
	return err
}

func newLogger(cfg config.Config, w io.Writer) zerolog.Logger {
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

type cacheStore interface {
	cache.Store
	cache.Inspector
}

func newStore(ctx context.Context, cfg config.Cache) (cacheStore, func(), error) {
	switch cfg.Backend {
	case config.BackendRedis:
		s := redis.NewStore(redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			TTL:      cfg.TTL,
		})
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		s := memory.NewStore(memory.Options{MaxEntries: cfg.MaxEntries, TTL: cfg.TTL})
		return s, func() {}, nil
	}
}
