// Package config loads process settings from DEX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Addr string `env:"DEX_ADDR" envDefault:":8000"`

	UpstreamURL     string        `env:"DEX_UPSTREAM_URL"     envDefault:"https://pokeapi.co/api/v2"`
	UpstreamTimeout time.Duration `env:"DEX_UPSTREAM_TIMEOUT" envDefault:"30s"`
	UpstreamRPS     float64       `env:"DEX_UPSTREAM_RPS"     envDefault:"0"`

	MaxInFlight   int `env:"DEX_MAX_IN_FLIGHT"  envDefault:"16"`
	ListAllLimit  int `env:"DEX_LIST_ALL_LIMIT" envDefault:"2000"`
	MaxCategories int `env:"DEX_MAX_CATEGORIES" envDefault:"8"`

	Cache Cache

	AllowedOrigins []string `env:"DEX_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	LogLevel  string `env:"DEX_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"DEX_LOG_FORMAT" envDefault:"json"`
}

type Cache struct {
	Backend    string        `env:"DEX_CACHE_BACKEND"     envDefault:"memory"`
	TTL        time.Duration `env:"DEX_CACHE_TTL"         envDefault:"1h"`
	MaxEntries int           `env:"DEX_CACHE_MAX_ENTRIES" envDefault:"1000"`

	RedisAddr     string `env:"DEX_REDIS_ADDR"     envDefault:"127.0.0.1:6379"`
	RedisPassword string `env:"DEX_REDIS_PASSWORD"`
	RedisDB       int    `env:"DEX_REDIS_DB"       envDefault:"0"`
	RedisPrefix   string `env:"DEX_REDIS_PREFIX"   envDefault:"dex:"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Addr != "", "DEX_ADDR is empty")
	check(c.UpstreamURL != "", "DEX_UPSTREAM_URL is empty")
	check(c.UpstreamTimeout > 0, "DEX_UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout)
	check(c.UpstreamRPS >= 0, "DEX_UPSTREAM_RPS must not be negative, got %g", c.UpstreamRPS)
	check(c.MaxInFlight > 0, "DEX_MAX_IN_FLIGHT must be positive, got %d", c.MaxInFlight)
	check(c.ListAllLimit > 0, "DEX_LIST_ALL_LIMIT must be positive, got %d", c.ListAllLimit)
	check(c.MaxCategories > 0, "DEX_MAX_CATEGORIES must be positive, got %d", c.MaxCategories)
	check(c.Cache.TTL > 0, "DEX_CACHE_TTL must be positive, got %s", c.Cache.TTL)

	switch c.Cache.Backend {
	case BackendMemory:
		check(c.Cache.MaxEntries > 0, "DEX_CACHE_MAX_ENTRIES must be positive, got %d", c.Cache.MaxEntries)
	case BackendRedis:
		check(c.Cache.RedisAddr != "", "DEX_REDIS_ADDR is empty")
		check(c.Cache.RedisDB >= 0, "DEX_REDIS_DB must not be negative, got %d", c.Cache.RedisDB)
	default:
		check(false, "unknown DEX_CACHE_BACKEND %q", c.Cache.Backend)
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		check(false, "DEX_LOG_LEVEL: %v", err)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		check(false, "unknown DEX_LOG_FORMAT %q", c.LogFormat)
	}
	return errors.Join(errs...)
}
