// Package pokeapi talks to the upstream Pokémon catalog. Every response is
// classified into ErrNotFound, ErrUpstreamUnavailable or ErrUpstream, and
// detail payloads are reshaped into Summary here and nowhere else.
package pokeapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/adeilh/go-dex/httpx"
)

const (
	DefaultBaseURL = "https://pokeapi.co/api/v2"
	DefaultTimeout = 30 * time.Second

	pokemonCollection = "pokemon"
	typeCollection    = "type"
)

// Client fetches and decodes upstream resources. It never retries.
type Client struct {
	http    *httpx.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
	details singleflight.Group
}

type options struct {
	timeout time.Duration
	rps     float64
	logger  zerolog.Logger
}

type Option func(*options)

// WithTimeout bounds every upstream call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests per second; 0 disables the limiter.
func WithRateLimit(rps float64) Option {
	return func(o *options) {
		if rps >= 0 {
			o.rps = rps
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New builds a client for baseURL; an empty baseURL selects DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	cfg := options{timeout: DefaultTimeout, logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		http:   httpx.NewClient(httpx.WithBaseURL(baseURL), httpx.WithClientTimeout(cfg.timeout)),
		logger: cfg.logger,
	}
	if cfg.rps > 0 {
		burst := int(cfg.rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.rps), burst)
	}
	return c
}

// FetchJSON GETs endpoint (relative to the base URL, or absolute) and decodes
// the body into out.
func (c *Client) FetchJSON(ctx context.Context, endpoint string, out any, opts ...httpx.RequestOption) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("pokeapi: GET %s: %w: %w", endpoint, ErrUpstreamUnavailable, err)
		}
	}

	resp, err := c.http.Get(ctx, endpoint, out, opts...)
	if err == nil {
		return nil
	}

	var se *httpx.StatusError
	switch {
	case errors.As(err, &se) && se.Code == http.StatusNotFound:
		return fmt.Errorf("pokeapi: GET %s: %w", endpoint, ErrNotFound)
	case errors.As(err, &se):
		return fmt.Errorf("pokeapi: GET %s: %w: status %d", endpoint, ErrUpstream, se.Code)
	case resp != nil && resp.RawResponse != nil:
		// a response arrived but its body did not decode
		return fmt.Errorf("pokeapi: GET %s: %w: %w", endpoint, ErrUpstream, err)
	default:
		return fmt.Errorf("pokeapi: GET %s: %w: %w", endpoint, ErrUpstreamUnavailable, err)
	}
}
