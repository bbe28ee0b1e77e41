// Package api exposes the catalog over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/adeilh/go-dex/cache"
	"github.com/adeilh/go-dex/httpx"
	"github.com/adeilh/go-dex/pokeapi"
	"github.com/adeilh/go-dex/query"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Catalog is what the handlers need from *query.Engine.
type Catalog interface {
	Search(ctx context.Context, spec query.Spec) (*query.Page, error)
	Lookup(ctx context.Context, nameOrID string) (*pokeapi.Summary, error)
	Categories(ctx context.Context) ([]string, error)
}

type Handler struct {
	catalog Catalog
	cache   cache.Inspector
	logger  zerolog.Logger
}

type Option func(*Handler)

func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// New builds the handlers. inspector may be nil, in which case /health
// reports no entry count and DELETE /cache is a no-op.
func New(catalog Catalog, inspector cache.Inspector, opts ...Option) *Handler {
	h := &Handler{catalog: catalog, cache: inspector, logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register mounts every route on a.
func (h *Handler) Register(a *httpx.App) {
	httpx.RegisterRoutes(a,
		httpx.Route{Method: "GET", Path: "/health", Handler: h.health},
		httpx.Route{Method: "DELETE", Path: "/cache", Handler: h.clearCache},
	)
	a.Group("/pokemon").
		GET("", h.list).
		GET("/types", h.categories).
		GET("/:name", h.lookup)
}

type healthResponse struct {
	Status       string `json:"status"`
	CacheEntries int    `json:"cache_entries"`
}

func (h *Handler) health(c httpx.Context) error {
	resp := healthResponse{Status: "healthy"}
	if h.cache != nil {
		n, err := h.cache.Len(c.Request().Context())
		if err != nil {
			h.logger.Warn().Err(err).Msg("cache unavailable")
			resp.Status = "degraded"
			return c.JSON(httpx.StatusServiceUnavailable, resp)
		}
		resp.CacheEntries = n
	}
	return c.JSON(httpx.StatusOK, resp)
}

func (h *Handler) clearCache(c httpx.Context) error {
	if h.cache != nil {
		if err := h.cache.Clear(c.Request().Context()); err != nil {
			return h.fail(err)
		}
	}
	return c.NoContent(httpx.StatusNoContent)
}

func (h *Handler) list(c httpx.Context) error {
	spec, err := parseSpec(c)
	if err != nil {
		return h.fail(err)
	}
	page, err := h.catalog.Search(c.Request().Context(), spec)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(httpx.StatusOK, page)
}

func (h *Handler) lookup(c httpx.Context) error {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		return httpx.HTTPError(httpx.StatusBadRequest, "missing name or id")
	}
	s, err := h.catalog.Lookup(c.Request().Context(), name)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(httpx.StatusOK, s)
}

type category struct {
	Name string `json:"name"`
}

func (h *Handler) categories(c httpx.Context) error {
	names, err := h.catalog.Categories(c.Request().Context())
	if err != nil {
		return h.fail(err)
	}
	out := make([]category, 0, len(names))
	for _, n := range names {
		out = append(out, category{Name: n})
	}
	return c.JSON(httpx.StatusOK, out)
}

var errBadParam = errors.New("api: bad parameter")

// parseSpec reads search, types, match, stats, limit and offset.
func parseSpec(c httpx.Context) (query.Spec, error) {
	spec := query.Spec{
		Search: c.QueryParam("search"),
		Match:  query.MatchMode(strings.ToLower(c.QueryParam("match"))),
		Limit:  DefaultLimit,
	}
	for _, t := range strings.Split(c.QueryParam("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			spec.Types = append(spec.Types, t)
		}
	}

	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxLimit {
			return query.Spec{}, fmt.Errorf("%w: limit must be between 1 and %d", errBadParam, MaxLimit)
		}
		spec.Limit = n
	}
	if raw := c.QueryParam("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return query.Spec{}, fmt.Errorf("%w: offset must be a non-negative integer", errBadParam)
		}
		spec.Offset = n
	}

	stats, err := query.ParseRanges(c.QueryParam("stats"))
	if err != nil {
		return query.Spec{}, err
	}
	spec.Stats = stats
	return spec, nil
}

// fail turns a domain error into an HTTP error with a client-safe message.
func (h *Handler) fail(err error) error {
	code, msg := classify(err)
	if code >= httpx.StatusInternalError {
		h.logger.Error().Err(err).Int("status", code).Msg("request failed")
	}
	return httpx.HTTPError(code, msg)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errBadParam), errors.Is(err, query.ErrMalformedFilter), errors.Is(err, pokeapi.ErrInvalidCategory):
		return httpx.StatusBadRequest, err.Error()
	case errors.Is(err, pokeapi.ErrNotFound):
		return httpx.StatusNotFound, "not found"
	case errors.Is(err, pokeapi.ErrUpstreamUnavailable):
		return httpx.StatusGatewayTimeout, "upstream unavailable"
	case errors.Is(err, pokeapi.ErrUpstream):
		return httpx.StatusBadGateway, "upstream error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return httpx.StatusGatewayTimeout, "request timed out"
	default:
		return httpx.StatusInternalError, "internal error"
	}
}
