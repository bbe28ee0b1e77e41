// Package query answers filtered, paginated Pokémon listings by combining
// upstream type memberships, the full index and per-entry details, memoizing
// every successful step in a cache.Store.
//
// Ordering is always by name so pages are stable regardless of upstream or
// goroutine scheduling. Stat filters force hydration of every candidate
// before paging; without them only the requested page is hydrated, and the
// count reflects candidates rather than successfully hydrated entries.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/adeilh/go-dex/cache"
	"github.com/adeilh/go-dex/pokeapi"
)

const (
	DefaultTTL           = time.Hour
	DefaultMaxInFlight   = 16
	DefaultListAllLimit  = 2000
	DefaultMaxCategories = 8
)

// Upstream is the subset of *pokeapi.Client the engine needs.
type Upstream interface {
	ListAll(ctx context.Context, limit int) ([]pokeapi.Reference, error)
	MembersOf(ctx context.Context, category string) ([]pokeapi.Reference, error)
	FetchSummary(ctx context.Context, refURL string) (*pokeapi.Summary, bool)
	Lookup(ctx context.Context, nameOrID string) (*pokeapi.Summary, error)
	CategoryNames(ctx context.Context) ([]string, error)
}

// Page is one window of a filtered listing. Total counts the whole filtered
// set, not just Items.
type Page struct {
	Items       []pokeapi.Summary `json:"results"`
	Total       int               `json:"count"`
	HasNext     bool              `json:"next"`
	HasPrevious bool              `json:"previous"`
}

type Engine struct {
	upstream Upstream
	store    cache.Store

	ttl           time.Duration
	maxInFlight   int
	listAllLimit  int
	maxCategories int
	logger        zerolog.Logger
}

type Option func(*Engine)

func WithTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.ttl = d
		}
	}
}

// WithMaxInFlight caps concurrent detail fetches within one query.
func WithMaxInFlight(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxInFlight = n
		}
	}
}

// WithListAllLimit bounds the unfiltered index fetched when no type is given.
func WithListAllLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.listAllLimit = n
		}
	}
}

// WithMaxCategories bounds how many types a single query may combine.
func WithMaxCategories(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxCategories = n
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New wires an engine to its upstream and a store shared by every query.
func New(upstream Upstream, store cache.Store, opts ...Option) *Engine {
	e := &Engine{
		upstream:      upstream,
		store:         store,
		ttl:           DefaultTTL,
		maxInFlight:   DefaultMaxInFlight,
		listAllLimit:  DefaultListAllLimit,
		maxCategories: DefaultMaxCategories,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Search answers a listing. Cached pages are returned verbatim until they
// expire. Type failures fail the query; detail failures only drop entries.
func (e *Engine) Search(ctx context.Context, spec Spec) (*Page, error) {
	spec, err := spec.normalize(e.maxCategories)
	if err != nil {
		return nil, err
	}

	key := spec.Key()
	var cached Page
	if e.load(ctx, key, &cached) {
		return &cached, nil
	}

	refs, err := e.references(ctx, spec)
	if err != nil {
		return nil, err
	}
	sortByName(refs)
	refs = filterByName(refs, spec.Search)

	page := &Page{}
	if len(spec.Stats) > 0 {
		matched := filterByStats(e.hydrate(ctx, refs), spec.Stats)
		page.Total = len(matched)
		page.Items = window(matched, spec.Offset, spec.Limit)
	} else {
		page.Total = len(refs)
		page.Items = e.hydrate(ctx, window(refs, spec.Offset, spec.Limit))
	}
	page.HasNext = spec.Offset < page.Total-spec.Limit
	page.HasPrevious = spec.Offset > 0

	// Entries dropped because this caller went away would otherwise be
	// cached for every later caller.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.save(ctx, key, page)
	return page, nil
}

// Lookup returns one Pokémon by name or id; pokeapi.ErrNotFound propagates.
func (e *Engine) Lookup(ctx context.Context, nameOrID string) (*pokeapi.Summary, error) {
	key := "pokemon:" + strings.ToLower(strings.TrimSpace(nameOrID))

	var cached pokeapi.Summary
	if e.load(ctx, key, &cached) {
		return &cached, nil
	}
	s, err := e.upstream.Lookup(ctx, nameOrID)
	if err != nil {
		return nil, err
	}
	e.save(ctx, key, s)
	return s, nil
}

// Categories lists every type name known upstream.
func (e *Engine) Categories(ctx context.Context) ([]string, error) {
	const key = "pokemon_types"

	var cached []string
	if e.load(ctx, key, &cached) {
		return cached, nil
	}
	names, err := e.upstream.CategoryNames(ctx)
	if err != nil {
		return nil, err
	}
	e.save(ctx, key, names)
	return names, nil
}

func (e *Engine) index(ctx context.Context) ([]pokeapi.Reference, error) {
	key := "pokemon_index:limit=" + strconv.Itoa(e.listAllLimit)

	var cached []pokeapi.Reference
	if e.load(ctx, key, &cached) {
		return cached, nil
	}
	refs, err := e.upstream.ListAll(ctx, e.listAllLimit)
	if err != nil {
		return nil, err
	}
	e.save(ctx, key, refs)
	return refs, nil
}

func (e *Engine) members(ctx context.Context, category string) ([]pokeapi.Reference, error) {
	key := "pokemon_type:" + category

	var cached []pokeapi.Reference
	if e.load(ctx, key, &cached) {
		return cached, nil
	}
	refs, err := e.upstream.MembersOf(ctx, category)
	if err != nil {
		e.logger.Warn().Err(err).Str("type", category).Msg("type lookup failed")
		return nil, err
	}
	e.save(ctx, key, refs)
	return refs, nil
}

func (e *Engine) summary(ctx context.Context, ref pokeapi.Reference) (*pokeapi.Summary, bool) {
	key := "pokemon:" + ref.Name

	var cached pokeapi.Summary
	if e.load(ctx, key, &cached) {
		return &cached, true
	}
	s, ok := e.upstream.FetchSummary(ctx, ref.URL)
	if !ok {
		return nil, false
	}
	e.save(ctx, key, s)
	return s, true
}

// load reports a hit only when the entry exists and decodes. Store errors
// degrade to a miss.
func (e *Engine) load(ctx context.Context, key string, out any) bool {
	raw, err := e.store.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		e.logger.Debug().Str("key", key).Msg("cache miss")
		return false
	case err != nil:
		e.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return false
	}
	e.logger.Debug().Str("key", key).Msg("cache hit")
	return true
}

func (e *Engine) save(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		e.logger.Error().Err(err).Str("key", key).Msg("encode cache entry")
		return
	}
	if err := e.store.Set(ctx, key, raw, e.ttl); err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
