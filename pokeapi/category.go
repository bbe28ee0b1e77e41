package pokeapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/adeilh/go-dex/httpx"
)

// MembersOf lists every Pokémon of one type in upstream order. Unlike detail
// hydration this fails loudly: ErrInvalidCategory when the type does not
// exist, ErrUpstreamUnavailable for anything else.
func (c *Client) MembersOf(ctx context.Context, category string) ([]Reference, error) {
	name := strings.ToLower(strings.TrimSpace(category))

	var payload typePayload
	err := c.FetchJSON(ctx, typeCollection+"/"+url.PathEscape(name), &payload)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("pokeapi: type %q: %w", name, ErrInvalidCategory)
	case err != nil:
		return nil, fmt.Errorf("pokeapi: type %q: %w: %w", name, ErrUpstreamUnavailable, err)
	}

	refs := make([]Reference, 0, len(payload.Pokemon))
	for _, p := range payload.Pokemon {
		refs = append(refs, Reference{Name: strings.ToLower(p.Pokemon.Name), URL: p.Pokemon.URL})
	}
	return refs, nil
}

// ListAll returns up to limit references from the unfiltered collection.
func (c *Client) ListAll(ctx context.Context, limit int) ([]Reference, error) {
	var payload listPayload
	q := map[string]string{"limit": strconv.Itoa(limit)}
	if err := c.FetchJSON(ctx, pokemonCollection, &payload, httpx.WithQuery(q)); err != nil {
		return nil, err
	}
	refs := make([]Reference, 0, len(payload.Results))
	for _, r := range payload.Results {
		refs = append(refs, Reference{Name: strings.ToLower(r.Name), URL: r.URL})
	}
	return refs, nil
}

// CategoryNames lists every type known upstream.
func (c *Client) CategoryNames(ctx context.Context) ([]string, error) {
	var payload listPayload
	if err := c.FetchJSON(ctx, typeCollection, &payload); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(payload.Results))
	for _, r := range payload.Results {
		names = append(names, r.Name)
	}
	return names, nil
}
