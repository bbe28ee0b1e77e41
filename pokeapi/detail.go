package pokeapi

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Lookup fetches a single Pokémon by name or numeric id. Errors propagate
// untouched so the caller can answer 404.
func (c *Client) Lookup(ctx context.Context, nameOrID string) (*Summary, error) {
	key := strings.ToLower(strings.TrimSpace(nameOrID))
	return c.summary(ctx, pokemonCollection+"/"+url.PathEscape(key))
}

// FetchSummary hydrates a reference URL. Any failure is logged and reported
// as absent so one bad entry cannot fail a whole listing.
func (c *Client) FetchSummary(ctx context.Context, refURL string) (*Summary, bool) {
	s, err := c.summary(ctx, refURL)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", refURL).Msg("dropping pokemon from result")
		return nil, false
	}
	return s, true
}

// summary collapses concurrent fetches of the same endpoint into one call.
// The shared fetch is detached from any single caller's cancellation and is
// bounded by the client timeout instead; each caller stops waiting when its
// own ctx ends.
func (c *Client) summary(ctx context.Context, endpoint string) (*Summary, error) {
	ch := c.details.DoChan(endpoint, func() (any, error) {
		var payload detailPayload
		if err := c.FetchJSON(context.WithoutCancel(ctx), endpoint, &payload); err != nil {
			return nil, err
		}
		return payload.summary(), nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("pokeapi: GET %s: %w: %w", endpoint, ErrUpstreamUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Summary), nil
	}
}
