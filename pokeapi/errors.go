package pokeapi

import "errors"

var (
	// ErrNotFound means the upstream answered 404 for a single resource.
	ErrNotFound = errors.New("pokeapi: not found")
	// ErrInvalidCategory means a requested type does not exist upstream.
	ErrInvalidCategory = errors.New("pokeapi: invalid category")
	// ErrUpstreamUnavailable covers transport failures and timeouts.
	ErrUpstreamUnavailable = errors.New("pokeapi: upstream unavailable")
	// ErrUpstream covers any other non-2xx status or an undecodable body.
	ErrUpstream = errors.New("pokeapi: upstream error")
)
