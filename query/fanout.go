package query

import (
	"context"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/adeilh/go-dex/pokeapi"
)

// references resolves the candidate set: the full index, or the members of
// the requested types combined per spec.Match.
func (e *Engine) references(ctx context.Context, spec Spec) ([]pokeapi.Reference, error) {
	if len(spec.Types) == 0 {
		refs, err := e.index(ctx)
		if err != nil {
			return nil, err
		}
		return slices.Clone(refs), nil
	}

	lists := make([][]pokeapi.Reference, len(spec.Types))
	g, gctx := errgroup.WithContext(ctx)
	for i, category := range spec.Types {
		g.Go(func() error {
			refs, err := e.members(gctx, category)
			if err != nil {
				return err
			}
			lists[i] = refs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if spec.Match == MatchAny {
		return union(lists), nil
	}
	return intersect(lists), nil
}

// hydrate fetches details for refs with at most maxInFlight requests
// outstanding. Absent entries are dropped; order is preserved.
func (e *Engine) hydrate(ctx context.Context, refs []pokeapi.Reference) []pokeapi.Summary {
	results := make([]*pokeapi.Summary, len(refs))

	var g errgroup.Group
	g.SetLimit(e.maxInFlight)
	for i, ref := range refs {
		g.Go(func() error {
			if s, ok := e.summary(ctx, ref); ok {
				results[i] = s
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]pokeapi.Summary, 0, len(refs))
	for _, s := range results {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// intersect keeps names present in every list, taking URLs from the first.
func intersect(lists [][]pokeapi.Reference) []pokeapi.Reference {
	if len(lists) == 0 {
		return nil
	}
	sets := make([]map[string]struct{}, len(lists)-1)
	for i, list := range lists[1:] {
		sets[i] = make(map[string]struct{}, len(list))
		for _, r := range list {
			sets[i][r.Name] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(lists[0]))
	var out []pokeapi.Reference
next:
	for _, r := range lists[0] {
		if _, dup := seen[r.Name]; dup {
			continue
		}
		seen[r.Name] = struct{}{}
		for _, set := range sets {
			if _, ok := set[r.Name]; !ok {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

func union(lists [][]pokeapi.Reference) []pokeapi.Reference {
	seen := make(map[string]struct{})
	var out []pokeapi.Reference
	for _, list := range lists {
		for _, r := range list {
			if _, dup := seen[r.Name]; dup {
				continue
			}
			seen[r.Name] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func sortByName(refs []pokeapi.Reference) {
	slices.SortStableFunc(refs, func(a, b pokeapi.Reference) int {
		return strings.Compare(a.Name, b.Name)
	})
}

func filterByName(refs []pokeapi.Reference, search string) []pokeapi.Reference {
	if search == "" {
		return refs
	}
	out := refs[:0]
	for _, r := range refs {
		if strings.Contains(strings.ToLower(r.Name), search) {
			out = append(out, r)
		}
	}
	return out
}

// filterByStats keeps summaries inside every requested range. A stat the
// Pokémon does not have never excludes it.
func filterByStats(items []pokeapi.Summary, ranges map[string]Range) []pokeapi.Summary {
	out := items[:0]
next:
	for _, s := range items {
		for name, r := range ranges {
			if v, ok := s.Stat(name); ok && !r.Contains(v) {
				continue next
			}
		}
		out = append(out, s)
	}
	return out
}

// window applies offset and limit, always returning a non-nil slice.
func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return slices.Clone(items[offset:end])
}
