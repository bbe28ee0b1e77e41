package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// ErrMalformedFilter rejects a query the engine cannot answer as written.
var ErrMalformedFilter = errors.New("query: malformed filter")

// Stat bounds used when a range omits one side.
const (
	DefaultStatMin = 0
	DefaultStatMax = 255
)

// MatchMode selects how several types combine.
type MatchMode string

const (
	// MatchAll keeps Pokémon that have every requested type.
	MatchAll MatchMode = "all"
	// MatchAny keeps Pokémon that have at least one requested type.
	MatchAny MatchMode = "any"
)

// Range is an inclusive bound on a stat.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r Range) Contains(v int) bool { return v >= r.Min && v <= r.Max }

// Spec is one listing request. The zero Match means MatchAll.
type Spec struct {
	Search string
	Types  []string
	Match  MatchMode
	Stats  map[string]Range
	Limit  int
	Offset int
}

// normalize lower-cases and sorts everything that feeds the cache key and
// validates the rest; the receiver is left untouched.
func (s Spec) normalize(maxTypes int) (Spec, error) {
	out := Spec{
		Search: strings.ToLower(strings.TrimSpace(s.Search)),
		Match:  s.Match,
		Limit:  s.Limit,
		Offset: s.Offset,
	}
	if out.Match == "" {
		out.Match = MatchAll
	}
	if out.Match != MatchAll && out.Match != MatchAny {
		return Spec{}, fmt.Errorf("%w: unknown match mode %q", ErrMalformedFilter, s.Match)
	}
	if out.Limit <= 0 {
		return Spec{}, fmt.Errorf("%w: limit must be positive, got %d", ErrMalformedFilter, s.Limit)
	}
	if out.Offset < 0 {
		return Spec{}, fmt.Errorf("%w: offset must not be negative, got %d", ErrMalformedFilter, s.Offset)
	}

	for _, t := range s.Types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !slices.Contains(out.Types, t) {
			out.Types = append(out.Types, t)
		}
	}
	if maxTypes > 0 && len(out.Types) > maxTypes {
		return Spec{}, fmt.Errorf("%w: at most %d types, got %d", ErrMalformedFilter, maxTypes, len(out.Types))
	}
	slices.Sort(out.Types)

	if len(s.Stats) > 0 {
		out.Stats = make(map[string]Range, len(s.Stats))
		for name, r := range s.Stats {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				return Spec{}, fmt.Errorf("%w: empty stat name", ErrMalformedFilter)
			}
			if _, dup := out.Stats[name]; dup {
				return Spec{}, fmt.Errorf("%w: stat %q given more than once", ErrMalformedFilter, name)
			}
			if r.Min > r.Max {
				return Spec{}, fmt.Errorf("%w: stat %q min %d > max %d", ErrMalformedFilter, name, r.Min, r.Max)
			}
			out.Stats[name] = r
		}
	}
	return out, nil
}

// Key derives the cache key of a normalized spec. Free-text parts are
// query-escaped so no input can forge a separator.
func (s Spec) Key() string {
	types := make([]string, len(s.Types))
	for i, t := range s.Types {
		types[i] = url.QueryEscape(t)
	}

	names := make([]string, 0, len(s.Stats))
	for name := range s.Stats {
		names = append(names, name)
	}
	slices.Sort(names)
	stats := make([]string, len(names))
	for i, name := range names {
		r := s.Stats[name]
		stats[i] = url.QueryEscape(name) + "=" + strconv.Itoa(r.Min) + ".." + strconv.Itoa(r.Max)
	}

	var b strings.Builder
	b.WriteString("pokemon_list:search=")
	b.WriteString(url.QueryEscape(s.Search))
	b.WriteString(":types=")
	b.WriteString(strings.Join(types, ","))
	b.WriteString(":match=")
	b.WriteString(string(s.Match))
	b.WriteString(":stats=")
	b.WriteString(strings.Join(stats, ";"))
	b.WriteString(":limit=")
	b.WriteString(strconv.Itoa(s.Limit))
	b.WriteString(":offset=")
	b.WriteString(strconv.Itoa(s.Offset))
	return b.String()
}

// ParseRanges decodes a JSON object such as {"attack":{"min":50,"max":120}}.
// A missing min or max falls back to DefaultStatMin or DefaultStatMax.
func ParseRanges(raw string) (map[string]Range, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var parsed map[string]struct {
		Min *int `json:"min"`
		Max *int `json:"max"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrMalformedFilter, err)
	}
	out := make(map[string]Range, len(parsed))
	for name, b := range parsed {
		r := Range{Min: DefaultStatMin, Max: DefaultStatMax}
		if b.Min != nil {
			r.Min = *b.Min
		}
		if b.Max != nil {
			r.Max = *b.Max
		}
		if r.Min > r.Max {
			return nil, fmt.Errorf("%w: stat %q min %d > max %d", ErrMalformedFilter, name, r.Min, r.Max)
		}
		out[name] = r
	}
	return out, nil
}
