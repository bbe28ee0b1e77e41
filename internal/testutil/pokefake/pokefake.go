// Package pokefake runs an in-process stand-in for the upstream catalog so
// tests can count upstream hits and inject failures.
package pokefake

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/adeilh/go-dex/httpx"
)

const apiPrefix = "/api/v2"

// Pokemon is one upstream entry.
type Pokemon struct {
	ID     int
	Name   string
	Types  []string
	Stats  map[string]int
	Sprite string
}

type Server struct {
	ts *httpx.TestServer

	mu       sync.Mutex
	pokemon  []Pokemon
	types    map[string]bool
	failures map[string]int
	hits     map[string]int
	delay    time.Duration
}

// New starts a fake upstream that is closed when the test ends.
func New(t testing.TB, pokemon ...Pokemon) *Server {
	t.Helper()
	s := &Server{
		pokemon:  append([]Pokemon(nil), pokemon...),
		types:    make(map[string]bool),
		failures: make(map[string]int),
		hits:     make(map[string]int),
	}
	sort.Slice(s.pokemon, func(i, j int) bool { return s.pokemon[i].ID < s.pokemon[j].ID })
	for _, p := range s.pokemon {
		for _, ty := range p.Types {
			s.types[ty] = true
		}
	}

	srv := httpx.NewServer()
	srv.RegisterRoutes(func(a *httpx.App) {
		g := a.Group(apiPrefix)
		g.GET("/pokemon", s.handleList)
		g.GET("/pokemon/:key", s.handleDetail)
		g.GET("/pokemon/:key/", s.handleDetail)
		g.GET("/type", s.handleTypes)
		g.GET("/type/:name", s.handleType)
		g.GET("/type/:name/", s.handleType)
	})
	s.ts = httpx.NewTestServer(srv.Handler())
	t.Cleanup(s.ts.Close)
	return s
}

// BaseURL is the upstream root, comparable to https://pokeapi.co/api/v2.
func (s *Server) BaseURL() string { return s.ts.BaseURL() + apiPrefix }

// AddType declares a type with no members.
func (s *Server) AddType(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[name] = true
}

// FailPokemon makes detail requests for name answer with status.
func (s *Server) FailPokemon(name string, status int) { s.fail("pokemon/"+name, status) }

// FailType makes membership requests for a type answer with status.
func (s *Server) FailType(name string, status int) { s.fail("type/"+name, status) }

// FailList makes the unfiltered listing answer with status.
func (s *Server) FailList(status int) { s.fail("pokemon", status) }

// SetDelay slows every response down.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// DetailHits counts detail requests for a Pokémon by name.
func (s *Server) DetailHits(name string) int { return s.count("pokemon/" + name) }

// TypeHits counts membership requests for a type.
func (s *Server) TypeHits(name string) int { return s.count("type/" + name) }

// ListHits counts unfiltered listing requests.
func (s *Server) ListHits() int { return s.count("pokemon") }

// TotalHits counts every request served.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

func (s *Server) fail(key string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = status
}

func (s *Server) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

// record counts a hit and reports an injected failure status, if any.
func (s *Server) record(key string) int {
	s.mu.Lock()
	s.hits[key]++
	status := s.failures[key]
	delay := s.delay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return status
}

func (s *Server) refURL(p Pokemon) string {
	return s.BaseURL() + "/pokemon/" + strconv.Itoa(p.ID) + "/"
}

func (s *Server) handleList(c httpx.Context) error {
	if status := s.record("pokemon"); status != 0 {
		return c.JSON(status, map[string]string{"detail": "injected"})
	}
	limit := len(s.pokemon)
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v >= 0 && v < limit {
		limit = v
	}
	results := make([]map[string]string, 0, limit)
	for _, p := range s.pokemon[:limit] {
		results = append(results, map[string]string{"name": p.Name, "url": s.refURL(p)})
	}
	return c.JSON(http.StatusOK, map[string]any{"count": len(s.pokemon), "results": results})
}

func (s *Server) handleDetail(c httpx.Context) error {
	key := c.Param("key")
	p, ok := s.find(key)
	name := key
	if ok {
		name = p.Name
	}
	if status := s.record("pokemon/" + name); status != 0 {
		return c.JSON(status, map[string]string{"detail": "injected"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
	return c.JSON(http.StatusOK, detail(p))
}

func (s *Server) handleTypes(c httpx.Context) error {
	if status := s.record("type"); status != 0 {
		return c.JSON(status, map[string]string{"detail": "injected"})
	}
	s.mu.Lock()
	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)

	results := make([]map[string]string, 0, len(names))
	for _, name := range names {
		results = append(results, map[string]string{"name": name, "url": s.BaseURL() + "/type/" + name + "/"})
	}
	return c.JSON(http.StatusOK, map[string]any{"count": len(results), "results": results})
}

func (s *Server) handleType(c httpx.Context) error {
	name := c.Param("name")
	if status := s.record("type/" + name); status != 0 {
		return c.JSON(status, map[string]string{"detail": "injected"})
	}
	s.mu.Lock()
	known := s.types[name]
	s.mu.Unlock()
	if !known {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
	}

	members := make([]map[string]any, 0)
	for _, p := range s.pokemon {
		for slot, ty := range p.Types {
			if ty == name {
				members = append(members, map[string]any{
					"slot":    slot + 1,
					"pokemon": map[string]string{"name": p.Name, "url": s.refURL(p)},
				})
			}
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"name": name, "pokemon": members})
}

func (s *Server) find(key string) (Pokemon, bool) {
	id, err := strconv.Atoi(key)
	for _, p := range s.pokemon {
		if (err == nil && p.ID == id) || p.Name == key {
			return p, true
		}
	}
	return Pokemon{}, false
}

func detail(p Pokemon) map[string]any {
	types := make([]map[string]any, 0, len(p.Types))
	for i, ty := range p.Types {
		types = append(types, map[string]any{"slot": i + 1, "type": map[string]string{"name": ty}})
	}

	statNames := make([]string, 0, len(p.Stats))
	for name := range p.Stats {
		statNames = append(statNames, name)
	}
	sort.Strings(statNames)
	stats := make([]map[string]any, 0, len(statNames))
	for _, name := range statNames {
		stats = append(stats, map[string]any{
			"base_stat": p.Stats[name],
			"effort":    0,
			"stat":      map[string]string{"name": name},
		})
	}

	var sprite any
	if p.Sprite != "" {
		sprite = p.Sprite
	}
	return map[string]any{
		"id":      p.ID,
		"name":    p.Name,
		"types":   types,
		"sprites": map[string]any{"front_default": sprite},
		"stats":   stats,
	}
}
