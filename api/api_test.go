package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adeilh/go-dex/api"
	"github.com/adeilh/go-dex/cache/memory"
	"github.com/adeilh/go-dex/httpx"
	"github.com/adeilh/go-dex/internal/testutil/pokefake"
	"github.com/adeilh/go-dex/pokeapi"
	"github.com/adeilh/go-dex/query"
)

var roster = []pokefake.Pokemon{
	{ID: 6, Name: "charizard", Types: []string{"fire", "flying"}, Stats: map[string]int{"attack": 84, "speed": 100}, Sprite: "https://img.example/6.png"},
	{ID: 4, Name: "charmander", Types: []string{"fire"}, Stats: map[string]int{"attack": 52, "speed": 65}},
	{ID: 7, Name: "squirtle", Types: []string{"water"}, Stats: map[string]int{"attack": 48, "speed": 43}},
}

type harness struct {
	up    *pokefake.Server
	store *memory.Store
	srv   *httpx.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	up := pokefake.New(t, roster...)
	store := memory.NewStore(memory.Options{})
	engine := query.New(pokeapi.New(up.BaseURL(), pokeapi.WithTimeout(2*time.Second)), store)

	srv := httpx.NewServer()
	srv.RegisterRoutes(api.New(engine, store).Register)
	return &harness{up: up, store: store, srv: srv}
}

func (h *harness) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

type listBody struct {
	Results []struct {
		ID      int            `json:"id"`
		Name    string         `json:"name"`
		Types   []string       `json:"types"`
		Stats   map[string]int `json:"stats"`
		Sprites struct {
			FrontDefault *string `json:"front_default"`
		} `json:"sprites"`
	} `json:"results"`
	Count    int  `json:"count"`
	Next     bool `json:"next"`
	Previous bool `json:"previous"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, rec)["error"]
}

func TestListSearch(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/pokemon?search=char&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[listBody](t, rec)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "charizard", body.Results[0].Name)
	assert.Equal(t, []string{"fire", "flying"}, body.Results[0].Types)
	require.NotNil(t, body.Results[0].Sprites.FrontDefault)
	assert.Equal(t, 2, body.Count)
	assert.True(t, body.Next)
	assert.False(t, body.Previous)
}

func TestListTypesAndStats(t *testing.T) {
	h := newHarness(t)

	stats := url.QueryEscape(`{"speed":{"min":60}}`)
	rec := h.do(t, http.MethodGet, "/pokemon?types=water,fire&match=any&stats="+stats)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[listBody](t, rec)
	names := make([]string, 0, len(body.Results))
	for _, r := range body.Results {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"charizard", "charmander"}, names)
	assert.Equal(t, 2, body.Count)
}

func TestListEmptyPageIsArray(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/pokemon?offset=50")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestListRejectsBadParameters(t *testing.T) {
	h := newHarness(t)

	for _, target := range []string{
		"/pokemon?limit=0",
		"/pokemon?limit=101",
		"/pokemon?limit=ten",
		"/pokemon?offset=-1",
		"/pokemon?match=some",
		"/pokemon?stats=" + url.QueryEscape(`{"attack":{"min":9,"max":1}}`),
		"/pokemon?stats=attack",
		"/pokemon?types=fire,bogus",
	} {
		rec := h.do(t, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.NotEmpty(t, errorMessage(t, rec), target)
	}
	assert.Zero(t, h.up.DetailHits("charizard"))
}

func TestListUpstreamFailures(t *testing.T) {
	h := newHarness(t)

	h.up.FailType("water", http.StatusInternalServerError)
	rec := h.do(t, http.MethodGet, "/pokemon?types=water")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	h.up.FailList(http.StatusInternalServerError)
	rec = h.do(t, http.MethodGet, "/pokemon")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream error", errorMessage(t, rec))
}

func TestLookup(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/pokemon/7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "squirtle", decode[map[string]any](t, rec)["name"])

	rec = h.do(t, http.MethodGet, "/pokemon/missingno")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategories(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/pokemon/types")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"name":"fire"},{"name":"flying"},{"name":"water"}]`, rec.Body.String())
}

func TestHealthAndClearCache(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/pokemon/types").Code)

	rec := h.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","cache_entries":1}`, rec.Body.String())

	rec = h.do(t, http.MethodDelete, "/cache")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	n, err := h.store.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

type brokenInspector struct{}

func (brokenInspector) Len(context.Context) (int, error) { return 0, errors.New("down") }
func (brokenInspector) Clear(context.Context) error      { return errors.New("down") }

func TestHealthReportsBrokenCache(t *testing.T) {
	srv := httpx.NewServer()
	srv.RegisterRoutes(api.New(nil, brokenInspector{}).Register)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","cache_entries":0}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/cache", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
