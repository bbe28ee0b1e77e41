// Package memory implements cache.Store as a bounded LRU map with lazy
// per-entry expiry.
//
// Capacity and TTL are enforced independently: Set evicts exactly one least
// recently used entry when a new key would exceed MaxEntries, and Get drops
// an entry once it is older than its TTL. Nothing runs in the background, so
// an expired entry keeps its slot until it is read or pushed out by LRU.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/adeilh/go-dex/cache"
)

type entry struct {
	key      string
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

// Store is safe for concurrent use.
type Store struct {
	opts Options

	mu      sync.Mutex
	items   map[string]*list.Element
	recency *list.List // front = most recently used
}

var (
	_ cache.Store     = (*Store)(nil)
	_ cache.Inspector = (*Store)(nil)
)

// NewStore builds an empty store.
func NewStore(opts Options) *Store {
	cfg := opts.withDefaults()
	return &Store{
		opts:    cfg,
		items:   make(map[string]*list.Element, cfg.MaxEntries),
		recency: list.New(),
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	e := el.Value.(*entry)
	if s.opts.Now().Sub(e.storedAt) > e.ttl {
		s.removeElement(el)
		return nil, cache.ErrNotFound
	}
	s.recency.MoveToFront(el)
	return append([]byte(nil), e.value...), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = s.opts.TTL
	}
	e := &entry{
		key:      key,
		value:    append([]byte(nil), value...),
		storedAt: s.opts.Now(),
		ttl:      ttl,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		el.Value = e
		s.recency.MoveToFront(el)
		return nil
	}
	if len(s.items) >= s.opts.MaxEntries {
		if oldest := s.recency.Back(); oldest != nil {
			s.removeElement(oldest)
		}
	}
	s.items[key] = s.recency.PushFront(e)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return cache.ErrNotFound
	}
	s.removeElement(el)
	return nil
}

// Len counts stored entries, including expired ones not yet read.
func (s *Store) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}

func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*list.Element, s.opts.MaxEntries)
	s.recency.Init()
	return nil
}

// removeElement must be called with mu held.
func (s *Store) removeElement(el *list.Element) {
	s.recency.Remove(el)
	delete(s.items, el.Value.(*entry).key)
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
