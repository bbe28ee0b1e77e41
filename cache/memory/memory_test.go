package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adeilh/go-dex/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(max int, ttl time.Duration) (*Store, *fakeClock) {
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewStore(Options{MaxEntries: max, TTL: ttl, Now: clk.Now}), clk
}

func TestStoreSetGetDelete(t *testing.T) {
	store, _ := newTestStore(4, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "k"), cache.ErrNotFound)
}

func TestStoreTTLBoundary(t *testing.T) {
	ttl := 10 * time.Second
	store, clk := newTestStore(4, ttl)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))

	clk.Advance(ttl - time.Millisecond)
	_, err := store.Get(ctx, "k")
	require.NoError(t, err, "entry must survive just before its TTL")

	clk.Advance(2 * time.Millisecond)
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)

	n, _ := store.Len(ctx)
	assert.Zero(t, n, "expired entry is removed on read")
}

func TestStorePerEntryTTL(t *testing.T) {
	store, clk := newTestStore(4, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("s"), time.Second))
	require.NoError(t, store.Set(ctx, "long", []byte("l"), 0))

	clk.Advance(2 * time.Second)

	_, err := store.Get(ctx, "short")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	_, err = store.Get(ctx, "long")
	assert.NoError(t, err)
}

func TestStoreEvictsLeastRecentlyUsed(t *testing.T) {
	store, _ := newTestStore(3, time.Hour)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, store.Set(ctx, k, []byte(k), 0))
	}
	require.NoError(t, store.Set(ctx, "d", []byte("d"), 0))

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, cache.ErrNotFound, "oldest key should be evicted")
	for _, k := range []string{"b", "c", "d"} {
		_, err := store.Get(ctx, k)
		assert.NoError(t, err, k)
	}
	n, _ := store.Len(ctx)
	assert.Equal(t, 3, n)
}

func TestStoreGetProtectsFromEviction(t *testing.T) {
	store, _ := newTestStore(3, time.Hour)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, store.Set(ctx, k, []byte(k), 0))
	}
	_, err := store.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "d", []byte("d"), 0))

	_, err = store.Get(ctx, "a")
	assert.NoError(t, err, "touched key must survive")
	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestStoreOverwriteDoesNotEvict(t *testing.T) {
	store, clk := newTestStore(2, 10*time.Second)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "b", []byte("1"), 0))

	clk.Advance(8 * time.Second)
	require.NoError(t, store.Set(ctx, "a", []byte("2"), 0))

	got, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "1", string(got))

	clk.Advance(5 * time.Second)
	got, err = store.Get(ctx, "a")
	require.NoError(t, err, "overwrite resets storedAt")
	assert.Equal(t, "2", string(got))
}

func TestStoreCopiesPayloads(t *testing.T) {
	store, _ := newTestStore(2, time.Hour)
	ctx := context.Background()

	in := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", in, 0))
	in[0] = 'x'

	out, err := store.Get(ctx, "k")
	require.NoError(t, err)
	out[1] = 'y'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestStoreClear(t *testing.T) {
	store, _ := newTestStore(8, time.Hour)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprint(i), []byte("v"), 0))
	}
	require.NoError(t, store.Clear(ctx))

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, store.Set(ctx, "after", []byte("v"), 0))
	n, _ = store.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestStoreCanceledContext(t *testing.T) {
	store, _ := newTestStore(2, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Set(ctx, "k", []byte("v"), 0), context.Canceled)
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := NewStore(Options{MaxEntries: 16, TTL: time.Minute})
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*i)%40)
				_ = store.Set(ctx, key, []byte("v"), 0)
				_, _ = store.Get(ctx, key)
			}
		}(g)
	}
	wg.Wait()

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 16)
}
