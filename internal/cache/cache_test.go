package cache

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finportal/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("menu", map[string]string{"week": "2025-W09", "entity": "AU"})
	b := Fingerprint("menu", map[string]string{"entity": "AU", "week": "2025-W09"})
	c := Fingerprint("menu", map[string]string{"entity": "NZ", "week": "2025-W09"})
	d := Fingerprint("kraken", map[string]string{"entity": "AU", "week": "2025-W09"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Contains(t, a, "menu:")
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, store.Set(ctx, "forever", []byte("v"), 0))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(time.Minute)
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())

	_, ok, _ = store.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestMemoryStoreCopiesValue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", buf, 0))
	buf[0] = 'x'

	got, _, _ := store.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestMemoryStoreDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "a", []byte("1"), 0)
	_ = store.Set(ctx, "b", []byte("2"), 0)

	require.NoError(t, store.Delete(ctx, "a"))
	_, ok, _ := store.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, 0, store.Len())
}

type payload struct {
	Rows []string `json:"rows"`
}

func TestFetchMissThenHit(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader("test", NewMemoryStore(), time.Minute)
	calls := 0
	fill := func(context.Context) (payload, error) {
		calls++
		return payload{Rows: []string{"a", "b"}}, nil
	}

	got, hit, err := Fetch(ctx, loader, "k", fill)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"a", "b"}, got.Rows)

	got, hit, err = Fetch(ctx, loader, "k", fill)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a", "b"}, got.Rows)
	assert.Equal(t, 1, calls)
}

func TestFetchFillErrorNotCached(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	loader := NewLoader("test", store, time.Minute)
	boom := errors.ExternalServiceError("warehouse", stderrors.New("timeout"))

	_, _, err := Fetch(ctx, loader, "k", func(context.Context) (payload, error) {
		return payload{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.Len())
}

func TestFetchDeduplicatesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader("test", NewMemoryStore(), time.Minute)

	var calls int32
	release := make(chan struct{})
	fill := func(context.Context) (payload, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return payload{Rows: []string{"x"}}, nil
	}

	const callers = 8
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	results := make([]payload, callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			results[i], _, _ = Fetch(ctx, loader, "k", fill)
		}(i)
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(callers))
	for _, r := range results {
		assert.Equal(t, []string{"x"}, r.Rows)
	}
	// once filled, nothing else reaches the fill function
	before := atomic.LoadInt32(&calls)
	_, hit, err := Fetch(ctx, loader, "k", fill)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestFetchCancelledCallerDoesNotFailOthers(t *testing.T) {
	loader := NewLoader("test", NewMemoryStore(), time.Minute)

	entered := make(chan struct{})
	release := make(chan struct{})
	var fillErr error
	fill := func(ctx context.Context) (payload, error) {
		close(entered)
		<-release
		fillErr = ctx.Err()
		return payload{Rows: []string{"shared"}}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := Fetch(ctx, loader, "k", fill)
		firstErr <- err
	}()
	<-entered

	second := make(chan payload, 1)
	go func() {
		got, _, err := Fetch(context.Background(), loader, "k", fill)
		assert.NoError(t, err)
		second <- got
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.Equal(t, []string{"shared"}, (<-second).Rows)
	assert.NoError(t, fillErr)

	_, hit, err := Fetch(context.Background(), loader, "k", fill)
	require.NoError(t, err)
	assert.True(t, hit, "the detached fill still stored its result")
}

type brokenStore struct{ *MemoryStore }

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, stderrors.New("connection refused")
}

func (brokenStore) Delete(context.Context, string) error {
	return stderrors.New("connection refused")
}

func (brokenStore) Clear(context.Context) error {
	return stderrors.New("connection refused")
}

func TestFetchStoreErrorFallsBackToFill(t *testing.T) {
	ctx := context.Background()
	store := brokenStore{NewMemoryStore()}
	loader := NewLoader("test", store, time.Minute)

	got, hit, err := Fetch(ctx, loader, "k", func(context.Context) (payload, error) {
		return payload{Rows: []string{"fresh"}}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"fresh"}, got.Rows)

	assert.True(t, errors.HasCode(loader.Invalidate(ctx, "k"), errors.CodeExternalService))
	assert.True(t, errors.HasCode(loader.Clear(ctx), errors.CodeExternalService))
}

func TestInvalidateForcesReload(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader("test", NewMemoryStore(), time.Minute)
	n := 0
	fill := func(context.Context) (int, error) {
		n++
		return n, nil
	}

	v, _, _ := Fetch(ctx, loader, "k", fill)
	assert.Equal(t, 1, v)
	v, _, _ = Fetch(ctx, loader, "k", fill)
	assert.Equal(t, 1, v)

	require.NoError(t, loader.Invalidate(ctx, "k"))
	v, _, _ = Fetch(ctx, loader, "k", fill)
	assert.Equal(t, 2, v)

	require.NoError(t, loader.Clear(ctx))
	v, _, _ = Fetch(ctx, loader, "k", fill)
	assert.Equal(t, 3, v)
}
