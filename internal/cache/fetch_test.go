package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrFetch_MissFetchesAndCaches(t *testing.T) {
	c, storage, _ := newTestCache(t)
	ctx := context.Background()
	params := map[string]any{"sort": "rank"}

	var calls int32
	fetch := func(ctx context.Context, endpoint string, p map[string]any) (json.RawMessage, error) {
		atomic.AddInt32(&calls, 1)
		if endpoint != "/movies/trending" {
			t.Errorf("endpoint = %q, want /movies/trending", endpoint)
		}
		return json.RawMessage(`[{"title":"X"}]`), nil
	}

	data, err := c.GetOrFetch(ctx, "/movies/trending", params, fetch)
	if err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}
	if string(data) != `[{"title":"X"}]` {
		t.Errorf("GetOrFetch = %s, want [{\"title\":\"X\"}]", data)
	}
	if !storage.has(KeyFor("/movies/trending", params)) {
		t.Error("expected response to be cached")
	}

	if _, err := c.GetOrFetch(ctx, "/movies/trending", params, fetch); err != nil {
		t.Fatalf("second GetOrFetch failed: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
}

func TestGetOrFetch_RefetchesAfterTTL(t *testing.T) {
	c, _, clock := newTestCache(t)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context, endpoint string, p map[string]any) (json.RawMessage, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return json.RawMessage(`"first"`), nil
		}
		return json.RawMessage(`"second"`), nil
	}

	if _, err := c.GetOrFetch(ctx, "/e", nil, fetch); err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}
	clock.Advance(TTL)

	got, err := Fetch[string](ctx, c, "/e", nil, fetch)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got != "second" {
		t.Errorf("Fetch = %q, want %q", got, "second")
	}
	c.Wait()
}

func TestGetOrFetch_RefreshSurvivesSlowStaleDelete(t *testing.T) {
	c, storage, clock := newTestCache(t)
	ctx := context.Background()

	// The stale delete lands well after the refreshed entry is written
	storage.removeFn = func(ctx context.Context, key string) error {
		time.Sleep(20 * time.Millisecond)
		storage.mu.Lock()
		defer storage.mu.Unlock()
		delete(storage.data, key)
		return nil
	}

	var calls int32
	fetch := func(ctx context.Context, endpoint string, p map[string]any) (json.RawMessage, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return json.RawMessage(`"first"`), nil
		}
		return json.RawMessage(`"second"`), nil
	}

	if _, err := c.GetOrFetch(ctx, "/e", nil, fetch); err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}
	clock.Advance(TTL)
	if _, err := c.GetOrFetch(ctx, "/e", nil, fetch); err != nil {
		t.Fatalf("GetOrFetch after TTL failed: %v", err)
	}
	c.Wait()

	if !storage.has(KeyFor("/e", nil)) {
		t.Fatal("refreshed entry was deleted by the stale delete")
	}
	got, ok := Lookup[string](ctx, c, KeyFor("/e", nil))
	if !ok || got != "second" {
		t.Errorf("Lookup = (%q, %v), want (second, true)", got, ok)
	}
	if _, err := c.GetOrFetch(ctx, "/e", nil, fetch); err != nil {
		t.Fatalf("third GetOrFetch failed: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("fetch calls = %d, want 2", n)
	}
}

func TestGetOrFetch_ErrorNotCached(t *testing.T) {
	c, storage, _ := newTestCache(t)
	ctx := context.Background()
	errUpstream := errors.New("upstream 503")

	fetch := func(ctx context.Context, endpoint string, p map[string]any) (json.RawMessage, error) {
		return nil, errUpstream
	}

	if _, err := c.GetOrFetch(ctx, "/e", nil, fetch); !errors.Is(err, errUpstream) {
		t.Errorf("GetOrFetch error = %v, want %v", err, errUpstream)
	}
	if keys := storage.keysWithPrefix(KeyPrefix); len(keys) != 0 {
		t.Errorf("cached keys = %v, want none", keys)
	}
}

func TestGetOrFetch_StorageFailureDoesNotFailRequest(t *testing.T) {
	c, storage, _ := newTestCache(t)
	storage.getFn = func(ctx context.Context, key string) ([]byte, bool, error) {
		return nil, false, errStorage
	}
	storage.setFn = func(ctx context.Context, key string, value []byte) error {
		return errStorage
	}

	fetch := func(ctx context.Context, endpoint string, p map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{"ok":true}`), nil
	}

	data, err := c.GetOrFetch(context.Background(), "/e", nil, fetch)
	if err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("GetOrFetch = %s, want {\"ok\":true}", data)
	}
}

func TestGetOrFetch_ConcurrentMissesShareFetch(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context, endpoint string, p map[string]any) (json.RawMessage, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return json.RawMessage(`"shared"`), nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([]json.RawMessage, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrFetch(ctx, "/e", map[string]any{"q": "x"}, fetch)
		}(i)
	}

	// Let the callers pile up on the in-flight fetch
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	// Late arrivals find the cached entry, so there is exactly one fetch
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
	for i := range results {
		if errs[i] != nil {
			t.Errorf("caller %d error: %v", i, errs[i])
		}
		if string(results[i]) != `"shared"` {
			t.Errorf("caller %d result = %s, want \"shared\"", i, results[i])
		}
	}

	// Each caller owns its bytes
	results[0][1] = 'X'
	if string(results[1]) != `"shared"` {
		t.Error("callers share a result buffer")
	}
}

func TestFetch_DecodeError(t *testing.T) {
	c, _, _ := newTestCache(t)

	fetch := func(ctx context.Context, endpoint string, p map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{"not":"a list"}`), nil
	}

	if _, err := Fetch[[]string](context.Background(), c, "/e", nil, fetch); err == nil {
		t.Error("expected decode error")
	}
}
