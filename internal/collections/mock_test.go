package collections

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/marquee/internal/domain"
)

// mockStorage is an in-memory domain.Storage with injectable failures
type mockStorage struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int

	getFn  func(ctx context.Context, key string) ([]byte, bool, error)
	setErr error // Returned by Set while non-nil
}

func newMockStorage() *mockStorage {
	return &mockStorage{data: make(map[string][]byte)}
}

func (m *mockStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockStorage) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// failSets makes every later Set return err; nil restores normal writes.
// Safe to call while the background writer is running.
func (m *mockStorage) failSets(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setErr = err
}

func (m *mockStorage) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockStorage) ListKeys(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *mockStorage) RemoveMany(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mockStorage) Close() error { return nil }

func (m *mockStorage) raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *mockStorage) put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = []byte(value)
}

func (m *mockStorage) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// sequentialIDs returns an ID generator yielding c1, c2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("c%d", n)
	}
}

var testEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// newTestStore builds an unhydrated store with deterministic IDs and clock
func newTestStore(t *testing.T, storage domain.Storage) *Store {
	t.Helper()
	s := New(storage,
		WithIDGenerator(sequentialIDs()),
		WithClock(func() time.Time { return testEpoch }),
	)
	t.Cleanup(func() { s.Close() })
	return s
}

// newHydratedStore builds a store over empty storage and hydrates it
func newHydratedStore(t *testing.T) (*Store, *mockStorage) {
	t.Helper()
	storage := newMockStorage()
	s := newTestStore(t, storage)
	s.Hydrate(context.Background())
	return s, storage
}

func movie(id int64, title string) domain.MediaItem {
	return domain.NewMovieItem(id, title, domain.MovieDetail{Runtime: "1h 50m"})
}

func series(id int64, title string) domain.MediaItem {
	return domain.NewSeriesItem(id, title, domain.SeriesDetail{TotalEpisodes: 10})
}
