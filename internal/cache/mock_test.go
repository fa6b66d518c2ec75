package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// mockStorage is an in-memory domain.Storage whose operations can be
// overridden per test to inject failures.
type mockStorage struct {
	mu   sync.Mutex
	data map[string][]byte

	getFn        func(ctx context.Context, key string) ([]byte, bool, error)
	setFn        func(ctx context.Context, key string, value []byte) error
	removeFn     func(ctx context.Context, key string) error
	listKeysFn   func(ctx context.Context) ([]string, error)
	removeManyFn func(ctx context.Context, keys []string) error

	removeManyCalls [][]string
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
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *mockStorage) Remove(ctx context.Context, key string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockStorage) ListKeys(ctx context.Context) ([]string, error) {
	if m.listKeysFn != nil {
		return m.listKeysFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *mockStorage) RemoveMany(ctx context.Context, keys []string) error {
	m.mu.Lock()
	m.removeManyCalls = append(m.removeManyCalls, append([]string(nil), keys...))
	m.mu.Unlock()

	if m.removeManyFn != nil {
		return m.removeManyFn(ctx, keys)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mockStorage) Close() error { return nil }

func (m *mockStorage) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *mockStorage) put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = []byte(value)
}

func (m *mockStorage) keysWithPrefix(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now int64 // epoch milliseconds
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.UnixMilli(c.now)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d.Milliseconds()
}
