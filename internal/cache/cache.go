// Package cache keeps catalog API responses in durable storage for a fixed
// freshness window so identical queries skip the network.
//
// The cache is an optimization, never a source of truth: storage and
// serialization failures are logged and read as misses or no-ops.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// TTL is how long an entry stays fresh after it is written
const TTL = 24 * time.Hour

// Entry is the persisted form of one cached response
type Entry struct {
	Timestamp int64           `json:"timestamp"` // epoch milliseconds
	Data      json.RawMessage `json:"data"`
}

// Fresh reports whether the entry is still inside TTL at now
func (e Entry) Fresh(now time.Time) bool {
	return now.UnixMilli()-e.Timestamp < TTL.Milliseconds()
}

// prefixLister is implemented by storage that can seek to a key prefix
// instead of listing everything (BoltStorage).
type prefixLister interface {
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Option configures a ResponseCache
type Option func(*ResponseCache)

// WithLogger sets the logger (slog.Default() otherwise)
func WithLogger(logger *slog.Logger) Option {
	return func(c *ResponseCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) {
		if now != nil {
			c.now = now
		}
	}
}

// ResponseCache maps request fingerprints (see KeyFor) to fetched payloads.
// Concurrent Sets for one key race and the last write wins; entries are
// snapshots of the same logical query so either is acceptable.
type ResponseCache struct {
	storage domain.Storage
	logger  *slog.Logger
	now     func() time.Time

	sfGroup singleflight.Group

	// Per-key write generations; see keyState
	keys sync.Map // map[string]*keyState

	// Tracks background deletions of stale entries
	pending sync.WaitGroup
}

// keyState orders a background stale delete against Sets of the same key.
// Set bumps gen and writes while holding mu; the delete runs under mu only
// if gen is unchanged since the stale read, so it never removes a newer entry.
type keyState struct {
	mu  sync.Mutex
	gen atomic.Uint64
}

func (c *ResponseCache) keyState(key string) *keyState {
	v, _ := c.keys.LoadOrStore(key, &keyState{})
	return v.(*keyState)
}

// generation returns the write generation of key, 0 if it was never Set
func (c *ResponseCache) generation(key string) uint64 {
	if v, ok := c.keys.Load(key); ok {
		return v.(*keyState).gen.Load()
	}
	return 0
}

// New creates a ResponseCache over storage
func New(storage domain.Storage, opts ...Option) *ResponseCache {
	c := &ResponseCache{
		storage: storage,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached payload for key. ok is false on a miss, on a stale
// entry (which is then deleted in the background) and on any storage or
// decode failure.
func (c *ResponseCache) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	// Taken before the read: a Set landing after it changes the generation
	gen := c.generation(key)

	raw, ok, err := c.storage.Get(ctx, key)
	if err != nil {
		c.logger.Warn("error reading from cache", "key", key, "error", err)
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusError).Inc()
		return nil, false
	}
	if !ok {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss).Inc()
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("error decoding cache entry", "key", key, "error", err)
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusError).Inc()
		return nil, false
	}
	if len(entry.Data) == 0 {
		c.logger.Warn("cache entry has no data", "key", key)
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusError).Inc()
		return nil, false
	}

	if !entry.Fresh(c.now()) {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusStale).Inc()
		c.removeAsync(ctx, key, gen)
		return nil, false
	}

	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit).Inc()
	return entry.Data, true
}

// Set stores payload under key stamped with the current time, replacing any
// previous entry. Failures are logged and swallowed.
func (c *ResponseCache) Set(ctx context.Context, key string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("error encoding cache payload", "key", key, "error", err)
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusError).Inc()
		return
	}

	raw, err := json.Marshal(Entry{Timestamp: c.now().UnixMilli(), Data: data})
	if err != nil {
		c.logger.Warn("error encoding cache entry", "key", key, "error", err)
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusError).Inc()
		return
	}

	ks := c.keyState(key)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	// Bumped after the write so a reader holding the new generation
	// always sees the new entry.
	defer ks.gen.Add(1)

	if err := c.storage.Set(ctx, key, raw); err != nil {
		c.logger.Warn("error saving to cache", "key", key, "error", err)
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusError).Inc()
		return
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusSuccess).Inc()
}

// ClearAll removes every response cache entry in one batch and returns how
// many keys were removed. Keys without KeyPrefix are left alone.
func (c *ResponseCache) ClearAll(ctx context.Context) int {
	keys, err := c.listKeys(ctx)
	if err != nil {
		c.logger.Error("error listing cache keys", "error", err)
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpClear, metrics.CacheStatusError).Inc()
		return 0
	}

	appKeys := keys[:0]
	for _, k := range keys {
		if strings.HasPrefix(k, KeyPrefix) {
			appKeys = append(appKeys, k)
		}
	}
	if len(appKeys) == 0 {
		return 0
	}

	if err := c.storage.RemoveMany(ctx, appKeys); err != nil {
		c.logger.Error("error clearing cache", "keys", len(appKeys), "error", err)
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpClear, metrics.CacheStatusError).Inc()
		return 0
	}

	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpClear, metrics.CacheStatusSuccess).Inc()
	c.logger.Info("cache cleared", "keys", len(appKeys))
	return len(appKeys)
}

// Wait blocks until background stale-entry deletions have finished
func (c *ResponseCache) Wait() {
	c.pending.Wait()
}

func (c *ResponseCache) listKeys(ctx context.Context) ([]string, error) {
	if pl, ok := c.storage.(prefixLister); ok {
		return pl.ListPrefix(ctx, KeyPrefix)
	}
	return c.storage.ListKeys(ctx)
}

// removeAsync deletes a stale entry without blocking the reader, unless key
// was Set again after the stale read (gen moved on).
// The deletion outlives the caller's context cancellation.
func (c *ResponseCache) removeAsync(ctx context.Context, key string, gen uint64) {
	ctx = context.WithoutCancel(ctx)

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()

		ks := c.keyState(key)
		ks.mu.Lock()
		defer ks.mu.Unlock()
		if ks.gen.Load() != gen {
			return
		}

		if err := c.storage.Remove(ctx, key); err != nil {
			c.logger.Warn("error removing expired cache entry", "key", key, "error", err)
			metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpDelete, metrics.CacheStatusError).Inc()
			return
		}
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpDelete, metrics.CacheStatusSuccess).Inc()
	}()
}

// Lookup decodes the cached payload for key into T
func Lookup[T any](ctx context.Context, c *ResponseCache, key string) (T, bool) {
	var out T
	data, ok := c.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		c.logger.Warn("cached payload does not match requested type", "key", key, "error", err)
		return out, false
	}
	return out, true
}
