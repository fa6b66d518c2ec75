// Package collections holds the user's saved collections (watchlists) and a
// derived index answering "is this item saved anywhere" in O(1).
//
// Lifecycle: New -> Hydrate -> mutations/reads -> Close.
// The store serves the default-only state until Hydrate completes, so the UI
// never blocks on storage. Every mutation schedules a fire-and-forget write
// of the full state; storage failures are logged and never roll back memory.
package collections

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/marquee/internal/domain"
)

const (
	// StorageKey is where the whole state document is persisted
	StorageKey = "marquee_collections"

	// DefaultCollectionID identifies the permanent Watchlist
	DefaultCollectionID = "default-watchlist"

	// DefaultCollectionTitle is the display name of the permanent Watchlist
	DefaultCollectionTitle = "Watchlist"
)

// state is the persisted document. SavedItemIDs is derived from Collections
// and is rebuilt on hydration rather than trusted.
type state struct {
	Collections  []domain.Collection `json:"collections"`
	SavedItemIDs map[int64]bool      `json:"savedItemIds"`
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger (slog.Default() otherwise)
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for createdAt
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides collection ID generation (random UUIDs otherwise)
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// Store is the authoritative in-memory collections state plus its
// persistence. Safe for concurrent use; operations apply one at a time.
type Store struct {
	storage domain.Storage
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	mu       sync.Mutex // Protects everything below
	state    state
	hydrated   bool
	loadFailed bool      // Persisted state unknown; writes are held back
	dirty      bool      // Mutated while writes were held back
	pending  *snapshot // Latest unwritten snapshot
	closed   bool

	writeMu sync.Mutex // Serializes snapshot writes

	wake      chan struct{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a store holding only the default Watchlist and starts its
// background writer. Call Hydrate to load persisted state.
func New(storage domain.Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		logger:  slog.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = s.initialState()

	go s.writeLoop()
	return s
}

func (s *Store) initialState() state {
	return state{
		Collections:  []domain.Collection{s.defaultCollection()},
		SavedItemIDs: make(map[int64]bool),
	}
}

func (s *Store) defaultCollection() domain.Collection {
	return domain.Collection{
		ID:        DefaultCollectionID,
		Title:     DefaultCollectionTitle,
		IsDefault: true,
		Items:     []domain.MediaItem{},
		CreatedAt: s.now().UnixMilli(),
	}
}

// Hydrate loads persisted state. When a persisted document exists it replaces
// the in-memory state; otherwise the current state stays and, if it was
// mutated before hydration, is persisted.
//
// A load failure leaves the in-memory state serving the session but never
// writes it: the durable copy may hold collections this process has not seen.
// Calling Hydrate again retries the load. Once a load succeeds, later calls
// have no effect.
func (s *Store) Hydrate(ctx context.Context) {
	s.mu.Lock()
	done := s.hydrated && !s.loadFailed
	s.mu.Unlock()
	if done {
		return
	}

	raw, ok, err := s.storage.Get(ctx, StorageKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hydrated && !s.loadFailed {
		return
	}
	s.hydrated = true

	if err != nil {
		s.loadFailed = true
		s.logger.Error("failed to load collections, continuing in memory without saving", "error", err)
		return
	}
	s.loadFailed = false

	if ok {
		var loaded state
		if err := json.Unmarshal(raw, &loaded); err != nil {
			s.logger.Error("failed to decode persisted collections, keeping defaults", "error", err)
		} else {
			s.state = s.normalize(loaded)
			s.dirty = false
			s.logger.Debug("hydrated collections", "count", len(s.state.Collections), "saved", len(s.state.SavedItemIDs))
			return
		}
	}

	if s.dirty {
		s.dirty = false
		s.schedulePersistLocked()
	}
}

// Hydrated reports whether Hydrate has completed
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// LoadFailed reports whether the last Hydrate could not read persisted state.
// Mutations stay in memory until a later Hydrate succeeds.
func (s *Store) LoadFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFailed
}

// normalize repairs a loaded document: nil item slices become empty, a
// missing default collection is restored, and the index is rebuilt.
func (s *Store) normalize(loaded state) state {
	hasDefault := false
	for i := range loaded.Collections {
		if loaded.Collections[i].Items == nil {
			loaded.Collections[i].Items = []domain.MediaItem{}
		}
		if loaded.Collections[i].IsDefault {
			hasDefault = true
		}
	}
	if !hasDefault {
		s.logger.Warn("persisted collections had no default, restoring Watchlist")
		loaded.Collections = append([]domain.Collection{s.defaultCollection()}, loaded.Collections...)
	}
	loaded.SavedItemIDs = buildIndex(loaded.Collections)
	return loaded
}

// buildIndex derives savedItemIds from scratch
func buildIndex(cols []domain.Collection) map[int64]bool {
	index := make(map[int64]bool)
	for _, c := range cols {
		for _, item := range c.Items {
			index[item.ID] = true
		}
	}
	return index
}

// findLocked returns the index of the collection with id, or -1
func (s *Store) findLocked(id string) int {
	for i := range s.state.Collections {
		if s.state.Collections[i].ID == id {
			return i
		}
	}
	return -1
}
