package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/marquee/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketKV = []byte("kv")
)

// BoltStorage implements domain.Storage using BoltDB.
type BoltStorage struct {
	db     *bolt.DB
	mu     sync.RWMutex // Protects memory cache and closed
	closed bool

	// Orders DB writes against read-then-promote so a slow reader
	// cannot promote a value that a concurrent write has replaced.
	dbMu sync.RWMutex

	// In-memory copy of values read or written (promoted on access).
	// In memory-only mode this is the only copy.
	cache map[string][]byte

	// Keys with these prefixes are never kept in cache when a DB is open
	uncached []string
}

// BoltOption configures a BoltStorage
type BoltOption func(*BoltStorage)

// WithUncachedPrefixes keeps keys starting with any of prefixes out of the
// in-memory copy; they are always read from the DB.
// Memory-only stores ignore it.
func WithUncachedPrefixes(prefixes ...string) BoltOption {
	return func(s *BoltStorage) {
		s.uncached = append(s.uncached, prefixes...)
	}
}

// NewBoltStorage opens (or creates) marquee.db under baseDir.
// A non-empty profile gets its own subdirectory so several accounts can share baseDir.
// An empty baseDir yields a memory-only store with no persistence.
func NewBoltStorage(baseDir, profile string, opts ...BoltOption) (*BoltStorage, error) {
	if baseDir == "" {
		return &BoltStorage{cache: make(map[string][]byte)}, nil
	}

	dir := baseDir
	if profile != "" {
		dir = filepath.Join(baseDir, hashProfile(profile))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "marquee.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKV)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStorage{db: db, cache: make(map[string][]byte)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *BoltStorage) memoryCached(key string) bool {
	for _, p := range s.uncached {
		if strings.HasPrefix(key, p) {
			return false
		}
	}
	return true
}

func hashProfile(profile string) string {
	normalized := strings.TrimSpace(strings.ToLower(profile))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *BoltStorage) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *BoltStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, false, domain.ErrStorageClosed
	}
	if data, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return copyBytes(data), true, nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return nil, false, nil
	}

	s.dbMu.RLock()
	defer s.dbMu.RUnlock()

	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketKV).Get([]byte(key)); v != nil {
			data = copyBytes(v)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("bolt get %q: %w", key, err)
	}
	if data == nil {
		return nil, false, nil
	}

	if s.memoryCached(key) {
		s.mu.Lock()
		s.cache[key] = data
		s.mu.Unlock()
	}

	return copyBytes(data), true, nil
}

func (s *BoltStorage) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data := copyBytes(value)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrStorageClosed
	}
	if s.db == nil {
		s.cache[key] = data
		s.mu.Unlock()
		return nil // Memory-only mode
	}
	s.mu.Unlock()

	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), data)
	})

	s.mu.Lock()
	if err == nil && s.memoryCached(key) {
		s.cache[key] = data
	} else {
		delete(s.cache, key)
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("bolt put %q: %w", key, err)
	}
	return nil
}

func (s *BoltStorage) Remove(ctx context.Context, key string) error {
	return s.RemoveMany(ctx, []string{key})
}

func (s *BoltStorage) RemoveMany(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrStorageClosed
	}
	if s.db == nil {
		for _, k := range keys {
			delete(s.cache, k)
		}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if len(keys) == 0 {
		return nil
	}

	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	// One transaction so the batch lands atomically
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKV)
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})

	s.mu.Lock()
	for _, k := range keys {
		delete(s.cache, k)
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("bolt delete %d keys: %w", len(keys), err)
	}
	return nil
}

func (s *BoltStorage) ListKeys(ctx context.Context) ([]string, error) {
	return s.ListPrefix(ctx, "")
}

// ListPrefix returns keys starting with prefix, in byte order.
// BoltDB keys are sorted, so this is a cursor seek rather than a full scan.
func (s *BoltStorage) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, domain.ErrStorageClosed
	}
	if s.db == nil {
		keys := make([]string, 0, len(s.cache))
		for k := range s.cache {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		s.mu.RUnlock()
		sort.Strings(keys)
		return keys, nil
	}
	s.mu.RUnlock()

	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketKV).Cursor()
		prefixBytes := []byte(prefix)
		for k, _ := c.Seek(prefixBytes); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bolt list keys: %w", err)
	}
	return keys, nil
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
