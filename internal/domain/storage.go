package domain

import (
	"context"
	"encoding/json"
)

// Storage is the durable key-value substrate shared by the whole app.
// Every operation may fail; callers in this module log and degrade rather
// than propagate. Components namespace their keys so they can share one Storage.
type Storage interface {
	// Get returns the value stored at key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value at key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// ListKeys returns every key currently stored
	ListKeys(ctx context.Context) ([]string, error)

	// RemoveMany deletes all keys in one batch
	RemoveMany(ctx context.Context, keys []string) error

	// Close releases the underlying resources
	Close() error
}

// ResponseCacheKeyPrefix namespaces response cache entries in shared storage
const ResponseCacheKeyPrefix = "marquee_cache_"

// FetchFunc is the catalog/detail fetch service: it fetches the JSON payload
// for an endpoint and parameter set. The payload shape is never interpreted here.
type FetchFunc func(ctx context.Context, endpoint string, params map[string]any) (json.RawMessage, error)
