package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/metrics"
)

// GetOrFetch implements the cache-aside pattern for a catalog request:
// a fresh cached payload is returned as-is; otherwise fetch is called and its
// result cached. Concurrent misses for the same key share one fetch.
// Only fetch errors are returned; cache failures never fail the request.
func (c *ResponseCache) GetOrFetch(ctx context.Context, endpoint string, params map[string]any, fetch domain.FetchFunc) (json.RawMessage, error) {
	key := KeyFor(endpoint, params)

	result, err, shared := c.sfGroup.Do(key, func() (any, error) {
		if data, ok := c.Get(ctx, key); ok {
			return data, nil
		}

		data, err := fetch(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}

		c.Set(ctx, key, data)
		return data, nil
	})

	if shared {
		metrics.FetchRequestsTotal.WithLabelValues(metrics.FetchShared).Inc()
	} else {
		metrics.FetchRequestsTotal.WithLabelValues(metrics.FetchInitiated).Inc()
	}

	if err != nil {
		c.logger.Error("catalog fetch failed", "endpoint", endpoint, "error", err)
		return nil, err
	}

	// Copy so callers sharing a result cannot mutate each other's bytes
	data := result.(json.RawMessage)
	return append(json.RawMessage(nil), data...), nil
}

// Fetch is GetOrFetch with the payload decoded into T
func Fetch[T any](ctx context.Context, c *ResponseCache, endpoint string, params map[string]any, fetch domain.FetchFunc) (T, error) {
	var out T
	data, err := c.GetOrFetch(ctx, endpoint, params, fetch)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return out, nil
}
