// Package metrics provides Prometheus metrics for the cache and collections store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marquee"

var (
	// CacheOperationsTotal tracks response cache operations.
	// Labels:
	//   - operation: get, set, delete, clear
	//   - status: hit, miss, stale, success, error
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of response cache operations",
		},
		[]string{"operation", "status"},
	)

	// FetchRequestsTotal tracks cache-or-fetch coalescing.
	// Labels:
	//   - result: initiated (new fetch), shared (reused result)
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Total number of upstream catalog fetches through the cache",
		},
		[]string{"result"},
	)

	// CollectionsPersistTotal tracks collections snapshot writes.
	// Labels:
	//   - status: success, error, superseded
	CollectionsPersistTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collections_persist_total",
			Help:      "Total number of collections snapshot writes",
		},
		[]string{"status"},
	)
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusStale   = "stale"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpGet    = "get"
	CacheOpSet    = "set"
	CacheOpDelete = "delete"
	CacheOpClear  = "clear"
)

// Fetch result constants.
const (
	FetchInitiated = "initiated"
	FetchShared    = "shared"
)

// Persist status constants.
const (
	PersistSuccess    = "success"
	PersistError      = "error"
	PersistSuperseded = "superseded"
)
