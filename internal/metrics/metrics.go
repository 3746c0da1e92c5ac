// Package metrics provides Prometheus metrics for the offline cache and sync layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchResponsesTotal tracks intercepted requests by request class and response source
	FetchResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tripplanner",
			Subsystem: "fetch",
			Name:      "responses_total",
			Help:      "Intercepted requests by request class and where the response came from",
		},
		[]string{"class", "source"},
	)

	// CacheLookupsTotal tracks cache lookups by namespace and result
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tripplanner",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result (hit or miss)",
		},
		[]string{"result"},
	)

	// AssetCacheTotal tracks plan image caching attempts
	AssetCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tripplanner",
			Subsystem: "assets",
			Name:      "cache_total",
			Help:      "Plan image caching attempts by result",
		},
		[]string{"result"},
	)

	// PlanCacheWritesTotal tracks plan cache writes
	PlanCacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tripplanner",
			Subsystem: "plans",
			Name:      "cache_writes_total",
			Help:      "Plan cache writes by status",
		},
		[]string{"status"},
	)

	// SyncItemsTotal tracks pending favorite changes processed by drains
	SyncItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tripplanner",
			Subsystem: "sync",
			Name:      "items_total",
			Help:      "Pending favorite changes processed by result",
		},
		[]string{"result"},
	)

	// SyncDrainDuration tracks how long a queue drain takes
	SyncDrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tripplanner",
			Subsystem: "sync",
			Name:      "drain_duration_seconds",
			Help:      "Duration of sync queue drains in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// PendingFavorites tracks the queue length observed at the end of each drain
	PendingFavorites = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tripplanner",
			Subsystem: "sync",
			Name:      "pending_favorites",
			Help:      "Pending favorite changes left after the last drain",
		},
	)

	// WorkerEventsTotal tracks dispatched lifecycle events
	WorkerEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tripplanner",
			Subsystem: "worker",
			Name:      "events_total",
			Help:      "Dispatched worker events by kind and outcome",
		},
		[]string{"kind", "status"},
	)
)

// RecordFetch records which source answered an intercepted request
func RecordFetch(class, source string) {
	FetchResponsesTotal.WithLabelValues(class, source).Inc()
}

// RecordCacheLookup records a cache hit or miss
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordAssetCache records an asset caching outcome
func RecordAssetCache(result string) {
	AssetCacheTotal.WithLabelValues(result).Inc()
}

// RecordPlanCacheWrite records a plan cache write outcome
func RecordPlanCacheWrite(status string) {
	PlanCacheWritesTotal.WithLabelValues(status).Inc()
}

// RecordSyncItem records the outcome of one drained item
func RecordSyncItem(result string) {
	SyncItemsTotal.WithLabelValues(result).Inc()
}

// RecordWorkerEvent records a dispatched event outcome
func RecordWorkerEvent(kind, status string) {
	WorkerEventsTotal.WithLabelValues(kind, status).Inc()
}
