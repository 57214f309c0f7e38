// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aharstad/benchtop/internal/cache"
)

// Prometheus instrumentation for:
// - Result cache efficiency (hits, misses, evictions, invalidations)
// - Loader latency (DuckDB scans over result files)
// - API endpoint latency and throughput
// - Dataset watcher and warm operations

var (
	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of result cache hits",
		},
		[]string{"cache"}, // "history", "table"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of result cache misses",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of entries evicted under capacity pressure",
		},
		[]string{"cache"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Total number of entries removed by TTL, staleness, or explicit invalidation",
		},
		[]string{"cache"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache"},
	)

	CacheSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_size_bytes",
			Help: "Current estimated size of cached entries in bytes",
		},
		[]string{"cache"},
	)

	CacheHitRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_hit_rate",
			Help: "Hit rate since process start (hits / (hits + misses))",
		},
		[]string{"cache"},
	)

	CacheUtilization = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_utilization",
			Help: "Fraction of the binding capacity limit in use (0-1)",
		},
		[]string{"cache"},
	)

	// Loader Metrics
	LoaderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loader_duration_seconds",
			Help:    "Duration of cache-miss loads in seconds",
			Buckets: prometheus.DefBuckets, // 0.005s, 0.01s, 0.025s, 0.05s, 0.1s, 0.25s, 0.5s, 1s, 2.5s, 5s, 10s
		},
		[]string{"loader"}, // "history", "table"
	)

	LoaderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loader_errors_total",
			Help: "Total number of failed cache-miss loads",
		},
		[]string{"loader", "error_type"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Dataset Watcher Metrics
	WatcherEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_events_total",
			Help: "Total number of filesystem events observed on the data directory",
		},
		[]string{"op"}, // "create", "write", "remove", "rename"
	)

	WatcherInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_invalidations_total",
			Help: "Total number of cache entries invalidated by the filesystem watcher",
		},
	)

	// Warm Operation Metrics
	WarmDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warm_duration_seconds",
			Help:    "Duration of cache warm operations in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120}, // warming a directory can take minutes
		},
	)

	WarmSourcesLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warm_sources_loaded_total",
			Help: "Total number of sources loaded during warm operations",
		},
	)

	WarmErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warm_errors_total",
			Help: "Total number of sources that failed to load during warm operations",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordLoad records the outcome of a cache-miss load.
func RecordLoad(loader string, duration time.Duration, err error) {
	LoaderDuration.WithLabelValues(loader).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		LoaderErrors.WithLabelValues(loader, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordWatcherEvent records a filesystem event and the entries it invalidated.
func RecordWatcherEvent(op string, invalidated int) {
	WatcherEvents.WithLabelValues(op).Inc()
	if invalidated > 0 {
		WatcherInvalidations.Add(float64(invalidated))
	}
}

// RecordWarm records a completed warm operation.
func RecordWarm(duration time.Duration, loaded, failed int) {
	WarmDuration.Observe(duration.Seconds())
	WarmSourcesLoaded.Add(float64(loaded))
	if failed > 0 {
		WarmErrors.Add(float64(failed))
	}
}

// lastSynced remembers the store totals already pushed into the prometheus
// counters, keyed by cache name. Store counters are monotonic, so each sync
// only needs to add the delta.
var (
	lastSyncedMu sync.Mutex
	lastSynced   = make(map[string]cache.Stats)
)

// SyncCache publishes a cache's counters and gauges under the given label.
func SyncCache(name string, stats cache.Stats, info cache.Info) {
	CacheEntries.WithLabelValues(name).Set(float64(info.Items))
	CacheSizeBytes.WithLabelValues(name).Set(float64(info.SizeBytes))
	CacheHitRate.WithLabelValues(name).Set(stats.HitRate())
	CacheUtilization.WithLabelValues(name).Set(info.Utilization)

	lastSyncedMu.Lock()
	prev := lastSynced[name]
	lastSynced[name] = stats
	lastSyncedMu.Unlock()

	addDelta(CacheHits.WithLabelValues(name), stats.Hits, prev.Hits)
	addDelta(CacheMisses.WithLabelValues(name), stats.Misses, prev.Misses)
	addDelta(CacheEvictions.WithLabelValues(name), stats.Evictions, prev.Evictions)
	addDelta(CacheInvalidations.WithLabelValues(name), stats.Invalidations, prev.Invalidations)
}

func addDelta(c prometheus.Counter, total, prev int64) {
	if total > prev {
		c.Add(float64(total - prev))
	}
}
