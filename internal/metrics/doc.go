// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus client
library, exposing metrics for the result cache, the DuckDB loaders behind it,
the HTTP API, and dataset maintenance (watcher invalidation and warming).

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8713/metrics

# Available Metrics

Cache Metrics (label: cache = history | table):
  - cache_hits_total: Lookups served from memory (counter)
  - cache_misses_total: Lookups that invoked a loader (counter)
  - cache_evictions_total: Entries removed under capacity pressure (counter)
  - cache_invalidations_total: Entries removed by TTL, staleness, or
    explicit invalidation (counter)
  - cache_entries, cache_size_bytes: Current occupancy (gauges)
  - cache_hit_rate, cache_utilization: Efficiency snapshots (gauges)

Counters are synced from the store's own monotonic totals by a periodic
publisher service; between syncs the /metrics output lags the store by at
most one publish interval.

Loader Metrics (label: loader = history | table):
  - loader_duration_seconds: Cache-miss load latency (histogram)
  - loader_errors_total: Failed loads (counter)
    Labels: loader, error_type

API Metrics:
  - api_requests_total: Total requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
  - api_active_requests: In-flight requests (gauge)
  - api_rate_limit_hits_total: Rate limit rejections (counter)

Dataset Maintenance:
  - watcher_events_total: Filesystem events on the data directory (counter)
  - watcher_invalidations_total: Entries invalidated by the watcher (counter)
  - warm_duration_seconds, warm_sources_loaded_total, warm_errors_total

# Usage

Record a loader outcome:

	start := time.Now()
	result, err := loader(ctx, source, params)
	metrics.RecordLoad("history", time.Since(start), err)

Publish cache counters (done periodically by the metrics publisher service):

	metrics.SyncCache("history", store.Stats(), store.Info())
*/
package metrics
