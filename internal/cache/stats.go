// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package cache

// Stats holds the store's cumulative counters. All four are monotonically
// non-decreasing for the lifetime of the store. Exactly one of Hits or Misses
// is incremented per GetOrLoad call; Evictions counts capacity-driven
// removals and Invalidations counts staleness- or request-driven removals.
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Evictions     int64 `json:"evictions"`
	Invalidations int64 `json:"invalidations"`
}

// HitRate returns Hits / (Hits + Misses), or 0 when no lookups have occurred.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total)
}

// Info is a point-in-time snapshot of cache occupancy against its configured
// limits, for operational introspection.
type Info struct {
	Items        int     `json:"items"`
	SizeBytes    int64   `json:"size_bytes"`
	MaxItems     int     `json:"max_items"`
	MaxSizeBytes int64   `json:"max_size_bytes"`
	TTLSeconds   float64 `json:"ttl_seconds"`
	Utilization  float64 `json:"utilization"`
}

// utilization computes the fraction of the byte budget in use, falling back
// to the item budget when no byte limit is configured.
func utilization(items int, sizeBytes int64, maxItems int, maxSizeBytes int64) float64 {
	if maxSizeBytes > 0 {
		return float64(sizeBytes) / float64(maxSizeBytes)
	}
	if maxItems > 0 {
		return float64(items) / float64(maxItems)
	}
	return 0.0
}
