// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package dataset

import "time"

// MetricPoint is one observation of a metric at a training/evaluation step.
type MetricPoint struct {
	Step  int64   `json:"step"`
	Value float64 `json:"value"`
}

// HistoryResult is the ordered series of one metric column from a result
// file, as returned by a history query.
type HistoryResult struct {
	Source      string        `json:"source"`
	Metric      string        `json:"metric"`
	Points      []MetricPoint `json:"points"`
	Truncated   bool          `json:"truncated"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// SizeBytes reports the approximate in-memory footprint for cache
// accounting.
func (r *HistoryResult) SizeBytes() int64 {
	// 16 bytes per point plus headers and the identifying strings.
	return int64(len(r.Points))*16 + int64(len(r.Source)+len(r.Metric)) + 96
}

// TableResult is a row window over a result file: column names plus up to
// Limit rows starting at Offset.
type TableResult struct {
	Source      string    `json:"source"`
	Columns     []string  `json:"columns"`
	Rows        [][]any   `json:"rows"`
	Offset      int64     `json:"offset"`
	Truncated   bool      `json:"truncated"`
	GeneratedAt time.Time `json:"generated_at"`
}

// SizeBytes reports the approximate in-memory footprint for cache
// accounting. Strings count their length; other cell types are costed at
// one machine word plus interface header.
func (r *TableResult) SizeBytes() int64 {
	size := int64(len(r.Source)) + 96
	for _, c := range r.Columns {
		size += int64(len(c)) + 16
	}
	for _, row := range r.Rows {
		size += 24 // slice header
		for _, cell := range row {
			if s, ok := cell.(string); ok {
				size += int64(len(s)) + 16
			} else {
				size += 16
			}
		}
	}
	return size
}
