// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package cache

// Sizer is implemented by values that can report their approximate in-memory
// footprint. Columnar results (histories, measurement tables) implement it;
// values that don't are accounted at DefaultEntrySize.
type Sizer interface {
	SizeBytes() int64
}

// DefaultEntrySize is the conservative per-entry estimate used when a value
// offers no size hint. Erring high keeps byte-capacity accounting sound: the
// cache may evict early, but never blows past its budget because a value
// under-reported.
const DefaultEntrySize int64 = 64 << 10 // 64 KiB

// estimateSize returns the byte-size estimate for a value. Estimation never
// fails: a missing or invalid hint degrades to DefaultEntrySize.
func estimateSize(value any) int64 {
	switch v := value.(type) {
	case Sizer:
		if n := v.SizeBytes(); n >= 0 {
			return n
		}
	case []byte:
		return int64(len(v))
	case string:
		return int64(len(v))
	}
	return DefaultEntrySize
}
