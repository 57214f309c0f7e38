// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

// Package cache implements the bounded compute/load cache at the heart of
// Benchtop: a thread-safe in-memory store that memoizes the result of an
// expensive load, keyed by a source identifier plus the parameters that
// influenced the result.
//
// Three invalidation mechanisms operate independently:
//
//   - Absolute time-to-live: entries older than the configured TTL are
//     removed and reloaded on the next access.
//   - Source freshness: each entry carries a Token (modification time and
//     size) captured at load time; when the live source's token differs at
//     lookup time, the entry is removed and reloaded.
//   - Manual invalidation: Invalidate and InvalidateAll force removal, for
//     mutations the freshness probe cannot observe.
//
// Two bounds are enforced by least-recently-used eviction: a hard cap on
// entry count and a hard cap on the summed size estimate of all entries.
// Either bound set to zero disables caching entirely (every insertion is
// immediately evicted).
//
// Concurrency: a single mutex protects the entry map and the statistics
// counters. The mutex is never held across a loader invocation, so a slow
// load blocks only its caller. The trade-off is that two goroutines missing
// on the same cold key may both invoke the loader; the second insertion wins
// and both callers receive a valid value. Callers must treat returned values
// as shared and immutable.
package cache
