// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

/*
Package dataset serves analytical queries over experiment result files and
caches the answers.

Result files live in a flat data directory as Parquet or CSV. Two query
shapes are supported:

  - History: the per-step series of a single metric column, ordered by step.
  - Table: a raw row window over the file (columns plus a LIMIT/OFFSET slice).

Both run through DuckDB's file readers (read_parquet, read_csv_auto) against
an in-memory database, so nothing is ingested ahead of time; the result files
themselves are the store of record.

Scans are expensive relative to the lookups that follow them, so every
result is cached in a bounded in-memory store (internal/cache) keyed by
source file and query parameters, with freshness pinned to the file's
modification time and size. Three things remove a cached result: its TTL,
the source file changing on disk (detected by stat probe on access and by
the fsnotify Watcher between accesses), and explicit invalidation through
the API.

Warm pre-populates the table cache by scanning every result file in the
data directory, throttled by a rate limiter so a large directory does not
monopolize DuckDB at startup.
*/
package dataset
