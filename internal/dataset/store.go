// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/aharstad/benchtop/internal/cache"
	"github.com/aharstad/benchtop/internal/config"
	"github.com/aharstad/benchtop/internal/logging"
	"github.com/aharstad/benchtop/internal/metrics"
)

// Query limits. Requests above the max are clamped, not rejected.
const (
	DefaultHistoryLimit = 10000
	MaxHistoryLimit     = 100000
	DefaultTableLimit   = 100
	MaxTableLimit       = 10000
)

// ErrOutsideDataDir is returned when a requested source resolves outside
// the configured data directory.
var ErrOutsideDataDir = errors.New("source is outside the data directory")

// Store answers history and table queries, serving repeats from two bounded
// caches that share the data directory's files as sources.
type Store struct {
	db      *DB
	dataDir string
	history *cache.Store[*HistoryResult]
	tables  *cache.Store[*TableResult]
	limiter *rate.Limiter
}

// NewStore opens the scanning database and builds the caches from
// configuration. The byte budget is split evenly between the two caches.
func NewStore(cfg *config.Config) (*Store, error) {
	dataDir, err := filepath.Abs(cfg.Data.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if info, err := os.Stat(dataDir); err != nil {
		return nil, fmt.Errorf("data directory %s: %w", dataDir, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", dataDir)
	}

	db, err := OpenDB(cfg.Data.Threads, cfg.Data.MaxMemory)
	if err != nil {
		return nil, err
	}

	cacheCfg := cache.Config{
		TTL:          cfg.Cache.TTL(),
		MaxItems:     cfg.Cache.MaxItems,
		MaxSizeBytes: cfg.Cache.MaxSizeBytes / 2,
		Probe:        cache.FileProbe,
	}

	s := &Store{
		db:      db,
		dataDir: dataDir,
		history: cache.New[*HistoryResult](cacheCfg),
		tables:  cache.New[*TableResult](cacheCfg),
		limiter: rate.NewLimiter(rate.Limit(cfg.Cache.WarmRatePerSec), cfg.Cache.WarmBurst),
	}

	logging.Info().
		Str("data_dir", dataDir).
		Dur("ttl", cacheCfg.TTL).
		Int("max_items", cacheCfg.MaxItems).
		Int64("max_size_bytes", cacheCfg.MaxSizeBytes).
		Msg("Dataset store initialized")

	return s, nil
}

// Close releases the scanning database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the scanning database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// DataDir returns the absolute path of the result file directory.
func (s *Store) DataDir() string {
	return s.dataDir
}

// ResolveSource turns a request-supplied source name into an absolute path
// under the data directory. Absolute paths and traversal outside the
// directory are rejected.
func (s *Store) ResolveSource(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrOutsideDataDir, name)
	}
	cleaned := filepath.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideDataDir, name)
	}
	return filepath.Join(s.dataDir, cleaned), nil
}

// GetHistory returns the cached metric series for a result file, scanning
// it on a miss. limit <= 0 applies the default.
func (s *Store) GetHistory(ctx context.Context, source, metric string, limit int64) (*HistoryResult, error) {
	limit = clampLimit(limit, DefaultHistoryLimit, MaxHistoryLimit)

	params := cache.Params{
		"metric": metric,
		"limit":  strconv.FormatInt(limit, 10),
	}

	return s.history.GetOrLoad(ctx, source, params, s.loadHistory)
}

// loadHistory is the cache.Loader for the history cache. Query parameters
// travel through the params map so the cache key and the scan can never
// disagree.
func (s *Store) loadHistory(ctx context.Context, source string, params cache.Params) (*HistoryResult, error) {
	limit, err := strconv.ParseInt(params["limit"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed limit parameter: %w", err)
	}
	return s.db.LoadHistory(ctx, source, params["metric"], limit)
}

// GetTable returns the cached row window for a result file, scanning it on
// a miss. limit <= 0 applies the default; offset < 0 is treated as 0.
func (s *Store) GetTable(ctx context.Context, source string, limit, offset int64) (*TableResult, error) {
	limit = clampLimit(limit, DefaultTableLimit, MaxTableLimit)
	if offset < 0 {
		offset = 0
	}

	params := cache.Params{
		"limit":  strconv.FormatInt(limit, 10),
		"offset": strconv.FormatInt(offset, 10),
	}

	return s.tables.GetOrLoad(ctx, source, params, s.loadTable)
}

func (s *Store) loadTable(ctx context.Context, source string, params cache.Params) (*TableResult, error) {
	limit, err := strconv.ParseInt(params["limit"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed limit parameter: %w", err)
	}
	offset, err := strconv.ParseInt(params["offset"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed offset parameter: %w", err)
	}
	return s.db.LoadTable(ctx, source, limit, offset)
}

// Metrics lists the numeric columns of a result file. Discovery is cheap
// relative to a full scan and is not cached.
func (s *Store) Metrics(ctx context.Context, source string) ([]string, error) {
	return s.db.Metrics(ctx, source)
}

// Invalidate removes every cached result derived from the given source
// file, across both caches, and returns the number of entries removed.
func (s *Store) Invalidate(source string) int {
	n := s.history.Invalidate(source) + s.tables.Invalidate(source)
	if n > 0 {
		logging.Debug().Str("source", source).Int("removed", n).Msg("Invalidated cached results")
	}
	return n
}

// Clear empties both caches and returns the number of entries removed.
func (s *Store) Clear() int {
	return s.history.InvalidateAll() + s.tables.InvalidateAll()
}

// RemoveExpired sweeps TTL-expired entries from both caches.
func (s *Store) RemoveExpired() int {
	return s.history.RemoveExpired() + s.tables.RemoveExpired()
}

// CacheReport is the stats snapshot for one cache, as exposed by the API.
type CacheReport struct {
	Stats cache.Stats `json:"stats"`
	Info  cache.Info  `json:"info"`
}

// Report returns per-cache statistics keyed by cache name.
func (s *Store) Report() map[string]CacheReport {
	return map[string]CacheReport{
		"history": {Stats: s.history.Stats(), Info: s.history.Info()},
		"table":   {Stats: s.tables.Stats(), Info: s.tables.Info()},
	}
}

// PublishMetrics pushes both caches' counters into the prometheus registry.
func (s *Store) PublishMetrics() {
	metrics.SyncCache("history", s.history.Stats(), s.history.Info())
	metrics.SyncCache("table", s.tables.Stats(), s.tables.Info())
}

// WarmResult summarizes a Warm pass.
type WarmResult struct {
	Sources int      `json:"sources"`
	Loaded  int      `json:"loaded"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Warm pre-populates the table cache with the head of the named result
// files, or of every result file in the data directory when names is empty.
// Loads are throttled by the warm rate limiter; a canceled context stops the
// pass early. Per-file failures, including names that resolve outside the
// data directory, are collected rather than aborting the pass.
func (s *Store) Warm(ctx context.Context, names []string) (*WarmResult, error) {
	start := time.Now()

	var sources []string
	result := &WarmResult{}
	if len(names) == 0 {
		var err error
		if sources, err = s.listSources(); err != nil {
			return nil, err
		}
	} else {
		for _, name := range names {
			source, err := s.ResolveSource(name)
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
				continue
			}
			sources = append(sources, source)
		}
	}

	result.Sources = len(sources) + result.Failed
	for _, source := range sources {
		if err := s.limiter.Wait(ctx); err != nil {
			return result, err
		}
		if _, err := s.GetTable(ctx, source, DefaultTableLimit, 0); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", filepath.Base(source), err))
			continue
		}
		result.Loaded++
	}

	metrics.RecordWarm(time.Since(start), result.Loaded, result.Failed)
	logging.Info().
		Int("sources", result.Sources).
		Int("loaded", result.Loaded).
		Int("failed", result.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("Cache warm completed")

	return result, nil
}

// listSources returns the absolute paths of all readable result files under
// the data directory.
func (s *Store) listSources() ([]string, error) {
	var sources []string
	err := filepath.WalkDir(s.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.dataDir {
				return err
			}
			return nil // skip unreadable subdirectories
		}
		if d.IsDir() {
			if path != s.dataDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if isResultFile(path) {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list result files: %w", err)
	}
	return sources, nil
}

// isResultFile reports whether a path has a scannable extension.
func isResultFile(path string) bool {
	_, err := readerFor(path)
	return err == nil
}

func clampLimit(limit, def, max int64) int64 {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
