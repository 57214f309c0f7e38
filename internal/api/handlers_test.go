// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/aharstad/benchtop/internal/cache"
	"github.com/aharstad/benchtop/internal/dataset"
)

// stubStore implements DatasetStore for handler tests.
type stubStore struct {
	history    *dataset.HistoryResult
	historyErr error
	table      *dataset.TableResult
	tableErr   error
	metricsLs  []string
	warm       *dataset.WarmResult
	warmErr    error
	warmNames  []string
	pingErr    error

	invalidated []string
	cleared     bool
}

func (s *stubStore) ResolveSource(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.HasPrefix(filepath.Clean(name), "..") {
		return "", fmt.Errorf("%w: %q", dataset.ErrOutsideDataDir, name)
	}
	return filepath.Join("/data/results", name), nil
}

func (s *stubStore) GetHistory(_ context.Context, source, metric string, limit int64) (*dataset.HistoryResult, error) {
	return s.history, s.historyErr
}

func (s *stubStore) GetTable(_ context.Context, source string, limit, offset int64) (*dataset.TableResult, error) {
	return s.table, s.tableErr
}

func (s *stubStore) Metrics(_ context.Context, source string) ([]string, error) {
	return s.metricsLs, nil
}

func (s *stubStore) Invalidate(source string) int {
	s.invalidated = append(s.invalidated, source)
	return 2
}

func (s *stubStore) Clear() int {
	s.cleared = true
	return 5
}

func (s *stubStore) Warm(_ context.Context, names []string) (*dataset.WarmResult, error) {
	s.warmNames = names
	return s.warm, s.warmErr
}

func (s *stubStore) Report() map[string]dataset.CacheReport {
	return map[string]dataset.CacheReport{
		"history": {Stats: cache.Stats{Hits: 3, Misses: 1}, Info: cache.Info{Items: 1}},
		"table":   {Stats: cache.Stats{}, Info: cache.Info{}},
	}
}

func (s *stubStore) Ping(_ context.Context) error {
	return s.pingErr
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) *APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return &resp
}

func TestHistory_Success(t *testing.T) {
	store := &stubStore{
		history: &dataset.HistoryResult{
			Source:      "/data/results/run.parquet",
			Metric:      "loss",
			Points:      []dataset.MetricPoint{{Step: 1, Value: 0.9}},
			GeneratedAt: time.Now().UTC(),
		},
	}
	h := NewHandler(store)

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history?source=run.parquet&metric=loss", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if resp.Status != "success" {
		t.Errorf("Expected success status, got %q", resp.Status)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected JSON content type, got %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("Expected ETag header")
	}
}

func TestHistory_MissingMetric(t *testing.T) {
	h := NewHandler(&stubStore{})

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history?source=run.parquet", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("Expected VALIDATION_ERROR, got %+v", resp.Error)
	}
}

func TestHistory_TraversalRejected(t *testing.T) {
	h := NewHandler(&stubStore{})

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/history?source=../../etc/passwd&metric=loss", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != "INVALID_SOURCE" {
		t.Errorf("Expected INVALID_SOURCE, got %+v", resp.Error)
	}
}

func TestHistory_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantAPI  string
	}{
		{"invalid metric", fmt.Errorf("wrap: %w", dataset.ErrInvalidMetric), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unsupported format", fmt.Errorf("wrap: %w", dataset.ErrUnsupportedFormat), http.StatusBadRequest, "UNSUPPORTED_FORMAT"},
		{"missing file", fmt.Errorf("wrap: %w", os.ErrNotExist), http.StatusNotFound, "SOURCE_NOT_FOUND"},
		{"canceled", context.Canceled, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"other", fmt.Errorf("duckdb exploded"), http.StatusInternalServerError, "QUERY_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&stubStore{historyErr: tt.err})
			rec := httptest.NewRecorder()
			h.History(rec, httptest.NewRequest(http.MethodGet,
				"/api/v1/history?source=run.parquet&metric=loss", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Expected %d, got %d", tt.wantCode, rec.Code)
			}
			resp := decodeEnvelope(t, rec)
			if resp.Error == nil || resp.Error.Code != tt.wantAPI {
				t.Errorf("Expected %s, got %+v", tt.wantAPI, resp.Error)
			}
		})
	}
}

func TestTable_Success(t *testing.T) {
	store := &stubStore{
		table: &dataset.TableResult{
			Source:  "/data/results/run.csv",
			Columns: []string{"step", "loss"},
			Rows:    [][]any{{int64(1), 0.9}},
		},
	}
	h := NewHandler(store)

	rec := httptest.NewRecorder()
	h.Table(rec, httptest.NewRequest(http.MethodGet, "/api/v1/table?source=run.csv&limit=10&offset=5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTable_NegativeOffsetRejected(t *testing.T) {
	h := NewHandler(&stubStore{})

	rec := httptest.NewRecorder()
	h.Table(rec, httptest.NewRequest(http.MethodGet, "/api/v1/table?source=run.csv&offset=-3", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative offset, got %d", rec.Code)
	}
}

func TestHistoryMetrics(t *testing.T) {
	h := NewHandler(&stubStore{metricsLs: []string{"loss", "accuracy"}})

	rec := httptest.NewRecorder()
	h.HistoryMetrics(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history/metrics?source=run.csv", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"accuracy"`) {
		t.Errorf("Expected metric names in body, got %s", rec.Body.String())
	}
}

func TestCacheStats(t *testing.T) {
	h := NewHandler(&stubStore{})

	rec := httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`"history"`, `"table"`, `"hits":3`} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %s in stats body, got %s", want, body)
		}
	}
}

func TestCacheClear_All(t *testing.T) {
	store := &stubStore{}
	h := NewHandler(store)

	rec := httptest.NewRecorder()
	h.CacheClear(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/clear", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !store.cleared {
		t.Error("Expected full clear")
	}
	if !strings.Contains(rec.Body.String(), `"removed":5`) {
		t.Errorf("Expected removed count, got %s", rec.Body.String())
	}
}

func TestCacheClear_Scoped(t *testing.T) {
	store := &stubStore{}
	h := NewHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cache/clear",
		strings.NewReader(`{"source":"run.parquet"}`))
	rec := httptest.NewRecorder()
	h.CacheClear(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.cleared {
		t.Error("Expected scoped clear, not full clear")
	}
	if len(store.invalidated) != 1 || !strings.HasSuffix(store.invalidated[0], "run.parquet") {
		t.Errorf("Expected run.parquet invalidated, got %v", store.invalidated)
	}
}

func TestCacheClear_MalformedBody(t *testing.T) {
	h := NewHandler(&stubStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cache/clear", strings.NewReader(`{nope`))
	rec := httptest.NewRecorder()
	h.CacheClear(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestCacheWarm(t *testing.T) {
	store := &stubStore{warm: &dataset.WarmResult{Sources: 4, Loaded: 3, Failed: 1}}
	h := NewHandler(store)

	rec := httptest.NewRecorder()
	h.CacheWarm(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/warm", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"loaded":3`) {
		t.Errorf("Expected warm result in body, got %s", rec.Body.String())
	}
	if store.warmNames != nil {
		t.Errorf("Expected full-directory warm for empty body, got %v", store.warmNames)
	}
}

func TestCacheWarm_ScopedToNamedSources(t *testing.T) {
	store := &stubStore{warm: &dataset.WarmResult{Sources: 2, Loaded: 2}}
	h := NewHandler(store)

	body := strings.NewReader(`{"sources":["run1.parquet","run2.csv"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cache/warm", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.CacheWarm(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	want := []string{"run1.parquet", "run2.csv"}
	if len(store.warmNames) != len(want) || store.warmNames[0] != want[0] || store.warmNames[1] != want[1] {
		t.Errorf("Expected warm scoped to %v, got %v", want, store.warmNames)
	}
}

func TestCacheWarm_MalformedBody(t *testing.T) {
	h := NewHandler(&stubStore{warm: &dataset.WarmResult{}})

	body := strings.NewReader(`{"sources": "not-a-list"`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cache/warm", body)
	rec := httptest.NewRecorder()
	h.CacheWarm(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestHealthLive(t *testing.T) {
	h := NewHandler(&stubStore{})

	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestHealthReady(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		h := NewHandler(&stubStore{})
		rec := httptest.NewRecorder()
		h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})

	t.Run("database down", func(t *testing.T) {
		h := NewHandler(&stubStore{pingErr: fmt.Errorf("connection refused")})
		rec := httptest.NewRecorder()
		h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", rec.Code)
		}
	})
}
