// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/aharstad/benchtop/internal/dataset"
	"github.com/aharstad/benchtop/internal/logging"
)

// DatasetStore is the slice of *dataset.Store the handlers use. Narrowed to
// an interface so handler tests can run against a stub.
type DatasetStore interface {
	ResolveSource(name string) (string, error)
	GetHistory(ctx context.Context, source, metric string, limit int64) (*dataset.HistoryResult, error)
	GetTable(ctx context.Context, source string, limit, offset int64) (*dataset.TableResult, error)
	Metrics(ctx context.Context, source string) ([]string, error)
	Invalidate(source string) int
	Clear() int
	Warm(ctx context.Context, names []string) (*dataset.WarmResult, error)
	Report() map[string]dataset.CacheReport
	Ping(ctx context.Context) error
}

// Handler carries the dependencies of the HTTP endpoints.
type Handler struct {
	store DatasetStore
}

// NewHandler builds the endpoint handler set.
func NewHandler(store DatasetStore) *Handler {
	return &Handler{store: store}
}

// HistoryRequest bounds the history query parameters.
type HistoryRequest struct {
	Source string `validate:"required,max=512"`
	Metric string `validate:"required,max=128"`
	Limit  int64  `validate:"min=0,max=100000"`
}

// History serves GET /api/v1/history?source=&metric=&limit=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	req := HistoryRequest{
		Source: r.URL.Query().Get("source"),
		Metric: r.URL.Query().Get("metric"),
		Limit:  getInt64Param(r, "limit", 0),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	source, ok := h.resolve(w, req.Source)
	if !ok {
		return
	}

	start := time.Now()
	result, err := h.store.GetHistory(r.Context(), source, req.Metric, req.Limit)
	if err != nil {
		h.respondQueryError(w, r, err)
		return
	}

	respondData(w, result, time.Since(start))
}

// TableRequest bounds the table query parameters.
type TableRequest struct {
	Source string `validate:"required,max=512"`
	Limit  int64  `validate:"min=0,max=10000"`
	Offset int64  `validate:"min=0"`
}

// Table serves GET /api/v1/table?source=&limit=&offset=.
func (h *Handler) Table(w http.ResponseWriter, r *http.Request) {
	req := TableRequest{
		Source: r.URL.Query().Get("source"),
		Limit:  getInt64Param(r, "limit", 0),
		Offset: getInt64Param(r, "offset", 0),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	source, ok := h.resolve(w, req.Source)
	if !ok {
		return
	}

	start := time.Now()
	result, err := h.store.GetTable(r.Context(), source, req.Limit, req.Offset)
	if err != nil {
		h.respondQueryError(w, r, err)
		return
	}

	respondData(w, result, time.Since(start))
}

// HistoryMetrics serves GET /api/v1/history/metrics?source=, listing the
// numeric columns a history query can ask for.
func (h *Handler) HistoryMetrics(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("source")
	if name == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Source is required", nil)
		return
	}

	source, ok := h.resolve(w, name)
	if !ok {
		return
	}

	start := time.Now()
	names, err := h.store.Metrics(r.Context(), source)
	if err != nil {
		h.respondQueryError(w, r, err)
		return
	}

	respondData(w, map[string]interface{}{"source": name, "metrics": names}, time.Since(start))
}

// CacheStats serves GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	respondData(w, h.store.Report(), 0)
}

// ClearRequest scopes a cache clear to one source when Source is set.
type ClearRequest struct {
	Source string `json:"source" validate:"omitempty,max=512"`
}

// CacheClear serves POST /api/v1/cache/clear. An empty body or empty source
// clears everything; a source clears only that file's entries.
func (h *Handler) CacheClear(w http.ResponseWriter, r *http.Request) {
	var req ClearRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSONBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed request body", err)
			return
		}
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	var removed int
	if req.Source != "" {
		source, ok := h.resolve(w, req.Source)
		if !ok {
			return
		}
		removed = h.store.Invalidate(source)
	} else {
		removed = h.store.Clear()
	}

	logging.Ctx(r.Context()).Info().
		Str("source", sanitizeLogValue(req.Source)).
		Int("removed", removed).
		Msg("Cache cleared via API")

	respondData(w, map[string]int{"removed": removed}, 0)
}

// WarmRequest optionally narrows a warm pass to the named sources.
type WarmRequest struct {
	Sources []string `json:"sources" validate:"omitempty,max=256,dive,max=512"`
}

// CacheWarm serves POST /api/v1/cache/warm, scanning result files into the
// table cache: the sources named in the body, or every file in the data
// directory when the body is empty. The pass is bounded by the server
// timeout through the request context.
func (h *Handler) CacheWarm(w http.ResponseWriter, r *http.Request) {
	var req WarmRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSONBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed request body", err)
			return
		}
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	start := time.Now()
	result, err := h.store.Warm(r.Context(), req.Sources)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Cache warm failed", err)
		return
	}
	respondData(w, result, time.Since(start))
}

// HealthLive serves GET /api/v1/health/live. Process-up check only.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, map[string]string{"status": "alive"}, 0)
}

// HealthReady serves GET /api/v1/health/ready. Verifies the scan database
// answers before reporting ready.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Scan database is not responding", err)
		return
	}
	respondData(w, map[string]string{"status": "ready"}, 0)
}

// resolve maps a request source name to an absolute path, writing the error
// response itself on failure.
func (h *Handler) resolve(w http.ResponseWriter, name string) (string, bool) {
	source, err := h.store.ResolveSource(name)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_SOURCE",
			"Source must be a relative path inside the data directory", err)
		return "", false
	}
	return source, true
}

// respondQueryError maps store errors to HTTP statuses.
func (h *Handler) respondQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dataset.ErrInvalidMetric):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Metric must be a plain column name", err)
	case errors.Is(err, dataset.ErrUnsupportedFormat):
		respondError(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Source file format is not supported", err)
	case errors.Is(err, os.ErrNotExist):
		respondError(w, http.StatusNotFound, "SOURCE_NOT_FOUND", "Source file does not exist", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Query canceled", err)
	default:
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Query failed", err)
	}
}
