// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

// Package api provides the HTTP surface: history and table queries, cache
// introspection and control, health probes, and the Prometheus exporter.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aharstad/benchtop/internal/config"
	"github.com/aharstad/benchtop/internal/metrics"
	"github.com/aharstad/benchtop/internal/middleware"
)

// Router assembles the HTTP handler tree.
type Router struct {
	cfg     *config.Config
	handler *Handler
	tokens  *middleware.TokenManager
}

// NewRouter wires handlers and middleware from configuration. tokens may be
// nil when auth is disabled.
func NewRouter(cfg *config.Config, store DatasetStore, tokens *middleware.TokenManager) *Router {
	return &Router{
		cfg:     cfg,
		handler: NewHandler(store),
		tokens:  tokens,
	}
}

// Setup builds the chi handler tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints get permissive rate limiting so monitors can poll
	// freely without opening an abuse channel.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, rt.cfg.Server.RateLimitWindow))
		r.Get("/live", rt.handler.HealthLive)
		r.Get("/ready", rt.handler.HealthReady)
	})

	// Query and cache endpoints share the configured rate limit.
	r.Route("/api/v1", func(r chi.Router) {
		if !rt.cfg.Server.RateLimitDisabled {
			r.Use(httprate.Limit(
				rt.cfg.Server.RateLimitReqs,
				rt.cfg.Server.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(rateLimitExceeded),
			))
		}
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.Compression)

		r.Get("/history", rt.handler.History)
		r.Get("/history/metrics", rt.handler.HistoryMetrics)
		r.Get("/table", rt.handler.Table)
		r.Get("/cache/stats", rt.handler.CacheStats)

		// Mutating endpoints require a bearer token when auth is enabled.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireToken(rt.tokens))
			r.Post("/cache/clear", rt.handler.CacheClear)
			r.Post("/cache/warm", rt.handler.CacheWarm)
		})
	})

	// Prometheus exporter, outside the API rate limit.
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// rateLimitExceeded records the rejection before answering 429.
func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	metrics.APIRateLimitHits.WithLabelValues(r.URL.Path).Inc()
	respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests", nil)
}
