// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package services

import (
	"context"
	"time"

	"github.com/aharstad/benchtop/internal/logging"
)

// ExpirySweeper removes expired cache entries and reports how many
// were dropped. Satisfied by *dataset.Store.
type ExpirySweeper interface {
	RemoveExpired() int
}

// SweeperService periodically evicts expired entries from the result
// caches. Expired entries are also dropped lazily on access; the sweep
// reclaims memory held by entries nothing is reading anymore.
type SweeperService struct {
	sweeper  ExpirySweeper
	interval time.Duration
	name     string
}

// NewSweeperService creates a sweeper that runs every interval.
func NewSweeperService(sweeper ExpirySweeper, interval time.Duration) *SweeperService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SweeperService{
		sweeper:  sweeper,
		interval: interval,
		name:     "cache-sweeper",
	}
}

// Serve implements suture.Service. It blocks until the context is
// canceled, sweeping on each tick.
func (s *SweeperService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed := s.sweeper.RemoveExpired()
			if removed > 0 {
				logging.Debug().
					Int("removed", removed).
					Msg("Swept expired cache entries")
			}
		}
	}
}

// String implements fmt.Stringer for logging.
func (s *SweeperService) String() string {
	return s.name
}

// MetricsPublisher pushes current cache counters and gauges to the
// metrics registry. Satisfied by *dataset.Store.
type MetricsPublisher interface {
	PublishMetrics()
}

// PublisherService periodically publishes cache statistics as
// Prometheus metrics. The caches track their own totals; this service
// copies them into the registry so scrapes see values at most one
// interval old.
type PublisherService struct {
	publisher MetricsPublisher
	interval  time.Duration
	name      string
}

// NewPublisherService creates a publisher that runs every interval.
func NewPublisherService(publisher MetricsPublisher, interval time.Duration) *PublisherService {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &PublisherService{
		publisher: publisher,
		interval:  interval,
		name:      "metrics-publisher",
	}
}

// Serve implements suture.Service. It publishes once immediately so
// metrics are populated right after startup, then on each tick.
func (p *PublisherService) Serve(ctx context.Context) error {
	p.publisher.PublishMetrics()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.publisher.PublishMetrics()
		}
	}
}

// String implements fmt.Stringer for logging.
func (p *PublisherService) String() string {
	return p.name
}
