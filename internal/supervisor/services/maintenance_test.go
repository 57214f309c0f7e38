// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (c *countingSweeper) RemoveExpired() int {
	c.calls.Add(1)
	return 3
}

type countingPublisher struct {
	calls atomic.Int32
}

func (c *countingPublisher) PublishMetrics() {
	c.calls.Add(1)
}

func TestMaintenanceServices_Interface(t *testing.T) {
	var _ suture.Service = (*SweeperService)(nil)
	var _ suture.Service = (*PublisherService)(nil)
}

func TestSweeperService_SweepsOnTick(t *testing.T) {
	sweeper := &countingSweeper{}
	svc := NewSweeperService(sweeper, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Serve(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for sweeper.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("sweeper ticked %d times, expected at least 2", sweeper.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeperService_DefaultInterval(t *testing.T) {
	svc := NewSweeperService(&countingSweeper{}, 0)
	if svc.interval != 5*time.Minute {
		t.Errorf("expected default interval 5m, got %v", svc.interval)
	}
	if svc.String() != "cache-sweeper" {
		t.Errorf("unexpected service name %q", svc.String())
	}
}

func TestPublisherService_PublishesImmediately(t *testing.T) {
	publisher := &countingPublisher{}
	svc := NewPublisherService(publisher, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Serve(ctx)
	}()

	deadline := time.After(time.Second)
	for publisher.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("publisher never published on startup")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}
}

func TestPublisherService_PublishesOnTick(t *testing.T) {
	publisher := &countingPublisher{}
	svc := NewPublisherService(publisher, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for publisher.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("publisher published %d times, expected at least 3", publisher.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNewPublisherService_DefaultInterval(t *testing.T) {
	svc := NewPublisherService(&countingPublisher{}, -time.Second)
	if svc.interval != 15*time.Second {
		t.Errorf("expected default interval 15s, got %v", svc.interval)
	}
	if svc.String() != "metrics-publisher" {
		t.Errorf("unexpected service name %q", svc.String())
	}
}
