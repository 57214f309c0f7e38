// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// MockService is a test helper that implements suture.Service.
// It provides control over service behavior for testing supervisor wiring.
type MockService struct {
	name       string
	startCount atomic.Int32
	stopCount  atomic.Int32
	failCount  atomic.Int32
	maxFails   int32
	err        error
	mu         sync.Mutex
}

// NewMockService creates a new mock service for testing.
func NewMockService(name string) *MockService {
	return &MockService{name: name}
}

// Serve implements suture.Service.
func (m *MockService) Serve(ctx context.Context) error {
	m.startCount.Add(1)
	defer m.stopCount.Add(1)

	m.mu.Lock()
	err := m.err
	maxFails := m.maxFails
	m.mu.Unlock()

	// If a fail count is set, fail that many times before succeeding.
	if maxFails > 0 {
		current := m.failCount.Add(1)
		if current <= maxFails {
			return errors.New("simulated failure")
		}
	}

	if err != nil {
		return err
	}

	<-ctx.Done()
	return ctx.Err()
}

// String implements fmt.Stringer for logging.
func (m *MockService) String() string {
	return m.name
}

// SetError configures the service to return err from Serve.
func (m *MockService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetMaxFails configures the service to fail n times before running normally.
func (m *MockService) SetMaxFails(n int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxFails = n
}

// StartCount returns the number of times Serve has been called.
func (m *MockService) StartCount() int {
	return int(m.startCount.Load())
}

// StopCount returns the number of times Serve has returned.
func (m *MockService) StopCount() int {
	return int(m.stopCount.Load())
}
