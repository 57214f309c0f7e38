// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

// Package services provides suture.Service wrappers for Benchtop's
// long-running components: the HTTP server, the cache sweeper, and the
// metrics publisher. Each wrapper adapts its component to suture's
// context-aware Serve pattern so the supervisor tree can restart it on
// failure.
package services
