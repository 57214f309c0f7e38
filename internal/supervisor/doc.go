// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

// Package supervisor builds the suture supervision tree that runs
// Benchtop's long-lived components.
//
// The tree has three layers: data (filesystem watcher), maintenance
// (cache sweeper and metrics publisher), and api (HTTP server). The
// layering isolates failures: a crashing watcher is restarted by its
// own supervisor without disturbing the API layer, which keeps serving
// cached results.
//
// Supervisor events are logged through sutureslog, bridged into the
// application's zerolog output via logging.NewSlogHandler.
package supervisor
