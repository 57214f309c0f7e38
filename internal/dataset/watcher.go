// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package dataset

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/aharstad/benchtop/internal/logging"
	"github.com/aharstad/benchtop/internal/metrics"
)

// Invalidator is the slice of the dataset store the watcher needs.
type Invalidator interface {
	DataDir() string
	Invalidate(source string) int
}

// Watcher invalidates cached results when their source files change on
// disk. It complements the stat probe on cache access: the probe catches
// changes at read time, the watcher evicts stale results that nobody is
// reading.
//
// Watcher implements suture.Service; the filesystem watch is created inside
// Serve so a failed watch is retried by the supervisor.
type Watcher struct {
	store Invalidator
}

// NewWatcher creates a watcher over the store's data directory.
func NewWatcher(store Invalidator) *Watcher {
	return &Watcher{store: store}
}

// String implements fmt.Stringer for supervisor logging.
func (w *Watcher) String() string {
	return "dataset-watcher"
}

// Serve implements suture.Service. It watches the data directory tree and
// invalidates the sources named by file events until the context is
// canceled. Watch errors are logged and the loop continues; a closed event
// channel returns an error so the supervisor restarts the watch.
func (w *Watcher) Serve(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer closeQuietly(fsw, "filesystem watcher")

	if err := addRecursive(fsw, w.store.DataDir()); err != nil {
		return fmt.Errorf("failed to watch data directory: %w", err)
	}

	logging.Info().Str("data_dir", w.store.DataDir()).Msg("Dataset watcher started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("filesystem event channel closed")
			}
			w.handleEvent(fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("filesystem error channel closed")
			}
			logging.Warn().Err(err).Msg("Filesystem watch error")
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	// New subdirectories are not watched automatically.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addRecursive(fsw, event.Name); err != nil {
				logging.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
			}
			return
		}
	}

	if !event.Op.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
		return
	}
	if !isResultFile(event.Name) {
		return
	}

	removed := w.store.Invalidate(event.Name)
	metrics.RecordWatcherEvent(opLabel(event.Op), removed)

	if removed > 0 {
		logging.Info().
			Str("source", event.Name).
			Str("op", opLabel(event.Op)).
			Int("removed", removed).
			Msg("Source file changed, cached results invalidated")
	}
}

// opLabel maps an event to its metric label. Events can carry several ops;
// the most significant one wins.
func opLabel(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	default:
		return "other"
	}
}

// addRecursive watches dir and all its subdirectories; fsnotify does not
// descend on its own. Hidden directories are skipped.
func addRecursive(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil // skip unreadable subdirectories
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
