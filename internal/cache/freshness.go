// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package cache

import (
	"os"
	"time"
)

// Token is a snapshot of a source's mutation state, captured at load time and
// compared against the live source at lookup time. The zero Token means
// "freshness not tracked": the entry is never auto-invalidated by source
// changes and only TTL or manual invalidation can remove it.
type Token struct {
	ModTime time.Time
	Size    int64
}

// IsZero reports whether the token tracks no freshness state.
func (t Token) IsZero() bool {
	return t.ModTime.IsZero() && t.Size == 0
}

// Equal reports whether two tokens observed the same source state.
// ModTime is compared with time.Time.Equal so monotonic-clock readings and
// location differences do not cause false staleness.
func (t Token) Equal(other Token) bool {
	return t.Size == other.Size && t.ModTime.Equal(other.ModTime)
}

// Probe captures the current freshness token for a source. A Probe is
// consulted twice per entry lifetime: once at load time to stamp the entry,
// and again on each subsequent lookup to detect external mutation. An error
// from the probe at lookup time means the source can no longer be inspected
// (typically deleted) and is treated as stale.
//
// Probes must be cheap; they are invoked while the store's lock is held.
type Probe func(source string) (Token, error)

// FileProbe is the standard probe for file-backed sources: the token is the
// file's modification time and byte size, matching how most writers mutate
// result artifacts (rewrite or append).
func FileProbe(source string) (Token, error) {
	info, err := os.Stat(source)
	if err != nil {
		return Token{}, err
	}
	return Token{ModTime: info.ModTime(), Size: info.Size()}, nil
}
