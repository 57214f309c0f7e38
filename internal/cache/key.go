// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package cache

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
)

// Params are the named parameters that influence a loaded value. Two requests
// with the same source and the same parameter set are considered identical
// and share one cache entry.
type Params map[string]string

// Key identifies one cacheable load result. The source component is kept in
// the clear (not folded into the digest) so that per-source invalidation can
// match entries without reversing a hash.
type Key struct {
	// Source is the canonicalized source identifier.
	Source string

	// Digest is a hex fingerprint of the sorted parameter set.
	Digest string
}

// String renders the key for logging.
func (k Key) String() string {
	return k.Source + "#" + k.Digest
}

// NewKey derives a deterministic key from a source identifier and a set of
// named parameters.
//
// The source is canonicalized (cleaned, made absolute where possible) so that
// equivalent references to the same file always map to the same entry.
// Parameters are sorted by name before serialization so that map iteration
// order cannot affect the result. The fingerprint is a truncated SHA-256 of
// the JSON-encoded pairs; 128 bits is far beyond the collision needs of the
// expected key space.
func NewKey(source string, params Params) Key {
	return Key{
		Source: CanonicalSource(source),
		Digest: paramsDigest(params),
	}
}

// CanonicalSource normalizes a source identifier. Filesystem paths are
// cleaned and resolved to absolute form; if resolution fails (for example the
// working directory is gone), the cleaned relative path is used as-is so key
// generation never fails.
func CanonicalSource(source string) string {
	if abs, err := filepath.Abs(source); err == nil {
		return abs
	}
	return filepath.Clean(source)
}

// paramsDigest fingerprints a parameter set. nil and empty maps share one
// digest.
func paramsDigest(params Params) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([][2]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, [2]string{name, params[name]})
	}

	data, err := json.Marshal(pairs)
	if err != nil {
		// Cannot happen for [][2]string, but fall back to a plain
		// rendering rather than failing key generation.
		data = []byte(fmt.Sprintf("%v", pairs))
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash[:16])
}
