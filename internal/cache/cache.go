// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package cache

import (
	"context"
	"sync"
	"time"
)

// Loader computes the value for a source on a cache miss. Loaders may block
// on I/O; the store never holds its lock across a Loader call. A Loader error
// propagates unchanged to the GetOrLoad caller and leaves the store
// unmodified for that key.
type Loader[V any] func(ctx context.Context, source string, params Params) (V, error)

// Config bounds a Store and sets its staleness policy.
type Config struct {
	// TTL is the absolute entry lifetime. Entries older than TTL are
	// removed and reloaded on the next access. TTL <= 0 disables
	// time-based expiry.
	TTL time.Duration

	// MaxItems is the hard cap on entry count. Zero disables caching:
	// every insertion is immediately evicted. Negative values are
	// treated as zero.
	MaxItems int

	// MaxSizeBytes is the hard cap on the summed size estimate of all
	// entries, with the same zero/negative semantics as MaxItems.
	MaxSizeBytes int64

	// Probe captures freshness tokens for sources. nil disables
	// freshness-based invalidation for all entries.
	Probe Probe
}

// entry is the stored unit. Entries are owned exclusively by the store;
// callers receive the value, never the entry. The prev/next pointers thread
// entries into a recency list with sentinel head and tail: head.next is the
// most recently used, tail.prev the least.
type entry[V any] struct {
	key            Key
	value          V
	createdAt      time.Time
	lastAccessedAt time.Time
	accessCount    int64
	token          Token
	sizeBytes      int64

	prev *entry[V]
	next *entry[V]
}

// Store is a bounded, thread-safe compute/load cache. Construct with New and
// pass by reference to the components that need it; there is no package-level
// instance, so tests get clean isolation by constructing their own.
type Store[V any] struct {
	mu sync.Mutex

	items     map[Key]*entry[V]
	head      *entry[V]
	tail      *entry[V]
	totalSize int64

	ttl          time.Duration
	maxItems     int
	maxSizeBytes int64
	probe        Probe

	stats Stats

	// now is replaceable for deterministic expiry tests.
	now func() time.Time
}

// New creates a store with the given bounds and staleness policy.
func New[V any](cfg Config) *Store[V] {
	if cfg.MaxItems < 0 {
		cfg.MaxItems = 0
	}
	if cfg.MaxSizeBytes < 0 {
		cfg.MaxSizeBytes = 0
	}

	s := &Store[V]{
		items:        make(map[Key]*entry[V]),
		head:         &entry[V]{},
		tail:         &entry[V]{},
		ttl:          cfg.TTL,
		maxItems:     cfg.MaxItems,
		maxSizeBytes: cfg.MaxSizeBytes,
		probe:        cfg.Probe,
		now:          time.Now,
	}
	s.head.next = s.tail
	s.tail.prev = s.head
	return s
}

// GetOrLoad returns the cached value for (source, params), invoking loader on
// a miss. A returned value was either just computed by loader, or stored by a
// prior call with the same key whose TTL has not elapsed and whose source has
// not changed to the precision of the freshness token.
//
// The miss path runs the loader outside the lock, so two concurrent callers
// missing on the same cold key may both load; the second insertion overwrites
// the first (last-writer-wins) and both callers receive a valid value.
func (s *Store[V]) GetOrLoad(ctx context.Context, source string, params Params, loader Loader[V]) (V, error) {
	key := NewKey(source, params)

	s.mu.Lock()
	if e, ok := s.items[key]; ok {
		now := s.now()
		if s.stale(e, now) {
			s.removeEntry(e)
			s.stats.Invalidations++
		} else {
			e.lastAccessedAt = now
			e.accessCount++
			s.moveToFront(e)
			s.stats.Hits++
			value := e.value
			s.mu.Unlock()
			return value, nil
		}
	}
	s.stats.Misses++
	s.mu.Unlock()

	value, err := loader(ctx, source, params)
	if err != nil {
		var zero V
		return zero, err
	}

	// Stamp the entry with the source's current token. A probe failure at
	// load time (source not inspectable) leaves the token zero: freshness
	// is simply not tracked for this entry.
	var token Token
	if s.probe != nil {
		if t, perr := s.probe(key.Source); perr == nil {
			token = t
		}
	}

	s.insert(key, value, token, estimateSize(value))
	return value, nil
}

// stale decides whether a resident entry must be removed rather than served:
// TTL elapsed, or the live source's token no longer matches the stamp.
// Must be called with the lock held.
func (s *Store[V]) stale(e *entry[V], now time.Time) bool {
	if s.ttl > 0 && now.Sub(e.createdAt) > s.ttl {
		return true
	}
	if s.probe != nil && !e.token.IsZero() {
		live, err := s.probe(e.key.Source)
		if err != nil || !live.Equal(e.token) {
			// A vanished source counts as changed; the reload that
			// follows surfaces the loader's error if it is really
			// gone.
			return true
		}
	}
	return false
}

// insert stores a freshly loaded value, enforcing both capacity bounds.
// The item limit is enforced before insertion as well as after: insertion is
// not atomic with the miss check, so another goroutine may have filled the
// store while the loader ran.
func (s *Store[V]) insert(key Key, value V, token Token, sizeBytes int64) {
	now := s.now()
	e := &entry[V]{
		key:            key,
		value:          value,
		createdAt:      now,
		lastAccessedAt: now,
		accessCount:    1,
		token:          token,
		sizeBytes:      sizeBytes,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Overwrite a concurrent insertion for the same key (last-writer-wins,
	// not an eviction).
	if old, ok := s.items[key]; ok {
		s.removeEntry(old)
	}

	// Make room so the count bound holds at the moment of insertion.
	for len(s.items) >= s.maxItems {
		if !s.evictOne() {
			break
		}
	}

	s.addToFront(e)
	s.items[key] = e
	s.totalSize += e.sizeBytes

	s.enforceItemLimit()
	s.enforceSizeLimit()
}

// enforceItemLimit evicts least-recently-used entries while the count bound
// is exceeded. With MaxItems == 0 this removes the just-inserted entry,
// leaving the store empty and stable after one pass.
func (s *Store[V]) enforceItemLimit() {
	for len(s.items) > s.maxItems {
		if !s.evictOne() {
			return
		}
	}
}

// enforceSizeLimit evicts least-recently-used entries while the byte bound is
// exceeded. A zero byte budget disables caching outright, including for
// entries whose size estimate is itself zero (empty values), which would
// never trip the totalSize comparison.
func (s *Store[V]) enforceSizeLimit() {
	if s.maxSizeBytes == 0 {
		for len(s.items) > 0 {
			if !s.evictOne() {
				return
			}
		}
		return
	}
	for s.totalSize > s.maxSizeBytes {
		if !s.evictOne() {
			return
		}
	}
}

// evictOne removes the least-recently-used entry and counts an eviction.
// Entries that share a lastAccessedAt timestamp (coarse clocks) evict in
// insertion order: new entries enter at the front and hits move to the front,
// so list order from the tail is strictly oldest-first. Returns false on an
// empty store, which bounds every eviction loop.
func (s *Store[V]) evictOne() bool {
	oldest := s.tail.prev
	if oldest == s.head {
		return false
	}
	s.removeEntry(oldest)
	s.stats.Evictions++
	return true
}

// Invalidate removes every entry derived from the given source, whatever its
// parameters, and returns the number removed. Use it when a source was
// mutated through a channel the freshness probe does not observe.
func (s *Store[V]) Invalidate(source string) int {
	canonical := CanonicalSource(source)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for e := s.tail.prev; e != s.head; {
		prev := e.prev
		if e.key.Source == canonical {
			s.removeEntry(e)
			removed++
		}
		e = prev
	}
	s.stats.Invalidations += int64(removed)
	return removed
}

// InvalidateAll removes every entry and returns the number removed.
func (s *Store[V]) InvalidateAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.items)
	s.items = make(map[Key]*entry[V])
	s.head.next = s.tail
	s.tail.prev = s.head
	s.totalSize = 0
	s.stats.Invalidations += int64(removed)
	return removed
}

// RemoveExpired removes all currently TTL-expired entries and returns the
// number removed. TTL is otherwise checked only on access, so expired entries
// occupy capacity until this sweep or their next lookup; the store does not
// schedule the sweep itself.
func (s *Store[V]) RemoveExpired() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for e := s.tail.prev; e != s.head; {
		prev := e.prev
		if now.Sub(e.createdAt) > s.ttl {
			s.removeEntry(e)
			removed++
		}
		e = prev
	}
	s.stats.Invalidations += int64(removed)
	return removed
}

// Len returns the current number of entries.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// SizeBytes returns the summed size estimate of all entries.
func (s *Store[V]) SizeBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSize
}

// Stats returns a copy of the cumulative counters.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Info returns an occupancy snapshot against the configured limits.
func (s *Store[V]) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Info{
		Items:        len(s.items),
		SizeBytes:    s.totalSize,
		MaxItems:     s.maxItems,
		MaxSizeBytes: s.maxSizeBytes,
		TTLSeconds:   s.ttl.Seconds(),
		Utilization:  utilization(len(s.items), s.totalSize, s.maxItems, s.maxSizeBytes),
	}
}

// Internal list methods (must be called with lock held)

// addToFront threads an entry in as most recently used.
func (s *Store[V]) addToFront(e *entry[V]) {
	e.prev = s.head
	e.next = s.head.next
	s.head.next.prev = e
	s.head.next = e
}

// moveToFront re-threads an existing entry as most recently used.
func (s *Store[V]) moveToFront(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	s.addToFront(e)
}

// removeEntry unthreads an entry and drops it from the map and size total.
func (s *Store[V]) removeEntry(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(s.items, e.key)
	s.totalSize -= e.sizeBytes
}
