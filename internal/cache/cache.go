// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package cache provides a sharded in-memory TTL cache for aggregated
// listening data.
//
// Keys combine a subject ID with a data kind ("listening_data",
// "taste_profile"). Entries expire lazily on read; a periodic sweep
// under the supervision tree reclaims memory for entries nobody reads
// again. The cache is an ephemeral performance layer: eviction is
// always safe and nothing here is a system of record.
package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
)

const shardCount = 32

const metricLabel = "listening_data"

// Entry is a cached value with its storage time.
type Entry struct {
	Data     interface{}
	StoredAt time.Time
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// TTL is a sharded TTL cache. Shards are selected by FNV-1a hash of the
// subject ID so unrelated subjects never contend on one lock.
type TTL struct {
	ttl    time.Duration
	shards [shardCount]*shard
	now    func() time.Time

	statsMu sync.Mutex
	stats   Stats
}

// Option configures a TTL cache.
type Option func(*TTL)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *TTL) { c.now = now }
}

// New creates a TTL cache. Entries become invisible once older than ttl.
func New(ttl time.Duration, opts ...Option) *TTL {
	c := &TTL{ttl: ttl, now: time.Now}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]Entry)}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func key(subject, kind string) string {
	return subject + "\x00" + kind
}

func (c *TTL) shardFor(subject string) *shard {
	h := fnv.New32a()
	h.Write([]byte(subject))
	return c.shards[h.Sum32()%shardCount]
}

// Get returns the cached value for subject+kind, or nil and false when
// absent or expired. An expired entry is evicted on the spot.
func (c *TTL) Get(subject, kind string) (interface{}, bool) {
	s := c.shardFor(subject)
	k := key(subject, kind)

	s.mu.RLock()
	entry, ok := s.entries[k]
	s.mu.RUnlock()

	if !ok {
		c.miss()
		return nil, false
	}

	if c.now().Sub(entry.StoredAt) >= c.ttl {
		s.mu.Lock()
		// Re-check under the write lock; a Put may have raced us.
		if cur, still := s.entries[k]; still && cur.StoredAt.Equal(entry.StoredAt) {
			delete(s.entries, k)
			c.evicted(1)
		}
		s.mu.Unlock()
		c.miss()
		return nil, false
	}

	c.hit()
	return entry.Data, true
}

// Put stores a value for subject+kind, resetting its TTL.
func (c *TTL) Put(subject, kind string, value interface{}) {
	s := c.shardFor(subject)
	s.mu.Lock()
	s.entries[key(subject, kind)] = Entry{Data: value, StoredAt: c.now()}
	s.mu.Unlock()
	c.updateSizeGauge()
}

// ClearSubject removes every cached kind for one subject. Used when the
// subject's history is cleared so stale aggregates cannot resurface.
func (c *TTL) ClearSubject(subject string) {
	s := c.shardFor(subject)
	prefix := subject + "\x00"

	s.mu.Lock()
	removed := 0
	for k := range s.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(s.entries, k)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		c.evicted(uint64(removed))
		logging.Debug().Str("subject", subject).Int("removed", removed).Msg("cache cleared for subject")
	}
}

// Sweep removes all expired entries. Purely hygienic: correctness never
// depends on it because Get evicts lazily.
func (c *TTL) Sweep() int {
	cutoff := c.now().Add(-c.ttl)
	removed := 0

	for _, s := range c.shards {
		s.mu.Lock()
		for k, entry := range s.entries {
			if entry.StoredAt.Before(cutoff) || entry.StoredAt.Equal(cutoff) {
				delete(s.entries, k)
				removed++
			}
		}
		s.mu.Unlock()
	}

	if removed > 0 {
		c.evicted(uint64(removed))
	}
	c.updateSizeGauge()
	return removed
}

// Len returns the current entry count across all shards, including
// entries that are expired but not yet evicted.
func (c *TTL) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// Stats returns a snapshot of cache counters.
func (c *TTL) Stats() Stats {
	c.statsMu.Lock()
	stats := c.stats
	c.statsMu.Unlock()
	stats.Entries = c.Len()
	return stats
}

func (c *TTL) hit() {
	c.statsMu.Lock()
	c.stats.Hits++
	c.statsMu.Unlock()
	metrics.CacheHits.WithLabelValues(metricLabel).Inc()
}

func (c *TTL) miss() {
	c.statsMu.Lock()
	c.stats.Misses++
	c.statsMu.Unlock()
	metrics.CacheMisses.WithLabelValues(metricLabel).Inc()
}

func (c *TTL) evicted(n uint64) {
	c.statsMu.Lock()
	c.stats.Evictions += n
	c.statsMu.Unlock()
	metrics.CacheEvictions.WithLabelValues(metricLabel).Add(float64(n))
}

func (c *TTL) updateSizeGauge() {
	metrics.CacheSize.WithLabelValues(metricLabel).Set(float64(c.Len()))
}

// Sweeper runs periodic sweeps. It implements suture.Service and runs
// under the supervision tree.
type Sweeper struct {
	cache    *TTL
	interval time.Duration
}

// NewSweeper creates a Sweeper for the given cache.
func NewSweeper(cache *TTL, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{cache: cache, interval: interval}
}

// Serve sweeps the cache until the context is canceled.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed := s.cache.Sweep()
			if removed > 0 {
				logging.Debug().Int("removed", removed).Msg("cache sweep completed")
			}
		}
	}
}

// String names the service in supervisor logs.
func (s *Sweeper) String() string { return "cache-sweeper" }
