// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/perfcore/internal/logging"
	"github.com/tomtom215/perfcore/internal/metrics"
)

// Defaults applied to zero Config fields.
const (
	DefaultMaxItems = 1000
	DefaultTTL      = 300 * time.Second
	DefaultName     = "default"
)

// Config configures a Store.
type Config struct {
	// MaxItems is the maximum number of entries. Default: 1000
	MaxItems int

	// DefaultTTL is the TTL used by Set. Default: 300s
	DefaultTTL time.Duration

	// Clock is the time source. Default: real clock
	Clock clockwork.Clock

	// Name labels the store's Prometheus series. Default: "default"
	Name string
}

// entry is a node in the recency list.
type entry struct {
	key            string
	value          interface{}
	expiresAt      time.Time
	lastAccessedAt time.Time
	prev           *entry
	next           *entry
}

// Stats is a point-in-time snapshot of store counters.
type Stats struct {
	HitRate           float64 `json:"hit_rate"`
	Hits              int64   `json:"hits"`
	Misses            int64   `json:"misses"`
	Sets              int64   `json:"sets"`
	Evictions         int64   `json:"evictions"`
	Expirations       int64   `json:"expirations"`
	Size              int     `json:"size"`
	ApproxMemoryBytes int64   `json:"approx_memory_bytes"`
}

// Store is a thread-safe TTL cache with LRU eviction.
type Store struct {
	mu sync.Mutex

	maxItems   int
	defaultTTL time.Duration
	clock      clockwork.Clock
	name       string
	log        zerolog.Logger

	// items maps keys to list nodes
	items map[string]*entry

	// head.next is the most recently accessed entry, tail.prev the least
	head *entry
	tail *entry

	hits        int64
	misses      int64
	sets        int64
	evictions   int64
	expirations int64

	group singleflight.Group
}

// New creates a Store. Zero Config fields take their defaults.
func New(cfg Config) *Store {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}

	s := &Store{
		maxItems:   cfg.MaxItems,
		defaultTTL: cfg.DefaultTTL,
		clock:      cfg.Clock,
		name:       cfg.Name,
		log:        logging.WithComponent("cache").With().Str("store", cfg.Name).Logger(),
		items:      make(map[string]*entry, cfg.MaxItems),
		head:       &entry{},
		tail:       &entry{},
	}
	s.head.next = s.tail
	s.tail.prev = s.head

	return s
}

// Get returns the value stored under key.
// An entry whose expiry is not after now is removed and reported as a miss.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	e, ok := s.items[key]
	if ok && !now.Before(e.expiresAt) {
		s.removeEntry(e)
		s.expirations++
		metrics.CacheExpirations.WithLabelValues(s.name).Inc()
		s.updateSizeGauge()
		ok = false
	}
	if !ok {
		s.misses++
		metrics.RecordCacheLookup(s.name, false)
		return nil, false
	}

	e.lastAccessedAt = now
	s.moveToFront(e)
	s.hits++
	metrics.RecordCacheLookup(s.name, true)
	return e.value, true
}

// Set stores value under key with the default TTL.
func (s *Store) Set(key string, value interface{}) {
	s.SetWithTTL(key, value, s.defaultTTL)
}

// SetWithTTL stores value under key, expiring ttl from now.
// A ttl of zero or less produces an entry that is already expired.
func (s *Store) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.sets++
	metrics.CacheSets.WithLabelValues(s.name).Inc()

	if e, ok := s.items[key]; ok {
		e.value = value
		e.expiresAt = now.Add(ttl)
		e.lastAccessedAt = now
		s.moveToFront(e)
		return
	}

	// Make room first so the store never exceeds maxItems.
	if len(s.items) >= s.maxItems {
		s.evictOldest()
	}

	e := &entry{
		key:            key,
		value:          value,
		expiresAt:      now.Add(ttl),
		lastAccessedAt: now,
	}
	s.addToFront(e)
	s.items[key] = e
	s.updateSizeGauge()
}

// Invalidate removes every key containing pattern as a substring, or all keys
// when pattern is empty. It returns the number of entries removed.
func (s *Store) Invalidate(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	if pattern == "" {
		removed = len(s.items)
		s.items = make(map[string]*entry, s.maxItems)
		s.head.next = s.tail
		s.tail.prev = s.head
	} else {
		for key, e := range s.items {
			if strings.Contains(key, pattern) {
				s.removeEntry(e)
				removed++
			}
		}
	}

	if removed > 0 {
		s.updateSizeGauge()
		s.log.Debug().Str("pattern", pattern).Int("removed", removed).Msg("Cache invalidated")
	}
	return removed
}

// CleanupExpired removes all expired entries and returns how many were removed.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0

	// Walk from tail (oldest) to head (newest)
	for e := s.tail.prev; e != s.head; {
		prev := e.prev
		if !now.Before(e.expiresAt) {
			s.removeEntry(e)
			removed++
		}
		e = prev
	}

	if removed > 0 {
		s.expirations += int64(removed)
		metrics.CacheExpirations.WithLabelValues(s.name).Add(float64(removed))
		s.updateSizeGauge()
	}
	return removed
}

// Len returns the number of stored entries, including expired entries that
// have not been read or swept yet.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Keys returns the live keys ordered from most to least recently accessed.
// It does not affect recency or counters.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	keys := make([]string, 0, len(s.items))
	for e := s.head.next; e != s.tail; e = e.next {
		if now.Before(e.expiresAt) {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		Hits:        s.hits,
		Misses:      s.misses,
		Sets:        s.sets,
		Evictions:   s.evictions,
		Expirations: s.expirations,
		Size:        len(s.items),
	}
	values := make([]interface{}, 0, len(s.items))
	for e := s.head.next; e != s.tail; e = e.next {
		values = append(values, e.value)
	}
	s.mu.Unlock()

	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	st.ApproxMemoryBytes = approxSize(values)
	return st
}

// Internal methods (must be called with lock held)

func (s *Store) addToFront(e *entry) {
	e.prev = s.head
	e.next = s.head.next
	s.head.next.prev = e
	s.head.next = e
}

func (s *Store) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	s.addToFront(e)
}

// removeEntry removes an entry from both the list and the map.
func (s *Store) removeEntry(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
	delete(s.items, e.key)
}

// evictOldest removes the least recently accessed entry.
func (s *Store) evictOldest() {
	oldest := s.tail.prev
	if oldest == s.head {
		return
	}
	s.removeEntry(oldest)
	s.evictions++
	metrics.CacheEvictions.WithLabelValues(s.name).Inc()
	s.log.Debug().Str("key", oldest.key).Msg("Evicted least recently used entry")
}

func (s *Store) updateSizeGauge() {
	metrics.CacheEntries.WithLabelValues(s.name).Set(float64(len(s.items)))
}
