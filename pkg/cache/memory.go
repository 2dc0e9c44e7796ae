package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MemoryStore is the in-process Store. It is safe for concurrent use;
// reads and writes are independent best-effort operations with no
// cross-request coordination, so two concurrent misses writing the same
// key resolve to last-writer-wins.
type MemoryStore struct {
	config Config
	logger zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*Entry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-process store.
func NewMemoryStore(config Config, logger zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		config:  config,
		logger:  logger.With().Str("component", "cache-memory").Logger(),
		entries: make(map[string]*Entry),
	}
}

// Get returns the entry for key, or false on a miss. Expired entries are
// removed on read.
func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, bool) {
	cacheKey := key.String()

	s.mu.RLock()
	entry, ok := s.entries[cacheKey]
	s.mu.RUnlock()

	if !ok {
		Misses.WithLabelValues(key.Kind).Inc()
		return nil, false
	}

	if entry.Expired() {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the key.
		if cur, ok := s.entries[cacheKey]; ok && cur.Expired() {
			delete(s.entries, cacheKey)
		}
		s.mu.Unlock()

		Misses.WithLabelValues(key.Kind).Inc()
		return nil, false
	}

	Hits.WithLabelValues(key.Kind).Inc()
	return entry, true
}

// Set stores an entry. Entries with a non-positive TTL are not stored.
func (s *MemoryStore) Set(_ context.Context, key Key, entry *Entry) {
	if entry == nil || entry.TTL <= 0 {
		return
	}

	s.mu.Lock()
	s.entries[key.String()] = entry
	s.mu.Unlock()
}

// Enabled reports the global kill-switch.
func (s *MemoryStore) Enabled() bool {
	return s.config.Enabled
}

// TTLFor returns the default TTL for a kind.
func (s *MemoryStore) TTLFor(kind string) time.Duration {
	return s.config.ttlFor(kind)
}

// Invalidate removes every entry for the kind.
func (s *MemoryStore) Invalidate(_ context.Context, kind string) int {
	return s.removeMatching(kind, "")
}

// InvalidateID removes only entries for the kind that encode the id.
func (s *MemoryStore) InvalidateID(_ context.Context, kind, id string) int {
	if id == "" {
		return 0
	}
	return s.removeMatching(kind, id)
}

func (s *MemoryStore) removeMatching(kind, id string) int {
	prefix := kindPrefix(kind)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		if id != "" && !encodesID(key, id) {
			continue
		}
		delete(s.entries, key)
		removed++
	}

	if removed > 0 {
		Invalidations.WithLabelValues(kind).Add(float64(removed))
		s.logger.Debug().
			Str("kind", kind).
			Str("id", id).
			Int("removed", removed).
			Msg("Cache invalidated")
	}
	return removed
}

// Len returns the number of live entries. Expired entries that have not
// been read yet still count.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
