// internal/cache/local.go
package cache

import (
	"sync"
	"time"

	"proposition-engine/internal/models"
)

type localEntry struct {
	data      []byte
	expiresAt time.Time
}

// localStore is the bounded in-process fallback. When full it evicts
// expired entries first, then the entry closest to expiry. Not an LRU;
// entries are short-lived enough that expiry order is a good proxy.
type localStore struct {
	mu         sync.Mutex
	entries    map[string]localEntry
	maxEntries int
}

func newLocalStore(maxEntries int) *localStore {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &localStore{
		entries:    make(map[string]localEntry),
		maxEntries: maxEntries,
	}
}

func (s *localStore) get(key string) *models.RankingResult {
	s.mu.Lock()
	entry, ok := s.entries[key]
	if ok && time.Now().After(entry.expiresAt) {
		delete(s.entries, key)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return decode(entry.data)
}

func (s *localStore) set(key string, data []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.maxEntries {
		s.evictLocked()
	}

	s.entries[key] = localEntry{
		data:      data,
		expiresAt: time.Now().Add(ttl),
	}
}

func (s *localStore) evictLocked() {
	now := time.Now()
	var oldestKey string
	var oldestExpiry time.Time

	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldestExpiry) {
			oldestKey = k
			oldestExpiry = e.expiresAt
		}
	}

	if len(s.entries) >= s.maxEntries && oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}

func (s *localStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
