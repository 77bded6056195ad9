package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with in-process TTL entries. Used in
// tests and as a degraded-mode fallback when Redis is unreachable.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int

	stats  MemoryStats
	stopCh chan struct{}
	once   sync.Once
}

type memoryEntry struct {
	value    []byte
	expires  time.Time
	accessed time.Time
}

// MemoryStats reports in-memory cache activity.
type MemoryStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// NewMemoryStore creates a store bounded to maxEntries with a one
// minute expiry janitor.
func NewMemoryStore(maxEntries int) *MemoryStore {
	s := &MemoryStore{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Get retrieves a value if present and unexpired.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || time.Now().After(entry.expires) {
		s.stats.Misses++
		return nil, false, nil
	}

	entry.accessed = time.Now()
	s.entries[key] = entry
	s.stats.Hits++

	// Copy so callers cannot mutate the stored slice.
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

// Set stores a value with TTL, evicting the least recently used entry
// when full.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value, ttl)
	return nil
}

// SetNX stores a value only when the key is absent or expired.
func (s *MemoryStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && time.Now().Before(entry.expires) {
		return false, nil
	}
	s.setLocked(key, value, ttl)
	return true, nil
}

func (s *MemoryStore) setLocked(key string, value []byte, ttl time.Duration) {
	if _, exists := s.entries[key]; !exists && s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictLRULocked()
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.entries[key] = memoryEntry{
		value:    stored,
		expires:  time.Now().Add(ttl),
		accessed: time.Now(),
	}
}

// Remove deletes keys.
func (s *MemoryStore) Remove(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stopCh) })
	return nil
}

// Stats returns a snapshot of cache activity.
func (s *MemoryStore) Stats() MemoryStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.Entries = len(s.entries)
	return stats
}

func (s *MemoryStore) evictLRULocked() {
	var oldestKey string
	oldest := time.Now()
	for key, entry := range s.entries {
		if entry.accessed.Before(oldest) {
			oldest = entry.accessed
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
		s.stats.Evictions++
	}
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

func (s *MemoryStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, entry := range s.entries {
		if now.After(entry.expires) {
			delete(s.entries, key)
		}
	}
}
