package history

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	members   map[string]struct{}
	counter   int64
	expiresAt time.Time
}

// InMemoryStore is the single-process fallback used when Redis is not configured.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]*memoryEntry), now: time.Now}
}

// entry returns the live entry for key, resetting it when expired. Caller holds mu.
func (s *InMemoryStore) entry(key string, ttl time.Duration) *memoryEntry {
	now := s.now()
	e, ok := s.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		e = &memoryEntry{members: make(map[string]struct{})}
		s.entries[key] = e
	}
	e.expiresAt = now.Add(ttl)
	return e
}

func (s *InMemoryStore) AddMember(_ context.Context, key, member string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key, ttl)
	e.members[member] = struct{}{}
	return int64(len(e.members)), nil
}

func (s *InMemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key, ttl)
	e.counter++
	return e.counter, nil
}

// Sweep drops expired entries.
func (s *InMemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}
