// Package store persists security events.
package store

import (
	"context"
	"maps"
	"sort"
	"sync"

	"ballotguard/internal/security"
	id "ballotguard/pkg/domain"
	"ballotguard/pkg/platform/sentinel"
)

// InMemoryStore is a process-local ledger for development and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []security.Event
	index  map[id.SecurityEventID]int
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{index: make(map[id.SecurityEventID]int)}
}

func (s *InMemoryStore) Append(_ context.Context, event security.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[event.ID]; exists {
		return sentinel.ErrConflict
	}
	event.Details = maps.Clone(event.Details)
	s.index[event.ID] = len(s.events)
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) MarkResolved(_ context.Context, eventID id.SecurityEventID) (*security.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	s.events[i].Resolved = true
	out := s.events[i]
	out.Details = maps.Clone(out.Details)
	return &out, nil
}

func (s *InMemoryStore) Query(_ context.Context, filter security.Filter) ([]security.Event, error) {
	filter = filter.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]security.Event, 0)
	for _, e := range s.events {
		if filter.Matches(e) {
			e.Details = maps.Clone(e.Details)
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Count returns the number of stored events of the given type.
func (s *InMemoryStore) Count(eventType security.EventType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}
