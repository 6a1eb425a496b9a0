package store

import (
	"context"
	"sync"

	"ballotguard/internal/eligibility"
	id "ballotguard/pkg/domain"
	"ballotguard/pkg/platform/sentinel"
)

// InMemoryStore is the development and test voter store. The claim runs
// under the store mutex, which is the in-process analogue of the row lock.
type InMemoryStore struct {
	mu      sync.Mutex
	voters  map[id.VoterID]*eligibility.Voter
	handles map[string]id.VoterID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		voters:  make(map[id.VoterID]*eligibility.Voter),
		handles: make(map[string]id.VoterID),
	}
}

func (s *InMemoryStore) ClaimVote(_ context.Context, voterID id.VoterID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voters[voterID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if v.HasVoted {
		return sentinel.ErrAlreadyUsed
	}
	v.HasVoted = true
	return nil
}

func (s *InMemoryStore) VerificationFlags(_ context.Context, voterID id.VoterID) (id.VerificationFlags, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voters[voterID]
	if !ok {
		return id.VerificationFlags{}, sentinel.ErrNotFound
	}
	return v.Flags, nil
}

func (s *InMemoryStore) Get(_ context.Context, voterID id.VoterID) (*eligibility.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voters[voterID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *v
	return &out, nil
}

func (s *InMemoryStore) Create(_ context.Context, v *eligibility.Voter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.voters[v.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.handles[v.ContactHandle]; ok {
		return sentinel.ErrConflict
	}
	stored := *v
	stored.HasVoted = false
	s.voters[v.ID] = &stored
	s.handles[v.ContactHandle] = v.ID
	return nil
}
