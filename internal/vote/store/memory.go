package store

import (
	"context"
	"sort"
	"sync"

	"ballotguard/internal/vote"
	id "ballotguard/pkg/domain"
	"ballotguard/pkg/platform/sentinel"
)

// InMemoryStore keeps votes in process for development and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	votes   map[id.VoteID]*vote.Vote
	byVoter map[id.VoterID]id.VoteID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		votes:   make(map[id.VoteID]*vote.Vote),
		byVoter: make(map[id.VoterID]id.VoteID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, v *vote.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byVoter[v.VoterID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	stored := *v
	s.votes[v.ID] = &stored
	s.byVoter[v.VoterID] = v.ID
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, voteID id.VoteID) (*vote.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.votes[voteID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *v
	return &out, nil
}

func (s *InMemoryStore) MarkAnchored(_ context.Context, voteID id.VoteID, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.votes[voteID]; ok && !v.LedgerConfirmed {
		v.LedgerConfirmed = true
		v.LedgerReference = reference
		v.LedgerAttempts++
		v.LedgerLastError = ""
	}
	return nil
}

func (s *InMemoryStore) RecordAnchorFailure(_ context.Context, voteID id.VoteID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.votes[voteID]; ok && !v.LedgerConfirmed {
		v.LedgerAttempts++
		v.LedgerLastError = reason
	}
	return nil
}

func (s *InMemoryStore) ListUnconfirmed(_ context.Context, limit int) ([]*vote.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*vote.Vote
	for _, v := range s.votes {
		if !v.LedgerConfirmed {
			c := *v
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of stored votes.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.votes)
}
