// Package security is the append-only ledger of security-relevant events:
// duplicate vote attempts, spoofed biometrics, anomalous behavior and
// unauthenticated access. Events are immutable except for the resolved flag.
package security

import (
	"strings"
	"time"

	id "ballotguard/pkg/domain"
	dErrors "ballotguard/pkg/domain-errors"
)

// EventType classifies a security event.
type EventType string

const (
	EventDuplicateVote      EventType = "duplicate_vote"
	EventBiometricSpoof     EventType = "biometric_spoof"
	EventAnomalousBehavior  EventType = "anomalous_behavior"
	EventUnauthorizedAccess EventType = "unauthorized_access"
)

var validEventTypes = map[EventType]bool{
	EventDuplicateVote:      true,
	EventBiometricSpoof:     true,
	EventAnomalousBehavior:  true,
	EventUnauthorizedAccess: true,
}

// ParseEventType validates a raw event type.
func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	if !validEventTypes[t] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown security event type")
	}
	return t, nil
}

func (t EventType) IsValid() bool { return validEventTypes[t] }

func (t EventType) String() string { return string(t) }

// Event is one ledger entry. VoterID is nil when the actor is unknown
// (unauthenticated access).
type Event struct {
	ID        id.SecurityEventID
	Type      EventType
	VoterID   id.VoterID
	Severity  float64
	Details   map[string]any
	CreatedAt time.Time
	Resolved  bool
}

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// Filter narrows a ledger query. Zero values mean "no constraint".
type Filter struct {
	Types       []EventType
	VoterID     id.VoterID
	Resolved    *bool
	Since       time.Time
	Until       time.Time
	MinSeverity float64
	Limit       int
}

// Normalize clamps the limit into its allowed range.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = defaultQueryLimit
	}
	if f.Limit > maxQueryLimit {
		f.Limit = maxQueryLimit
	}
	return f
}

// Matches applies the filter to a single event. Stores that cannot push the
// filter down use it.
func (f Filter) Matches(e Event) bool {
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if e.Type == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !f.VoterID.IsNil() && e.VoterID != f.VoterID {
		return false
	}
	if f.Resolved != nil && e.Resolved != *f.Resolved {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.CreatedAt.Before(f.Until) {
		return false
	}
	if e.Severity < f.MinSeverity {
		return false
	}
	return true
}
