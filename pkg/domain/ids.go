// Package domain holds identifier value objects shared across modules.
//
// Identifiers are distinct types over uuid.UUID so a VoterID can never be passed
// where a VoteID is expected. Construct them via the Parse* functions at trust
// boundaries; direct conversion bypasses validation.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "ballotguard/pkg/domain-errors"
)

type (
	VoterID         uuid.UUID
	VoteID          uuid.UUID
	SessionID       uuid.UUID
	SecurityEventID uuid.UUID
)

// maxIDLength bounds input before it reaches uuid.Parse.
const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is too long")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return u, nil
}

func ParseVoterID(s string) (VoterID, error) {
	u, err := parseUUID("voter id", s)
	return VoterID(u), err
}

func ParseVoteID(s string) (VoteID, error) {
	u, err := parseUUID("vote id", s)
	return VoteID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID("session id", s)
	return SessionID(u), err
}

func ParseSecurityEventID(s string) (SecurityEventID, error) {
	u, err := parseUUID("security event id", s)
	return SecurityEventID(u), err
}

func NewVoteID() VoteID                   { return VoteID(uuid.New()) }
func NewSecurityEventID() SecurityEventID { return SecurityEventID(uuid.New()) }

func (id VoterID) String() string         { return uuid.UUID(id).String() }
func (id VoterID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }
func (id VoteID) String() string          { return uuid.UUID(id).String() }
func (id VoteID) IsNil() bool             { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) String() string       { return uuid.UUID(id).String() }
func (id SessionID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id SecurityEventID) String() string { return uuid.UUID(id).String() }
func (id SecurityEventID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// ChoiceID identifies a ballot option. It is opaque to this module; the ballot
// definition lives with the surrounding application.
// Invariant: 1-64 characters of [A-Za-z0-9_.-], starting with an alphanumeric.
type ChoiceID string

var choiceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

func ParseChoiceID(s string) (ChoiceID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "choice id cannot be empty")
	}
	if !choiceIDPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid choice id")
	}
	return ChoiceID(s), nil
}

func (c ChoiceID) String() string { return string(c) }
