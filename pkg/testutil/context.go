package testutil

import (
	"net/http"

	id "ballotguard/pkg/domain"
	"ballotguard/pkg/requestcontext"
)

// WithSession adds voter ID, session ID and verification flags to the request
// context. This is the typical state of a request that passed RequireSession.
// Invalid IDs are silently ignored.
func WithSession(req *http.Request, voterID, sessionID string, flags id.VerificationFlags) *http.Request {
	ctx := req.Context()
	if parsed, err := id.ParseVoterID(voterID); err == nil {
		ctx = requestcontext.WithVoterID(ctx, parsed)
	}
	if parsed, err := id.ParseSessionID(sessionID); err == nil {
		ctx = requestcontext.WithSessionID(ctx, parsed)
	}
	ctx = requestcontext.WithVerification(ctx, flags)
	return req.WithContext(ctx)
}
