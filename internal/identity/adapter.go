package identity

import (
	"context"

	authmw "ballotguard/pkg/platform/middleware/auth"
)

// MiddlewareAdapter exposes a Verifier as the auth middleware's SessionVerifier.
type MiddlewareAdapter struct {
	verifier *Verifier
}

func NewMiddlewareAdapter(verifier *Verifier) *MiddlewareAdapter {
	return &MiddlewareAdapter{verifier: verifier}
}

func (a *MiddlewareAdapter) VerifySession(ctx context.Context, token string) (*authmw.SessionClaims, error) {
	session, err := a.verifier.VerifySession(ctx, token)
	if err != nil {
		return nil, err
	}
	return &authmw.SessionClaims{
		VoterID:   session.VoterID,
		SessionID: session.SessionID,
		Flags:     session.Flags,
	}, nil
}
