package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "ballotguard/pkg/domain"
	dErrors "ballotguard/pkg/domain-errors"
	request "ballotguard/pkg/platform/middleware/request"
	"ballotguard/pkg/requestcontext"
)

// SessionClaims is what the middleware needs from a verified voter session.
type SessionClaims struct {
	VoterID   id.VoterID
	SessionID id.SessionID
	Flags     id.VerificationFlags
}

// SessionVerifier validates a bearer token. Unauthorized-coded errors mean the
// token is bad; any other error is an infrastructure failure.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*SessionClaims, error)
}

// RejectionRecorder receives every rejected authentication attempt so it can be
// written to the security ledger.
type RejectionRecorder interface {
	RecordUnauthorized(ctx context.Context, reason string)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if errDesc == "" {
		_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s"}`, errCode))
		return
	}
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireSession admits requests carrying a valid voter session token and
// places the voter, session and verification flags in the request context.
// recorder may be nil.
func RequireSession(verifier SessionVerifier, recorder RejectionRecorder, logger *slog.Logger) func(http.Handler) http.Handler {
	reject := func(ctx context.Context, w http.ResponseWriter, reason string, err error) {
		logger.WarnContext(ctx, "unauthorized access - "+reason,
			"error", err,
			"request_id", request.GetRequestID(ctx),
			"client_ip", requestcontext.ClientIP(ctx),
		)
		if recorder != nil {
			recorder.RecordUnauthorized(ctx, reason)
		}
		writeJSONError(w, http.StatusUnauthorized, string(dErrors.CodeUnauthorized), "")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				reject(ctx, w, "missing token", nil)
				return
			}

			claims, err := verifier.VerifySession(ctx, token)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					reject(ctx, w, "invalid session", err)
					return
				}
				logger.ErrorContext(ctx, "failed to verify session",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusInternalServerError, string(dErrors.CodeInternal), "")
				return
			}

			ctx = requestcontext.WithVoterID(ctx, claims.VoterID)
			ctx = requestcontext.WithSessionID(ctx, claims.SessionID)
			ctx = requestcontext.WithVerification(ctx, claims.Flags)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

