package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "ballotguard/pkg/domain"
	dErrors "ballotguard/pkg/domain-errors"
	"ballotguard/pkg/requestcontext"
)

type stubVerifier struct {
	claims *SessionClaims
	err    error
}

func (s stubVerifier) VerifySession(context.Context, string) (*SessionClaims, error) {
	return s.claims, s.err
}

type recorderSpy struct{ reasons []string }

func (r *recorderSpy) RecordUnauthorized(_ context.Context, reason string) {
	r.reasons = append(r.reasons, reason)
}

func TestRequireSession(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	voterID := id.VoterID(uuid.New())

	var seen id.VoterID
	var seenFlags id.VerificationFlags
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.VoterID(r.Context())
		seenFlags = requestcontext.Verification(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("valid token populates context", func(t *testing.T) {
		spy := &recorderSpy{}
		v := stubVerifier{claims: &SessionClaims{VoterID: voterID, Flags: id.VerificationFlags{OTPVerified: true}}}
		req := httptest.NewRequest(http.MethodPost, "/votes", nil)
		req.Header.Set("Authorization", "Bearer good")
		rr := httptest.NewRecorder()

		RequireSession(v, spy, logger)(next).ServeHTTP(rr, req)

		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, voterID, seen)
		assert.True(t, seenFlags.OTPVerified)
		assert.Empty(t, spy.reasons)
	})

	t.Run("missing token is rejected and recorded", func(t *testing.T) {
		spy := &recorderSpy{}
		rr := httptest.NewRecorder()
		RequireSession(stubVerifier{}, spy, logger)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/votes", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, rr.Body.String())
		assert.Equal(t, []string{"missing token"}, spy.reasons)
	})

	t.Run("invalid token is rejected and recorded", func(t *testing.T) {
		spy := &recorderSpy{}
		v := stubVerifier{err: dErrors.New(dErrors.CodeUnauthorized, "invalid token")}
		req := httptest.NewRequest(http.MethodPost, "/votes", nil)
		req.Header.Set("Authorization", "Bearer forged")
		rr := httptest.NewRecorder()

		RequireSession(v, spy, logger)(next).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, []string{"invalid session"}, spy.reasons)
	})

	t.Run("verifier outage is an internal error", func(t *testing.T) {
		spy := &recorderSpy{}
		v := stubVerifier{err: errors.New("voter directory unavailable")}
		req := httptest.NewRequest(http.MethodPost, "/votes", nil)
		req.Header.Set("Authorization", "Bearer good")
		rr := httptest.NewRecorder()

		RequireSession(v, spy, logger)(next).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Empty(t, spy.reasons)
	})
}
