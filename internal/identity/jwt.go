package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "ballotguard/pkg/domain"
	dErrors "ballotguard/pkg/domain-errors"
	"ballotguard/pkg/platform/sentinel"
)

// Claims is the voter session token payload.
type Claims struct {
	VoterID           string `json:"voter_id"`
	SessionID         string `json:"session_id"`
	OTPVerified       bool   `json:"otp_verified"`
	BiometricVerified bool   `json:"biometric_verified"`
	StepUpAt          int64  `json:"step_up_at,omitempty"`
	jwt.RegisteredClaims
}

// VoterDirectory is the authoritative source of a voter's verification flags.
// When configured, stored flags override what the token claims.
type VoterDirectory interface {
	VerificationFlags(ctx context.Context, voterID id.VoterID) (id.VerificationFlags, error)
}

// Verifier validates and issues voter session tokens.
type Verifier struct {
	signingKey []byte
	issuer     string
	audience   string
	directory  VoterDirectory
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

func WithVoterDirectory(d VoterDirectory) Option {
	return func(v *Verifier) { v.directory = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func NewVerifier(signingKey, issuer, audience string, opts ...Option) *Verifier {
	v := &Verifier{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// IssueSession signs a session token. The login flow lives elsewhere; this is
// used by tooling and tests.
func (v *Verifier) IssueSession(voterID id.VoterID, sessionID id.SessionID, flags id.VerificationFlags, expiresIn time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		VoterID:           voterID.String(),
		SessionID:         sessionID.String(),
		OTPVerified:       flags.OTPVerified,
		BiometricVerified: flags.BiometricVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    v.issuer,
			Audience:  []string{v.audience},
			ID:        uuid.NewString(),
		},
	}
	if !flags.StepUpAt.IsZero() {
		claims.StepUpAt = flags.StepUpAt.Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
}

// VerifySession returns the session for a valid token. Token problems yield
// CodeUnauthorized; directory outages are returned as infrastructure errors.
func (v *Verifier) VerifySession(ctx context.Context, token string) (*Session, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	voterID, err := id.ParseVoterID(claims.VoterID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token session")
	}

	flags := id.VerificationFlags{
		OTPVerified:       claims.OTPVerified,
		BiometricVerified: claims.BiometricVerified,
	}
	if claims.StepUpAt > 0 {
		flags.StepUpAt = time.Unix(claims.StepUpAt, 0).UTC()
	}

	if v.directory != nil {
		stored, err := v.directory.VerificationFlags(ctx, voterID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown voter")
			}
			return nil, fmt.Errorf("load voter verification: %w", err)
		}
		if v.logger != nil && (stored.OTPVerified != flags.OTPVerified || stored.BiometricVerified != flags.BiometricVerified) {
			v.logger.DebugContext(ctx, "token verification flags differ from voter record",
				"voter_id", voterID.String(),
			)
		}
		flags.OTPVerified = stored.OTPVerified
		flags.BiometricVerified = stored.BiometricVerified
	}

	session := &Session{
		VoterID:   voterID,
		SessionID: sessionID,
		Flags:     flags,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}
