package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"ballotguard/internal/security"
	id "ballotguard/pkg/domain"
)

func TestBuildQuery(t *testing.T) {
	t.Run("empty filter only limits", func(t *testing.T) {
		q, args := buildQuery(security.Filter{}.Normalize())
		assert.Equal(t, "SELECT id, type, voter_id, severity, details, created_at, resolved FROM security_events ORDER BY created_at DESC, id LIMIT $1", q)
		assert.Equal(t, []any{100}, args)
	})

	t.Run("all constraints are positional", func(t *testing.T) {
		resolved := false
		voter := id.VoterID(uuid.New())
		since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		q, args := buildQuery(security.Filter{
			Types:       []security.EventType{security.EventDuplicateVote, security.EventBiometricSpoof},
			VoterID:     voter,
			Resolved:    &resolved,
			Since:       since,
			MinSeverity: 0.5,
			Limit:       10,
		})
		assert.Contains(t, q, "type = ANY($1)")
		assert.Contains(t, q, "voter_id = $2")
		assert.Contains(t, q, "resolved = $3")
		assert.Contains(t, q, "created_at >= $4")
		assert.Contains(t, q, "severity >= $5")
		assert.Contains(t, q, "LIMIT $6")
		assert.NotContains(t, q, "created_at <")
		assert.Equal(t, []any{[]string{"duplicate_vote", "biometric_spoof"}, uuid.UUID(voter), false, since, 0.5, 10}, args)
	})
}
