package vote

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "ballotguard/pkg/domain"
)

func TestDeriveCommitment(t *testing.T) {
	voterID := id.VoterID(uuid.New())
	nonce := bytes.Repeat([]byte{0x42}, NonceSize)

	t.Run("deterministic for the same inputs", func(t *testing.T) {
		a := DeriveCommitment(voterID, "candidate-a", nonce)
		b := DeriveCommitment(voterID, "candidate-a", nonce)
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("every field changes the commitment", func(t *testing.T) {
		base := DeriveCommitment(voterID, "candidate-a", nonce)
		otherNonce := bytes.Repeat([]byte{0x43}, NonceSize)

		assert.NotEqual(t, base, DeriveCommitment(voterID, "candidate-b", nonce))
		assert.NotEqual(t, base, DeriveCommitment(id.VoterID(uuid.New()), "candidate-a", nonce))
		assert.NotEqual(t, base, DeriveCommitment(voterID, "candidate-a", otherNonce))
	})

	t.Run("commitment does not reveal the choice", func(t *testing.T) {
		c := DeriveCommitment(voterID, "candidate-a", nonce)
		assert.NotContains(t, c, "candidate")
	})

	t.Run("length prefixes keep field boundaries", func(t *testing.T) {
		// "ab"+"c" and "a"+"bc" must not collide once concatenated.
		a := DeriveCommitment(voterID, "ab", append([]byte("c"), nonce...))
		b := DeriveCommitment(voterID, "a", append([]byte("bc"), nonce...))
		assert.NotEqual(t, a, b)
	})
}

func TestVerifyCommitment(t *testing.T) {
	voterID := id.VoterID(uuid.New())
	nonce, err := NewNonce()
	require.NoError(t, err)
	commitment := DeriveCommitment(voterID, "candidate-a", nonce)

	assert.True(t, VerifyCommitment(commitment, voterID, "candidate-a", nonce))
	assert.False(t, VerifyCommitment(commitment, voterID, "candidate-b", nonce))
	assert.False(t, VerifyCommitment(commitment, voterID, "candidate-a", make([]byte, NonceSize)))
	assert.False(t, VerifyCommitment("", voterID, "candidate-a", nonce))
}

func TestNewNonce(t *testing.T) {
	a, err := NewNonce()
	require.NoError(t, err)
	b, err := NewNonce()
	require.NoError(t, err)
	assert.Len(t, a, NonceSize)
	assert.NotEqual(t, a, b)
}
