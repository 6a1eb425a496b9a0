package vote

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"

	id "ballotguard/pkg/domain"
)

// NonceSize is the length of the receipt nonce in bytes.
const NonceSize = 32

// commitmentDomain separates vote commitments from any other SHA3 use.
const commitmentDomain = "ballotguard/vote-commitment/v1"

// NewNonce draws a fresh receipt nonce.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("draw nonce: %w", err)
	}
	return nonce, nil
}

// DeriveCommitment hashes voter, choice and nonce with SHA3-256. Each field is
// length-prefixed so no two distinct inputs share an encoding.
func DeriveCommitment(voterID id.VoterID, choiceID id.ChoiceID, nonce []byte) string {
	h := sha3.New256()
	writeField(h, []byte(commitmentDomain))
	writeField(h, []byte(voterID.String()))
	writeField(h, []byte(choiceID.String()))
	writeField(h, nonce)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyCommitment recomputes the commitment in constant time.
func VerifyCommitment(commitment string, voterID id.VoterID, choiceID id.ChoiceID, nonce []byte) bool {
	want := DeriveCommitment(voterID, choiceID, nonce)
	return subtle.ConstantTimeCompare([]byte(want), []byte(commitment)) == 1
}

func writeField(w io.Writer, b []byte) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(b)))
	_, _ = w.Write(prefix[:])
	_, _ = w.Write(b)
}
