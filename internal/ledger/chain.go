// Package ledger anchors vote commitments on a tamper-evident ledger.
//
// EthereumAnchor writes each commitment into a self-addressed transaction and
// waits for its receipt. LocalChain is an in-process hash chain for
// development. RetryingAnchor wraps either with a hard timeout, bounded retries
// and a circuit breaker.
package ledger

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"
)

const localReferencePrefix = "local:"

var ErrInvalidCommitment = errors.New("commitment must be a 32-byte hex digest")

// Block is one link of the local chain.
type Block struct {
	Height     uint64
	Commitment string
	PrevHash   string
	Hash       string
}

// LocalChain is an append-only SHA3 hash chain held in memory.
type LocalChain struct {
	mu     sync.RWMutex
	blocks []Block
}

func NewLocalChain() *LocalChain {
	return &LocalChain{}
}

// Anchor appends the commitment and returns "local:<height>:<hash>".
func (c *LocalChain) Anchor(ctx context.Context, commitment string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := decodeCommitment(commitment); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := ""
	if n := len(c.blocks); n > 0 {
		prev = c.blocks[n-1].Hash
	}
	b := Block{
		Height:     uint64(len(c.blocks)),
		Commitment: commitment,
		PrevHash:   prev,
	}
	b.Hash = blockHash(b)
	c.blocks = append(c.blocks, b)
	return fmt.Sprintf("%s%d:%s", localReferencePrefix, b.Height, b.Hash), nil
}

// Lookup returns the block a reference points at.
func (c *LocalChain) Lookup(reference string) (Block, bool) {
	rest, ok := strings.CutPrefix(reference, localReferencePrefix)
	if !ok {
		return Block{}, false
	}
	heightStr, hash, ok := strings.Cut(rest, ":")
	if !ok {
		return Block{}, false
	}
	height, err := strconv.ParseUint(heightStr, 10, 64)
	if err != nil {
		return Block{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if height >= uint64(len(c.blocks)) || c.blocks[height].Hash != hash {
		return Block{}, false
	}
	return c.blocks[height], true
}

// Verify walks the chain and returns the height of the first broken link.
func (c *LocalChain) Verify() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prev := ""
	for i, b := range c.blocks {
		if b.PrevHash != prev || blockHash(b) != b.Hash {
			return i, false
		}
		prev = b.Hash
	}
	return len(c.blocks), true
}

func (c *LocalChain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

func blockHash(b Block) string {
	h := sha3.New256()
	var height [8]byte
	binary.BigEndian.PutUint64(height[:], b.Height)
	h.Write(height[:])
	h.Write([]byte(b.PrevHash))
	h.Write([]byte(b.Commitment))
	return hex.EncodeToString(h.Sum(nil))
}

func decodeCommitment(commitment string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(commitment, "0x"))
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidCommitment
	}
	return raw, nil
}
