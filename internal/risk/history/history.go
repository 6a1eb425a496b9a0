// Package history keeps short-lived counters the risk collectors compare a
// request against: distinct IPs per voter, distinct voters per IP or device,
// cast attempts per voter.
package history

import (
	"context"
	"time"
)

// Store is a TTL-bounded set and counter store. Every write refreshes the TTL
// of its key so a window slides with activity.
type Store interface {
	// AddMember adds member to the set at key and returns the set's cardinality.
	AddMember(ctx context.Context, key, member string, ttl time.Duration) (int64, error)
	// Increment bumps the counter at key and returns the new value.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

const keyPrefix = "ballotguard:risk:"

// Key joins parts under the risk namespace.
func Key(parts ...string) string {
	n := len(keyPrefix)
	for _, p := range parts {
		n += len(p) + 1
	}
	b := make([]byte, 0, n)
	b = append(b, keyPrefix...)
	for i, p := range parts {
		if i > 0 {
			b = append(b, ':')
		}
		b = append(b, p...)
	}
	return string(b)
}
