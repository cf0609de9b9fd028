// Package ratelimit bounds how often one user may call one operation.
//
// Both limiters admit at most Limit hits per Window for a key. The Redis
// limiter counts fixed windows opened by a key's first hit; the in-process
// limiter is a token bucket with the same burst and long-run rate.
package ratelimit

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Key identifies the bucket a hit is counted against.
type Key struct {
	TenantID string
	UserID   string
	Action   string
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Policy is the per-key budget.
type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultPolicy admits 60 calls per minute.
func DefaultPolicy() Policy {
	return Policy{Limit: 60, Window: time.Minute}
}

// Limiter counts one hit for key and reports whether it is admitted.
type Limiter interface {
	Allow(ctx context.Context, key Key) (Decision, error)
}

// bucket derives the storage key; tenant and user ids are hashed so they
// never appear verbatim in the limiter's keyspace.
func (k Key) bucket() string {
	sum := blake2b.Sum256([]byte(k.TenantID + "\x00" + k.UserID))
	return "ratelimit:" + k.Action + ":" + hex.EncodeToString(sum[:16])
}

func decide(p Policy, count int64, ttl time.Duration) Decision {
	if count > int64(p.Limit) {
		if ttl <= 0 {
			ttl = p.Window
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: ttl}
	}
	return Decision{Allowed: true, Remaining: p.Limit - int(count)}
}
