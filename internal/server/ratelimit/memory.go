package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter keeps one token bucket per key in process. Used when no
// Redis is configured. A bucket holds Limit tokens and refills one every
// Window/Limit.
type MemoryLimiter struct {
	mu      sync.Mutex
	policy  Policy
	buckets map[string]*rate.Limiter
	now     func() time.Time
}

func NewMemoryLimiter(policy Policy) *MemoryLimiter {
	return &MemoryLimiter{policy: policy, buckets: make(map[string]*rate.Limiter), now: time.Now}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key Key) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket := key.bucket()

	lim, ok := l.buckets[bucket]
	if !ok {
		l.gc(now)
		lim = l.newBucket()
		l.buckets[bucket] = lim
	}

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return Decision{Allowed: false, RetryAfter: l.policy.Window}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		// a refused call must not hold a token
		r.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}

	return Decision{Allowed: true, Remaining: int(lim.TokensAt(now))}, nil
}

func (l *MemoryLimiter) newBucket() *rate.Limiter {
	if l.policy.Limit <= 0 || l.policy.Window <= 0 {
		return rate.NewLimiter(0, 0)
	}
	return rate.NewLimiter(rate.Every(l.policy.Window/time.Duration(l.policy.Limit)), l.policy.Limit)
}

// gc drops buckets that have refilled completely; called only when a new
// bucket is added.
func (l *MemoryLimiter) gc(now time.Time) {
	for k, lim := range l.buckets {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(l.buckets, k)
		}
	}
}
