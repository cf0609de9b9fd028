package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares windows across server instances.
type RedisLimiter struct {
	client *redis.Client
	policy Policy
}

// NewRedisLimiter connects to addr and verifies the connection.
func NewRedisLimiter(ctx context.Context, addr string, policy Policy) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisLimiter{client: client, policy: policy}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key Key) (Decision, error) {
	bucket := key.bucket()

	count, err := l.client.Incr(ctx, bucket).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("redis incr: %w", err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, bucket, l.policy.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("redis pexpire: %w", err)
		}
	}

	var ttl time.Duration
	if count > int64(l.policy.Limit) {
		ttl, err = l.client.PTTL(ctx, bucket).Result()
		if err != nil {
			return Decision{}, fmt.Errorf("redis pttl: %w", err)
		}
		if ttl < 0 {
			// a crash between INCR and PEXPIRE would leave the window open forever
			if err := l.client.PExpire(ctx, bucket, l.policy.Window).Err(); err != nil {
				return Decision{}, fmt.Errorf("redis pexpire: %w", err)
			}
			ttl = l.policy.Window
		}
	}

	return decide(l.policy, count, ttl), nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
