package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T, p Policy) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	l, err := NewRedisLimiter(context.Background(), mr.Addr(), p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, mr
}

func TestRedisLimiter_AdmitsUpToLimit(t *testing.T) {
	l, _ := newRedisLimiter(t, Policy{Limit: 3, Window: time.Minute})
	ctx := context.Background()
	key := Key{TenantID: "t1", UserID: "u1", Action: "documents.upload.finalize"}

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "hit %d", i+1)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)
}

func TestRedisLimiter_WindowResets(t *testing.T) {
	l, mr := newRedisLimiter(t, Policy{Limit: 1, Window: time.Minute})
	ctx := context.Background()
	key := Key{TenantID: "t1", UserID: "u1", Action: "a"}

	d, err := l.Allow(ctx, key)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Allow(ctx, key)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	mr.FastForward(61 * time.Second)

	d, err = l.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiter_KeysAreIndependent(t *testing.T) {
	l, mr := newRedisLimiter(t, Policy{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	for _, k := range []Key{
		{TenantID: "t1", UserID: "u1", Action: "init"},
		{TenantID: "t1", UserID: "u1", Action: "finalize"},
		{TenantID: "t1", UserID: "u2", Action: "init"},
		{TenantID: "t2", UserID: "u1", Action: "init"},
	} {
		d, err := l.Allow(ctx, k)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "%+v", k)
	}

	for _, k := range mr.Keys() {
		assert.NotContains(t, k, "u1")
		assert.NotContains(t, k, "t1")
	}
}

func TestRedisLimiter_RepairsMissingTTL(t *testing.T) {
	l, mr := newRedisLimiter(t, Policy{Limit: 1, Window: time.Minute})
	key := Key{TenantID: "t", UserID: "u", Action: "a"}
	require.NoError(t, mr.Set(key.bucket(), "5"))

	d, err := l.Allow(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)
	assert.Equal(t, time.Minute, mr.TTL(key.bucket()))
}

func TestNewRedisLimiter_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisLimiter(context.Background(), addr, DefaultPolicy())
	require.ErrorContains(t, err, "redis ping")
}

func TestMemoryLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(Policy{Limit: 2, Window: time.Minute})
	l.now = func() time.Time { return now }
	key := Key{TenantID: "t", UserID: "u", Action: "a"}
	ctx := context.Background()

	d, err := l.Allow(ctx, key)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	d, err = l.Allow(ctx, key)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = l.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	now = now.Add(30 * time.Second)
	d, err = l.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	now = now.Add(time.Minute)
	d, err = l.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestMemoryLimiter_RefusedCallsDoNotConsume(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(Policy{Limit: 1, Window: time.Minute})
	l.now = func() time.Time { return now }
	key := Key{TenantID: "t", UserID: "u", Action: "a"}
	ctx := context.Background()

	d, err := l.Allow(ctx, key)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	for i := 0; i < 5; i++ {
		d, err = l.Allow(ctx, key)
		require.NoError(t, err)
		require.False(t, d.Allowed)
		assert.Equal(t, time.Minute, d.RetryAfter)
	}

	now = now.Add(time.Minute)
	d, err = l.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter(Policy{Limit: 1, Window: time.Hour})
	ctx := context.Background()

	d, err := l.Allow(ctx, Key{TenantID: "t", UserID: "u1", Action: "a"})
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Allow(ctx, Key{TenantID: "t", UserID: "u2", Action: "a"})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(ctx, Key{TenantID: "t", UserID: "u1", Action: "a"})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestMemoryLimiter_ZeroLimitRefuses(t *testing.T) {
	l := NewMemoryLimiter(Policy{Limit: 0, Window: time.Minute})

	d, err := l.Allow(context.Background(), Key{TenantID: "t", UserID: "u", Action: "a"})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)
}

func TestKeyBucket(t *testing.T) {
	a := Key{TenantID: "t1", UserID: "u1", Action: "x"}.bucket()
	b := Key{TenantID: "t1u", UserID: "1", Action: "x"}.bucket()

	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "ratelimit:x:")
}

func TestDefaultPolicy(t *testing.T) {
	assert.Equal(t, Policy{Limit: 60, Window: time.Minute}, DefaultPolicy())
}
