package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisRevoker(t *testing.T) (*RedisRevoker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRevoker(client), mr
}

func TestRedisRevoker_RevokeAndCheck(t *testing.T) {
	rev, _ := newTestRedisRevoker(t)
	ctx := context.Background()

	ok, err := rev.IsRevoked(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rev.Revoke(ctx, "token-a", time.Now().Add(time.Hour)))

	ok, err = rev.IsRevoked(ctx, "token-a")
	require.NoError(t, err)
	assert.True(t, ok)

	// unrelated tokens are unaffected
	ok, err = rev.IsRevoked(ctx, "token-b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisRevoker_EntryExpiresWithToken(t *testing.T) {
	rev, mr := newTestRedisRevoker(t)
	ctx := context.Background()

	require.NoError(t, rev.Revoke(ctx, "token-a", time.Now().Add(time.Minute)))

	mr.FastForward(2 * time.Minute)

	ok, err := rev.IsRevoked(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisRevoker_PastExpiryIsNoop(t *testing.T) {
	rev, mr := newTestRedisRevoker(t)
	ctx := context.Background()

	require.NoError(t, rev.Revoke(ctx, "token-a", time.Now().Add(-time.Minute)))
	assert.Empty(t, mr.Keys())
}

func TestMemoryRevoker(t *testing.T) {
	t.Parallel()

	rev := NewMemoryRevoker()
	ctx := context.Background()

	require.NoError(t, rev.Revoke(ctx, "token-a", time.Now().Add(time.Hour)))
	ok, err := rev.IsRevoked(ctx, "token-a")
	require.NoError(t, err)
	assert.True(t, ok)

	// an entry past natural expiry is purged on the next lookup
	require.NoError(t, rev.Revoke(ctx, "token-b", time.Now().Add(-time.Second)))
	ok, err = rev.IsRevoked(ctx, "token-b")
	require.NoError(t, err)
	assert.False(t, ok)
}
