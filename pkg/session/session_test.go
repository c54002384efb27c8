package session

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevoker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryRevoker()
	m.now = func() time.Time { return now }

	revoked, err := m.IsRevoked(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, m.Revoke(ctx, "s1", time.Minute))
	revoked, err = m.IsRevoked(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = m.IsRevoked(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, revoked, "entry expires with the token")
}

func TestMemoryRevokerIgnoresEmptyAndExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRevoker()

	require.NoError(t, m.Revoke(ctx, "", time.Minute))
	require.NoError(t, m.Revoke(ctx, "s2", 0))
	assert.Empty(t, m.revoked)

	revoked, err := m.IsRevoked(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevokerSkipsNoop(t *testing.T) {
	// Nothing listens here; no-op calls must not reach the server.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	r := NewRedisRevoker(rdb)
	defer r.Close()

	ctx := context.Background()
	require.NoError(t, r.Revoke(ctx, "s1", -time.Second))
	revoked, err := r.IsRevoked(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)

	assert.Equal(t, "blacklist:session:s1", blacklistKey("s1"))
}

func TestNewRedisRevokerFromURLRejectsBadURL(t *testing.T) {
	_, err := NewRedisRevokerFromURL(context.Background(), "not a url")
	require.Error(t, err)
}
