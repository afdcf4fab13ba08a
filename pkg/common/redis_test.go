package common

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/beam-cloud/gmail2tg/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisClient) {
	t.Helper()
	s := miniredis.RunT(t)

	rdb, err := NewRedisClient(types.RedisConfig{
		Addrs:     []string{s.Addr()},
		Mode:      types.RedisModeSingle,
		KeyPrefix: "test",
	}, WithClientName("gmail2tg-test"))
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	return s, rdb
}

func TestNewRedisClient_NoAddrs(t *testing.T) {
	_, err := NewRedisClient(types.RedisConfig{})
	assert.Error(t, err)
}

func TestRedisLock_ExclusiveBetweenHolders(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	first := NewRedisLock(rdb)
	second := NewRedisLock(rdb)

	require.NoError(t, first.Acquire(ctx, "lock:a", RedisLockOptions{TtlS: 30}))
	assert.True(t, first.Held("lock:a"))

	err := second.Acquire(ctx, "lock:a", RedisLockOptions{TtlS: 30})
	assert.ErrorIs(t, err, ErrLockNotObtained)
	assert.False(t, second.Held("lock:a"))

	require.NoError(t, first.Refresh(ctx, "lock:a", 30*time.Second))
	require.NoError(t, first.Release("lock:a"))
	assert.False(t, first.Held("lock:a"))

	assert.NoError(t, second.Acquire(ctx, "lock:a", RedisLockOptions{TtlS: 30}))
}

func TestRedisLock_RefreshAfterExpiry(t *testing.T) {
	s, rdb := newTestRedis(t)
	ctx := context.Background()

	first := NewRedisLock(rdb)
	second := NewRedisLock(rdb)

	require.NoError(t, first.Acquire(ctx, "lock:b", RedisLockOptions{TtlS: 1}))
	s.FastForward(2 * time.Second)
	require.NoError(t, second.Acquire(ctx, "lock:b", RedisLockOptions{TtlS: 30}))

	err := first.Refresh(ctx, "lock:b", 30*time.Second)
	assert.ErrorIs(t, err, ErrLockNotObtained)
	assert.False(t, first.Held("lock:b"))
}

func TestRedisLock_ReleaseUnknownKey(t *testing.T) {
	_, rdb := newTestRedis(t)
	assert.NoError(t, NewRedisLock(rdb).Release("never-taken"))
}
