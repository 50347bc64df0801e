package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySyncLock(t *testing.T) {
	ctx := context.Background()
	l := NewMemorySyncLock()
	now := time.Unix(1700000000, 0)
	l.clock = func() time.Time { return now }

	ok, err := l.Acquire(ctx, "int-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "int-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock must not be re-acquired")

	ok, err = l.Acquire(ctx, "int-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "locks are per key")

	require.NoError(t, l.Release(ctx, "int-1"))
	ok, err = l.Acquire(ctx, "int-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// expired locks are taken over
	now = now.Add(2 * time.Minute)
	ok, err = l.Acquire(ctx, "int-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisSyncLock(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(ctx).Err())

	prefix := "test:" + uuid.NewString() + ":"
	a := NewRedisSyncLockWithClient(client, prefix)
	b := NewRedisSyncLockWithClient(client, prefix)

	ok, err := a.Acquire(ctx, "int-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, "int-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// releasing a lock we do not own is a no-op
	require.NoError(t, b.Release(ctx, "int-1"))
	exists, err := client.Exists(ctx, prefix+"int-1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	require.NoError(t, a.Release(ctx, "int-1"))
	ok, err = b.Acquire(ctx, "int-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Release(ctx, "int-1"))
}
