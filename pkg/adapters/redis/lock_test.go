package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/loom/pkg/adapters/redis"
	"github.com/aretw0/loom/pkg/domain"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr := miniredis.RunT(t)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	// 1. Acquire Lock
	unlock, err := locker.Lock(ctx, "doc-1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)
	assert.True(t, mr.Exists("test:lock:doc-1"), "Lock key should be set in Redis")

	// 2. Release Lock
	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:doc-1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	mr := miniredis.RunT(t)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:")
	ctx := context.Background()

	// 1. Client 1 acquires lock
	unlock1, err := locker1.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)

	// 2. Client 2 polls until its context ends
	ctxTimeout, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()

	_, err = locker2.Lock(ctxTimeout, "shared", 5*time.Second)
	assert.ErrorIs(t, err, domain.ErrLockAcquire)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 3. Client 1 unlocks, client 2 gets it
	require.NoError(t, unlock1(ctx))

	unlock2, err := locker2.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)
	defer unlock2(ctx)
	assert.True(t, mr.Exists("test:lock:shared"))
}

func TestRedisLocker_UnlockKeepsForeignLock(t *testing.T) {
	mr := miniredis.RunT(t)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "doc-1", time.Second)
	require.NoError(t, err)

	// The lock expires and someone else takes it.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("test:lock:doc-1", "other"))

	require.NoError(t, unlock(ctx))
	got, err := mr.Get("test:lock:doc-1")
	require.NoError(t, err)
	assert.Equal(t, "other", got)
}
