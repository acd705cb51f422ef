package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditkit/pkg/redis"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLocker(t *testing.T) {
	t.Parallel()

	t.Run("exclusive until released", func(t *testing.T) {
		t.Parallel()
		_, client := setupRedis(t)
		locker := redis.NewLocker(client, "test:")
		ctx := context.Background()

		release, err := locker.Acquire(ctx, "sweep", time.Minute)
		require.NoError(t, err)

		_, err = locker.Acquire(ctx, "sweep", time.Minute)
		assert.ErrorIs(t, err, redis.ErrLockNotAcquired)

		require.NoError(t, release(ctx))

		release2, err := locker.Acquire(ctx, "sweep", time.Minute)
		require.NoError(t, err)
		require.NoError(t, release2(ctx))
	})

	t.Run("different names do not collide", func(t *testing.T) {
		t.Parallel()
		_, client := setupRedis(t)
		locker := redis.NewLocker(client, "test:")
		ctx := context.Background()

		_, err := locker.Acquire(ctx, "a", time.Minute)
		require.NoError(t, err)
		_, err = locker.Acquire(ctx, "b", time.Minute)
		require.NoError(t, err)
	})

	t.Run("expired lease cannot release new owner", func(t *testing.T) {
		t.Parallel()
		mr, client := setupRedis(t)
		locker := redis.NewLocker(client, "test:")
		ctx := context.Background()

		stale, err := locker.Acquire(ctx, "sweep", time.Second)
		require.NoError(t, err)
		mr.FastForward(2 * time.Second)

		fresh, err := locker.Acquire(ctx, "sweep", time.Minute)
		require.NoError(t, err)

		assert.ErrorIs(t, stale(ctx), redis.ErrLockNotHeld)
		assert.True(t, mr.Exists("test:sweep"))
		require.NoError(t, fresh(ctx))
		assert.False(t, mr.Exists("test:sweep"))
	})

	t.Run("nil client panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { redis.NewLocker(nil, "") })
	})
}

func TestConnect(t *testing.T) {
	t.Parallel()

	t.Run("connects", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		client, err := redis.Connect(context.Background(), redis.Config{
			ConnectionURL: "redis://" + mr.Addr() + "/0",
			RetryAttempts: 1,
		})
		require.NoError(t, err)
		defer client.Close()
		require.NoError(t, redis.Healthcheck(client)(context.Background()))
	})

	t.Run("empty url", func(t *testing.T) {
		t.Parallel()
		_, err := redis.Connect(context.Background(), redis.Config{})
		assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
	})

	t.Run("bad url", func(t *testing.T) {
		t.Parallel()
		_, err := redis.Connect(context.Background(), redis.Config{ConnectionURL: "://nope"})
		assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
	})
}
