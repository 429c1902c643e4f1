package redis

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST not set")
	}
	port := 6379
	if p, err := strconv.Atoi(os.Getenv("REDIS_PORT")); err == nil {
		port = p
	}

	client, err := NewClient(context.Background(), Config{Host: host, Port: port}, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLocker_AcquireRelease(t *testing.T) {
	client := getTestClient(t)
	locker := NewLocker(client, "fern:test:lock:", time.Second, 50*time.Millisecond)
	ctx := context.Background()
	key := "guest-" + strconv.FormatInt(time.Now().UnixNano(), 10)

	lock, err := locker.Acquire(ctx, key, time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, key, time.Second)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	_, err = locker.TryAcquire(ctx, key, time.Second, 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, lock.Release(ctx))
	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)
}

func TestLocker_WithLock(t *testing.T) {
	client := getTestClient(t)
	locker := NewLocker(client, "fern:test:lock:", time.Second, 20*time.Millisecond)
	ctx := context.Background()
	key := "guest-" + strconv.FormatInt(time.Now().UnixNano(), 10)

	err := locker.WithLock(ctx, key, func(ctx context.Context) error {
		return locker.WithLock(ctx, key, func(context.Context) error { return nil })
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	ran := false
	require.NoError(t, locker.WithLock(ctx, key, func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}
