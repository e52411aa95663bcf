package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, Options) {
	mr := miniredis.RunT(t)
	return mr, Options{Addr: mr.Addr(), Prefix: "t:"}
}

func TestRedisCache_GetSet(t *testing.T) {
	mr, opts := newTestClient(t)
	c := New(NewClient(opts), opts.Prefix)

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.True(t, mr.Exists("t:k"))

	b, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)

	_, ok, err = c.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_GetError(t *testing.T) {
	mr, opts := newTestClient(t)
	c := New(NewClient(opts), opts.Prefix)
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
}

func TestRateLimiter_Allow(t *testing.T) {
	_, opts := newTestClient(t)
	rl := NewRateLimiter(NewClient(opts), opts.Prefix)

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)
}

func TestLocker_ExclusiveAndRelease(t *testing.T) {
	mr, opts := newTestClient(t)
	l := NewLocker(NewClient(opts), opts.Prefix, time.Minute)

	unlock, err := l.Lock(context.Background(), "shipment:u|1")
	require.NoError(t, err)
	require.True(t, mr.Exists("t:lock:shipment:u|1"))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "shipment:u|1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	require.False(t, mr.Exists("t:lock:shipment:u|1"))

	unlock2, err := l.Lock(context.Background(), "shipment:u|1")
	require.NoError(t, err)
	unlock2()
}

func TestLocker_ExpiredLeaseNotReleasedByOldHolder(t *testing.T) {
	mr, opts := newTestClient(t)
	l := NewLocker(NewClient(opts), opts.Prefix, time.Second)

	unlockOld, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	unlockNew, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	unlockOld()
	require.True(t, mr.Exists("t:lock:k"))

	unlockNew()
	require.False(t, mr.Exists("t:lock:k"))
}
