package rediscache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the key only if it still holds our token, so an
// expired lease never releases somebody else's lock.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a lease-based keylock.Locker shared between processes (bot-api
// and bot-worker). The lease must outlive the guarded work.
type Locker struct {
	c      *redis.Client
	prefix string
	lease  time.Duration
	retry  time.Duration
}

func NewLocker(c *redis.Client, prefix string, lease time.Duration) *Locker {
	if lease <= 0 {
		lease = time.Minute
	}
	return &Locker{c: c, prefix: prefix, lease: lease, retry: 25 * time.Millisecond}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	k := l.prefix + "lock:" + key
	token := uuid.NewString()

	for {
		ok, err := l.c.SetNX(ctx, k, token, l.lease).Result()
		if err != nil {
			return nil, errors.Wrap(err, "redis lock")
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// Unlock must succeed even if the caller's context is already done.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = unlockScript.Run(ctx, l.c, []string{k}, token).Err()
	}, nil
}
