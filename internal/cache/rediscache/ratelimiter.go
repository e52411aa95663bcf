package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter shared by every worker replica.
type RateLimiter struct {
	c      *redis.Client
	prefix string
}

func NewRateLimiter(c *redis.Client, prefix string) *RateLimiter {
	return &RateLimiter{c: c, prefix: prefix}
}

// Allow increments the window counter under key and sets its TTL.
// Returns (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, rl.prefix+key)
	pipe.Expire(ctx, rl.prefix+key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}
