// Package ratelimit throttles verification mail resends with a Redis
// fixed-window counter.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/rentdesk/internal/common"
	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps failures talking to Redis.
var ErrUnavailable = errors.New("rate limiter unavailable")

const keyPrefix = "rentdesk:resend:"

// hitScript counts one hit and starts the window on a key that has no
// expiry, so a counter can never outlive its window.
var hitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisLimiter allows at most limit hits per key within window.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
}

func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

// Allow records one hit for key. It returns common.ErrTooManyRequests once
// the window's budget is spent.
func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	k := keyPrefix + key

	count, err := hitScript.Run(ctx, l.client, []string{k}, l.window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count > int64(l.limit) {
		return common.ErrTooManyRequests
	}

	return nil
}
