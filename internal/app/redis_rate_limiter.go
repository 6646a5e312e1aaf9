package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRateLimitPrefix = "lease:rate_limit"

// RedisRateLimiter counts attempts in clock-aligned windows shared by every
// service instance. A window's counter key expires with the window.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisRateLimiter creates a limiter storing counters under prefix.
func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultRateLimitPrefix
	}
	return &RedisRateLimiter{client: client, prefix: prefix, now: time.Now}
}

// ConsumeRateLimit records one attempt by subject within scope and returns
// the attempt count of the current window and the seconds until it closes.
// The caller compares count against limit.
func (r *RedisRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	if r == nil || r.client == nil || limit <= 0 {
		return 0, 0, nil
	}
	scope = strings.TrimSpace(scope)
	subject = strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return 0, 0, nil
	}
	if window < time.Second {
		window = time.Second
	}

	key, remaining := r.windowKey(scope, subject, window, r.now())

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, remaining+time.Second)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count %s attempt: %w", scope, err)
	}

	return int(incr.Val()), retryAfterSeconds(remaining), nil
}

// windowKey names the counter for the window containing now and reports how
// long that window stays open.
func (r *RedisRateLimiter) windowKey(scope, subject string, window time.Duration, now time.Time) (string, time.Duration) {
	start := now.Truncate(window)
	remaining := start.Add(window).Sub(now)
	return fmt.Sprintf("%s:%s:%s:%d", r.prefix, scope, subject, start.Unix()), remaining
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
