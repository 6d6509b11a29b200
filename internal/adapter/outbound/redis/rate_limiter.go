package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/uniedit/paygate/internal/port/outbound"
)

const rateLimitKeyPrefix = "paygate:ratelimit:"

// rateLimiter implements outbound.RateLimiterPort with a sliding window log
// kept in a sorted set per key.
type rateLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter adapter.
func NewRateLimiter(client *redis.Client) outbound.RateLimiterPort {
	return &rateLimiter{client: client, now: time.Now}
}

func (r *rateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := rateLimitKeyPrefix + key
	now := r.now().UnixNano()

	count, err := r.count(ctx, fullKey, now, window)
	if err != nil {
		return false, err
	}
	if count >= int64(limit) {
		return false, nil
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, fullKey, redis.Z{Score: float64(now), Member: uuid.NewString()})
		pipe.PExpire(ctx, fullKey, window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *rateLimiter) GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	count, err := r.count(ctx, rateLimitKeyPrefix+key, r.now().UnixNano(), window)
	if err != nil {
		return 0, err
	}
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// count drops entries older than the window and returns what is left.
func (r *rateLimiter) count(ctx context.Context, key string, now int64, window time.Duration) (int64, error) {
	windowStart := now - window.Nanoseconds()

	var countCmd *redis.IntCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(windowStart, 10))
		countCmd = pipe.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return countCmd.Val(), nil
}

// Compile-time check
var _ outbound.RateLimiterPort = (*rateLimiter)(nil)
