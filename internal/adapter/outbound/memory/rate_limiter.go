package memory

import (
	"context"
	"sync"
	"time"

	"github.com/uniedit/paygate/internal/port/outbound"
	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter implements outbound.RateLimiterPort with token buckets.
// Each key refills limit tokens per window with a burst of limit.
type rateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates an in-memory rate limiter.
func NewRateLimiter() outbound.RateLimiterPort {
	return &rateLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (r *rateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	b := r.bucket(key, limit, window, now)
	r.sweep(window, now)
	return b.limiter.AllowN(now, 1), nil
}

func (r *rateLimiter) GetRemaining(_ context.Context, key string, limit int, window time.Duration) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	b := r.bucket(key, limit, window, now)
	remaining := int(b.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (r *rateLimiter) bucket(key string, limit int, window time.Duration, now time.Time) *bucket {
	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)}
		r.buckets[key] = b
	}
	b.lastSeen = now
	return b
}

// sweep drops buckets idle for more than a window; they would be full again anyway.
func (r *rateLimiter) sweep(window time.Duration, now time.Time) {
	if now.Sub(r.lastSweep) < window {
		return
	}
	r.lastSweep = now
	for k, b := range r.buckets {
		if now.Sub(b.lastSeen) > window {
			delete(r.buckets, k)
		}
	}
}
