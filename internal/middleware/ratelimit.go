package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether another request for key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// RateLimiter implements a simple in-memory rate limiter using a sliding window
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	window   time.Duration
	maxReqs  int
	now      func() time.Time
}

// NewRateLimiter creates a new in-memory rate limiter. Stale keys are pruned until ctx is done.
func NewRateLimiter(ctx context.Context, window time.Duration, maxReqs int) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		window:   window,
		maxReqs:  maxReqs,
		now:      time.Now,
	}
	go rl.cleanup(ctx, time.Hour)
	return rl
}

// Allow checks if a request is allowed for the given key
func (rl *RateLimiter) Allow(_ context.Context, key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	filtered := prune(rl.requests[key], now.Add(-rl.window))
	if len(filtered) >= rl.maxReqs {
		rl.requests[key] = filtered
		return false
	}
	rl.requests[key] = append(filtered, now)
	return true
}

func prune(reqs []time.Time, cutoff time.Time) []time.Time {
	filtered := make([]time.Time, 0, len(reqs))
	for _, t := range reqs {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// cleanup periodically removes old entries to prevent memory leaks
func (rl *RateLimiter) cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := rl.now().Add(-rl.window)
			for key, reqs := range rl.requests {
				if filtered := prune(reqs, cutoff); len(filtered) == 0 {
					delete(rl.requests, key)
				} else {
					rl.requests[key] = filtered
				}
			}
			rl.mu.Unlock()
		}
	}
}

// RedisRateLimiter counts requests per fixed window in Redis so the cap holds across instances.
type RedisRateLimiter struct {
	client  *redis.Client
	window  time.Duration
	maxReqs int
	prefix  string
	logger  *slog.Logger
}

// NewRedisRateLimiter creates a Redis-backed limiter.
func NewRedisRateLimiter(client *redis.Client, window time.Duration, maxReqs int, logger *slog.Logger) *RedisRateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRateLimiter{
		client:  client,
		window:  window,
		maxReqs: maxReqs,
		prefix:  "smsverify:rl:",
		logger:  logger,
	}
}

// Allow fails open on cache errors. The counter and its expiry are written in one
// transaction; EXPIRE NX also repairs a counter left without a TTL.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	redisKey := rl.prefix + key
	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.Warn("rate limit check failed", "error", err)
		return true
	}
	return incr.Val() <= int64(rl.maxReqs)
}

// NoLimit allows every request.
type NoLimit struct{}

func (NoLimit) Allow(context.Context, string) bool { return true }

// GetIPKey extracts the client IP from RemoteAddr for rate limiting. The source port is
// dropped so that new connections share a budget. Forwarding headers are only honored
// through chi's RealIP middleware, which rewrites RemoteAddr upstream of this call.
func GetIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// GetPhoneKey creates a rate limit key from phone number
func GetPhoneKey(phone string) string {
	return "phone:" + phone
}
