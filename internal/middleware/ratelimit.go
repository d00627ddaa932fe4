package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/AnshRaj112/agentdesk-backend/pkg/clientip"
	"github.com/redis/go-redis/v9"
)

const (
	// RateLimitKeyPrefix is the Redis key prefix for request counters.
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs.
	BlockedIPKeyPrefix = "blocked_ip:"
)

// RedisRateLimiter counts requests per client IP in a fixed window shared by
// every instance. Clients that exceed the limit are blocked for BlockFor.
type RedisRateLimiter struct {
	client      *redis.Client
	Window      time.Duration
	MaxRequests int
	BlockFor    time.Duration
}

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:      client,
		Window:      time.Minute,
		MaxRequests: 120,
		BlockFor:    10 * time.Minute,
	}
}

// Middleware fails open when Redis is unavailable.
func (l *RedisRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := clientip.Key(r)

		blockedKey := BlockedIPKeyPrefix + ip
		blocked, err := l.client.Exists(ctx, blockedKey).Result()
		if err == nil && blocked > 0 {
			writeError(w, http.StatusTooManyRequests, "Your IP has been temporarily blocked due to excessive requests. Please try again later.")
			return
		}

		key := RateLimitKeyPrefix + ip
		n, err := l.client.Incr(ctx, key).Result()
		if err != nil {
			slog.WarnContext(ctx, "rate limiter unavailable", slog.String("error", err.Error()))
			next.ServeHTTP(w, r)
			return
		}
		if n == 1 {
			l.client.Expire(ctx, key, l.Window)
		}

		count := int(n)
		if count > l.MaxRequests {
			if err := l.client.Set(ctx, blockedKey, "1", l.BlockFor).Err(); err != nil {
				slog.WarnContext(ctx, "failed to block ip", slog.String("error", err.Error()))
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(l.BlockFor.Seconds())))
			writeError(w, http.StatusTooManyRequests, fmt.Sprintf("Rate limit exceeded. Try again in %d minutes.", int(l.BlockFor.Minutes())))
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.MaxRequests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(l.MaxRequests-count))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(l.Window).Unix(), 10))

		next.ServeHTTP(w, r)
	})
}
