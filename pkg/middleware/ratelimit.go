package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/campushq/campus/pkg/httputil"
	"github.com/campushq/campus/pkg/observability"
)

// RateLimiter is a Redis-backed fixed-window rate limiter keyed by client
// IP. It protects the unauthenticated registration endpoint; limits are
// shared across instances through Redis.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	prefix string
	logger *observability.Logger
}

// NewRateLimiter creates a new RateLimiter.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration, logger *observability.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:registration",
		logger: logger,
	}
}

// Handler wraps an HTTP handler with rate limiting. When Redis is
// unavailable the limiter fails open so registration stays usable.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := fmt.Sprintf("%s:%s", rl.prefix, clientIP(r))

		pipe := rl.redis.Pipeline()
		incr := pipe.Incr(r.Context(), key)
		pipe.Expire(r.Context(), key, rl.window)
		if _, err := pipe.Exec(r.Context()); err != nil {
			rl.logger.WithError(err).Warn("rate limiter unavailable, failing open")
			next.ServeHTTP(w, r)
			return
		}

		count := incr.Val()
		remaining := int64(rl.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rl.limit) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
