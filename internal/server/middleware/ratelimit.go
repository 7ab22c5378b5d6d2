package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/juju/ratelimit"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// RateLimiter keeps one token bucket per client IP. Buckets of clients that
// go quiet expire from the cache.
type RateLimiter struct {
	buckets *gocache.Cache
	limit   int64 // requests per minute
	logger  *zerolog.Logger
}

// NewRateLimiter creates a limiter allowing limit requests per minute per IP,
// with bursts of up to limit.
func NewRateLimiter(limit int, logger *zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		buckets: gocache.New(10*time.Minute, 5*time.Minute),
		limit:   int64(limit),
		logger:  logger,
	}
}

// bucket returns or creates the bucket for ip.
func (rl *RateLimiter) bucket(ip string) *ratelimit.Bucket {
	if b, ok := rl.buckets.Get(ip); ok {
		rl.buckets.SetDefault(ip, b)
		return b.(*ratelimit.Bucket)
	}
	b := ratelimit.NewBucketWithQuantum(time.Minute, rl.limit, rl.limit)
	// Add fails when a concurrent request created the bucket first.
	if err := rl.buckets.Add(ip, b, gocache.DefaultExpiration); err != nil {
		if existing, ok := rl.buckets.Get(ip); ok {
			return existing.(*ratelimit.Bucket)
		}
	}
	return b
}

// allow takes one token for ip.
func (rl *RateLimiter) allow(ip string) bool {
	return rl.bucket(ip).TakeAvailable(1) == 1
}

// clientIP prefers the first X-Forwarded-For hop, then the remote host.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimit middleware limits requests per IP address.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			if !rl.allow(ip) {
				rl.logger.Warn().
					Str("ip", ip).
					Str("path", r.URL.Path).
					Msg("Rate limit exceeded")

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				if _, writeErr := w.Write([]byte(`{"data":null,"error":{"code":"RATE_LIMITED","message":"Rate limit exceeded","details":"Too many requests. Please try again later."}}`)); writeErr != nil {
					rl.logger.Error().Err(writeErr).Msg("Failed to write rate limit error response")
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
