package ratelimit

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Manish-basnet10/Blood-Donation/internal/http/response"
	"github.com/Manish-basnet10/Blood-Donation/pkg/logger"
)

// Config defines rate limiting parameters
type Config struct {
	Requests int                            // Max requests per window
	Window   time.Duration                  // Time window duration
	KeyFunc  func(r *http.Request) []string // Function to generate rate limit keys
}

// Limiter is a fixed-window counter backed by Redis.
type Limiter struct {
	rdb    *redis.Client
	config Config
}

func NewLimiter(rdb *redis.Client, config Config) *Limiter {
	return &Limiter{rdb: rdb, config: config}
}

// NewClient creates a Redis client from a URL. Returns nil if the URL is
// empty (rate limiting disabled).
func NewClient(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Middleware returns the rate limiting middleware
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil || l.rdb == nil {
				next.ServeHTTP(w, r)
				return
			}

			for _, key := range l.config.KeyFunc(r) {
				if !l.allow(r.Context(), key) {
					response.RateLimit(w, "Too many requests. Try again later.")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (l *Limiter) allow(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// Hash the key for privacy
	hasher := sha256.New()
	hasher.Write([]byte(key))
	hashedKey := fmt.Sprintf("ratelimit:%x", hasher.Sum(nil))

	count, err := l.rdb.Incr(ctx, hashedKey).Result()
	if err != nil {
		// On Redis error, allow the request (fail open)
		logger.WarnContext(ctx, "rate limit check failed", "error", err)
		return true
	}
	if count == 1 {
		l.rdb.Expire(ctx, hashedKey, l.config.Window)
	}

	return count <= int64(l.config.Requests)
}

// IPKeyFunc rate limits by client IP.
func IPKeyFunc(r *http.Request) []string {
	if ip := clientIP(r); ip != "" {
		return []string{"ip:" + ip}
	}
	return nil
}

// UserKeyFunc rate limits by the authenticated user carried in the request
// context, falling back to client IP.
func UserKeyFunc(userID func(r *http.Request) (int64, bool)) func(r *http.Request) []string {
	return func(r *http.Request) []string {
		if id, ok := userID(r); ok {
			return []string{fmt.Sprintf("user:%d", id)}
		}
		return IPKeyFunc(r)
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
