// Package middleware holds the HTTP middleware used by the API server.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	httprateredis "github.com/go-chi/httprate-redis"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefixKey namespaces rate limit counters in Redis.
const DefaultPrefixKey = "cisurl:ratelimit"

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	RequestLimit   int
	WindowDuration time.Duration
	// RedisClient shares counters between server instances. Counters are kept in memory
	// when it is nil.
	RedisClient *redis.Client
	PrefixKey   string
}

// DefaultRateLimitConfig returns a default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestLimit:   100,
		WindowDuration: time.Minute,
	}
}

// RateLimit returns a middleware that rate limits requests per client IP address.
func RateLimit(config RateLimitConfig) func(next http.Handler) http.Handler {
	defaults := DefaultRateLimitConfig()
	if config.RequestLimit <= 0 {
		config.RequestLimit = defaults.RequestLimit
	}
	if config.WindowDuration <= 0 {
		config.WindowDuration = defaults.WindowDuration
	}
	if config.PrefixKey == "" {
		config.PrefixKey = DefaultPrefixKey
	}

	options := []httprate.Option{
		httprate.WithLimitHandler(limitExceeded),
		httprate.WithKeyByRealIP(),
	}

	if config.RedisClient != nil {
		options = append(options, httprateredis.WithRedisLimitCounter(&httprateredis.Config{
			Client:    config.RedisClient,
			PrefixKey: config.PrefixKey,
		}))
	}

	return httprate.NewRateLimiter(config.RequestLimit, config.WindowDuration, options...).Handler
}

func limitExceeded(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate limit exceeded","kind":"rate_limited","status_code":429}`))
}
