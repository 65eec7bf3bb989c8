package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/bookwormhq/bookworm-service/internal/ratelimit"
	"github.com/bookwormhq/bookworm-service/internal/utils/response"
)

// BooksPerMinute caps how many books a single user may post per minute.
const BooksPerMinute = 20

type RateLimitConfig struct {
	limiters map[string]*ratelimit.TokenBucket
	limits   map[string]int64
}

func NewRateLimitConfig(redisClient *redis.Client) *RateLimitConfig {
	config := &RateLimitConfig{
		limiters: make(map[string]*ratelimit.TokenBucket),
		limits:   make(map[string]int64),
	}

	config.limiters["books"] = ratelimit.NewTokenBucket(redisClient, BooksPerMinute, BooksPerMinute)
	config.limits["books"] = BooksPerMinute

	return config
}

// RateLimitMiddleware limits the named action per authenticated user. It
// assumes the auth middleware already ran.
func (rlc *RateLimitConfig) RateLimitMiddleware(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserIDFromContext(r.Context())
			if !ok {
				response.WriteJSON(w, http.StatusUnauthorized, response.Error("user not authenticated"))
				return
			}

			limiter, exists := rlc.limiters[action]
			if !exists {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), userID, action)
			if err != nil {
				response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
					fmt.Errorf("rate limit check failed: %w", err)))
				return
			}

			remaining, resetAfter, _ := limiter.Status(r.Context(), userID, action)
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rlc.limits[action], 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAfter, 10))

			if !allowed {
				response.WriteJSON(w, http.StatusTooManyRequests, response.Error("rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitedHandler wraps a handler with rate limiting for a specific action
func (rlc *RateLimitConfig) RateLimitedHandler(action string, handler http.HandlerFunc) http.Handler {
	return rlc.RateLimitMiddleware(action)(handler)
}
