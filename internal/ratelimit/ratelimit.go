package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenBucket is a redis-backed per-user, per-action rate limiter. Bucket
// state lives in a redis hash and is refilled lazily inside a Lua script so
// that concurrent requests stay atomic.
type TokenBucket struct {
	redis    *redis.Client
	capacity int64
	refill   int64 // tokens added per window
	window   time.Duration
}

// NewTokenBucket creates a limiter that holds at most capacity tokens and
// refills refillRate tokens per minute.
func NewTokenBucket(redisClient *redis.Client, capacity, refillRate int64) *TokenBucket {
	return &TokenBucket{
		redis:    redisClient,
		capacity: capacity,
		refill:   refillRate,
		window:   time.Minute,
	}
}

const consumeScript = `
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local refill_rate = tonumber(ARGV[2])
	local window = tonumber(ARGV[3])
	local now = tonumber(ARGV[4])

	local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
	local tokens = tonumber(bucket[1]) or capacity
	local last_refill = tonumber(bucket[2]) or now

	local elapsed = now - last_refill
	local refilled = math.floor((elapsed / window) * refill_rate)
	if refilled > 0 then
		tokens = math.min(capacity, tokens + refilled)
		last_refill = now
	end

	local allowed = 0
	if tokens > 0 then
		tokens = tokens - 1
		allowed = 1
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_refill', last_refill)
	redis.call('EXPIRE', key, window * 2)
	return allowed
`

const statusScript = `
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local refill_rate = tonumber(ARGV[2])
	local window = tonumber(ARGV[3])
	local now = tonumber(ARGV[4])

	local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
	local tokens = tonumber(bucket[1]) or capacity
	local last_refill = tonumber(bucket[2]) or now

	local elapsed = now - last_refill
	local refilled = math.floor((elapsed / window) * refill_rate)
	if refilled > 0 then
		tokens = math.min(capacity, tokens + refilled)
		last_refill = now
	end

	if tokens >= capacity then
		return {tokens, 0}
	end

	local per_token = window / refill_rate
	local wait = math.ceil(per_token - (now - last_refill))
	if wait < 0 then
		wait = 0
	end
	return {tokens, wait}
`

func (tb *TokenBucket) key(userID, action string) string {
	return fmt.Sprintf("rate_limit:%s:%s", userID, action)
}

// Allow consumes one token and reports whether the action may proceed.
func (tb *TokenBucket) Allow(ctx context.Context, userID, action string) (bool, error) {
	result, err := tb.redis.Eval(ctx, consumeScript, []string{tb.key(userID, action)},
		tb.capacity, tb.refill, int64(tb.window.Seconds()), time.Now().Unix()).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowed, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected result type from rate limit script")
	}

	return allowed == 1, nil
}

// Status returns the tokens currently available and the seconds until the
// next token accrues (0 when the bucket is full).
func (tb *TokenBucket) Status(ctx context.Context, userID, action string) (int64, int64, error) {
	result, err := tb.redis.Eval(ctx, statusScript, []string{tb.key(userID, action)},
		tb.capacity, tb.refill, int64(tb.window.Seconds()), time.Now().Unix()).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read bucket status: %w", err)
	}

	vals, ok := result.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, 0, fmt.Errorf("unexpected result shape from bucket status script")
	}
	remaining, ok1 := vals[0].(int64)
	resetAfter, ok2 := vals[1].(int64)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("unexpected result type from bucket status script")
	}

	return remaining, resetAfter, nil
}

// Reset clears the bucket for a user action.
func (tb *TokenBucket) Reset(ctx context.Context, userID, action string) error {
	return tb.redis.Del(ctx, tb.key(userID, action)).Err()
}
