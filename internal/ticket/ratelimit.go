package ticket

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces the external service's combined requests-per-
// minute and requests-per-day ceilings atomically across processes
// using a Redis Lua script. GET → check → INCR patterns race under
// concurrency; the script checks both windows before incrementing
// either.
type RateLimiter struct {
	redis  *redis.Client
	rpm    int
	rpd    int
	script *redis.Script
}

const limitScript = `
local minuteKey = KEYS[1]
local dailyKey = KEYS[2]
local minuteLimit = tonumber(ARGV[1])
local dailyLimit = tonumber(ARGV[2])
local minuteTTL = tonumber(ARGV[3])
local dailyTTL = tonumber(ARGV[4])

local minCurrent = tonumber(redis.call("GET", minuteKey) or "0")
local dayCurrent = tonumber(redis.call("GET", dailyKey) or "0")

if minCurrent + 1 > minuteLimit then
    return {0, 1}
end
if dayCurrent + 1 > dailyLimit then
    return {0, 2}
end

local newMin = redis.call("INCR", minuteKey)
if newMin == 1 then
    redis.call("EXPIRE", minuteKey, minuteTTL)
end

local newDay = redis.call("INCR", dailyKey)
if newDay == 1 then
    redis.call("EXPIRE", dailyKey, dailyTTL)
end

return {1, 0}
`

// NewRateLimiter creates a limiter with pre-compiled Lua.
func NewRateLimiter(client *redis.Client, requestsPerMinute, requestsPerDay int) *RateLimiter {
	return &RateLimiter{
		redis:  client,
		rpm:    requestsPerMinute,
		rpd:    requestsPerDay,
		script: redis.NewScript(limitScript),
	}
}

// Allow atomically reserves one request slot. Returns ErrRateLimited
// when either window is exhausted so callers can distinguish throttling
// from genuine failure.
func (r *RateLimiter) Allow(ctx context.Context) error {
	now := time.Now()
	minuteKey := fmt.Sprintf("ratelimit:ticket:min:%d", now.Unix()/60)
	dailyKey := fmt.Sprintf("ratelimit:ticket:day:%s", now.Format("2006-01-02"))

	result, err := r.script.Run(ctx, r.redis,
		[]string{minuteKey, dailyKey},
		r.rpm,
		r.rpd,
		120,   // minute TTL
		90000, // daily TTL (25 hours)
	).Slice()
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}

	if result[0].(int64) != 1 {
		return ErrRateLimited
	}
	return nil
}

// Usage returns the current minute and day counters, for operators.
func (r *RateLimiter) Usage(ctx context.Context) (minute, day int64, err error) {
	now := time.Now()
	minuteKey := fmt.Sprintf("ratelimit:ticket:min:%d", now.Unix()/60)
	dailyKey := fmt.Sprintf("ratelimit:ticket:day:%s", now.Format("2006-01-02"))

	minute, err = r.redis.Get(ctx, minuteKey).Int64()
	if err == redis.Nil {
		minute, err = 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	day, err = r.redis.Get(ctx, dailyKey).Int64()
	if err == redis.Nil {
		day, err = 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return minute, day, nil
}
