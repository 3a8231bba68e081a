package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// admitScript performs the token-bucket read-refill-take cycle server-side so
// concurrent Allow calls from different instances never race on the same
// bucket. Returns 1 when a token was taken, 0 when the bucket is empty.
var admitScript = redis.NewScript(`
local tokens = tonumber(redis.call('GET', KEYS[1]))
local updated = tonumber(redis.call('GET', KEYS[2]))
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

if tokens == nil then tokens = capacity end
if updated == nil then updated = now end

local elapsed = now - updated
if elapsed > 0 then
	tokens = math.min(capacity, tokens + elapsed * refill)
end

if tokens <= 0 then
	return 0
end

redis.call('SET', KEYS[1], tokens - 1, 'EX', ttl)
redis.call('SET', KEYS[2], now, 'EX', ttl)
return 1
`)

// RedisRateLimiter is a token-bucket Limiter backed by Redis, for
// deployments where the admission decision must be shared across
// instances. It enforces the bucket only; the sliding window lives with the
// in-memory limiter.
type RedisRateLimiter struct {
	rdb         *redis.Client
	bucketSize  int
	refillRate  int
	windowInSec int
	now         func() time.Time
}

// NewRedisRateLimiter creates a Redis-backed limiter with the given burst
// capacity and per-second refill rate.
func NewRedisRateLimiter(rdb *redis.Client, bucketSize, refillRate int) *RedisRateLimiter {
	return &RedisRateLimiter{
		rdb:         rdb,
		bucketSize:  bucketSize,
		refillRate:  refillRate,
		windowInSec: 60,
		now:         time.Now,
	}
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, clientID string) (bool, error) {
	key := fmt.Sprintf("rate_limit:%s", clientID)
	admitted, err := admitScript.Run(ctx, rl.rdb,
		[]string{key + ":bucket", key + ":last_update"},
		rl.bucketSize, rl.refillRate, rl.now().Unix(), rl.windowInSec,
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return admitted == 1, nil
}
