package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// consumeScript performs the whole read-check-write as one atomic unit in
// the store. A fresh or stale counter resets to count=1; an exhausted
// counter is left untouched and the remaining window is returned.
//
// Returns {allowed, count, retryAfterSeconds}.
var consumeScript = redis.NewScript(`
local key = KEYS[1]
local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local fields = redis.call('HMGET', key, 'count', 'windowStart')
local count = tonumber(fields[1])
local windowStart = tonumber(fields[2])

if not count or not windowStart or now > windowStart + window then
  redis.call('HSET', key, 'count', 1, 'windowStart', now, 'lastRequestTime', now)
  redis.call('EXPIRE', key, window * 2)
  return {1, 1, 0}
end

if count >= max then
  return {0, count, windowStart + window - now}
end

count = redis.call('HINCRBY', key, 'count', 1)
redis.call('HSET', key, 'lastRequestTime', now)
return {1, count, 0}
`)

// RedisCounterStore implements CounterStore over Redis. Each counter is a
// hash (count, windowStart, lastRequestTime) keyed by subject and category,
// expiring at twice the window so stale counters cost nothing.
type RedisCounterStore struct {
	client *redis.Client
	prefix string
	// now is replaceable in tests
	now func() time.Time
}

// NewRedisCounterStore creates a Redis-backed counter store
func NewRedisCounterStore(client *redis.Client, prefix string) *RedisCounterStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisCounterStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Consume atomically applies the fixed-window algorithm to one counter
func (s *RedisCounterStore) Consume(ctx context.Context, key string, maxRequests int, window time.Duration) (Decision, error) {
	redisKey := fmt.Sprintf("%s:%s", s.prefix, key)
	windowSeconds := int64(window / time.Second)

	result, err := consumeScript.Run(ctx, s.client,
		[]string{redisKey},
		maxRequests, windowSeconds, s.now().Unix(),
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("consume %s: %w", key, err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return Decision{}, fmt.Errorf("consume %s: unexpected script reply %v", key, result)
	}

	allowed, _ := values[0].(int64)
	count, _ := values[1].(int64)
	retryAfter, _ := values[2].(int64)

	return Decision{
		Allowed:    allowed == 1,
		Count:      count,
		RetryAfter: time.Duration(retryAfter) * time.Second,
	}, nil
}
