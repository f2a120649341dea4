package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims events older than the window and admits a new one
// only while fewer than max remain. Rejected calls are not recorded.
// Returns {admitted, count, oldest_ms}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local admitted = 0
if count < max then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  count = count + 1
  admitted = 1
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local first = now
if oldest[2] then first = tonumber(oldest[2]) end
return {admitted, count, first}
`)

// Limiter is a sliding-window limiter over a Redis sorted set per key. It
// limits anonymous endpoints such as session creation. Without a client
// every request is allowed.
type Limiter struct {
	Client *redis.Client
	Prefix string
	Window time.Duration
	Max    int
}

// Allow records an event for key when it fits in the window.
func (l Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now()
	if l.Client == nil || l.Max <= 0 || l.Window <= 0 {
		return Decision{Allowed: true, Limit: l.Max, Remaining: l.Max, Reset: now.Add(l.Window)}, nil
	}

	res, err := slidingWindow.Run(ctx, l.Client, []string{l.Prefix + key},
		now.UnixMilli(), l.Window.Milliseconds(), l.Max, uuid.NewString()).Int64Slice()
	if err != nil || len(res) != 3 {
		return Decision{Limit: l.Max, Reset: now.Add(l.Window)}, err
	}
	count := int(res[1])
	return Decision{
		Allowed:   res[0] == 1,
		Limit:     l.Max,
		Remaining: max(l.Max-count, 0),
		Reset:     time.UnixMilli(res[2]).Add(l.Window),
	}, nil
}
