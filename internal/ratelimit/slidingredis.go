package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingScript trims the window, admits the call only when under max and
// returns {allowed, count, oldestScoreMs}. Rejected calls are not recorded,
// so a till that keeps retrying is not locked out forever.
var slidingScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
local allowed = 0
if count < max then
  redis.call("ZADD", key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call("PEXPIRE", key, window)
local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local first = now
if oldest[2] then first = tonumber(oldest[2]) end
return {allowed, count, first}
`)

// Limiter is a sliding-window limiter backed by a Redis sorted set per key.
type Limiter struct {
	Client redis.Cmdable
	Prefix string
	Now    func() time.Time
}

// Allow admits the call when fewer than max calls were admitted for key in
// the trailing window. reset is when the oldest admitted call leaves the
// window.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error) {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	if l.Client == nil || max <= 0 || window <= 0 {
		return true, max, now.Add(window), nil
	}

	res, err := slidingScript.Run(ctx, l.Client, []string{l.Prefix + key},
		now.UnixMilli(), window.Milliseconds(), max, uuid.NewString()).Int64Slice()
	if err != nil {
		return false, 0, now.Add(window), err
	}
	count := int(res[1])
	remaining = max - count
	if remaining < 0 {
		remaining = 0
	}
	reset = time.UnixMilli(res[2]).Add(window)
	return res[0] == 1, remaining, reset, nil
}
