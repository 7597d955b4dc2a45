package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// FixedWindow adapts a ulule limiter store to Backend. Limiters are cached
// per rate so the store sees a stable configuration.
type FixedWindow struct {
	Store limiter.Store

	mu       sync.Mutex
	limiters map[limiter.Rate]*limiter.Limiter
}

// NewRedisFixedWindow builds a FixedWindow backed by Redis.
func NewRedisFixedWindow(client *redis.Client, prefix string) (*FixedWindow, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: redis store: %w", err)
	}
	return &FixedWindow{Store: store}, nil
}

// Allow implements Backend.
func (f *FixedWindow) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if f.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	res, err := f.limiter(limiter.Rate{Period: window, Limit: int64(max)}).Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}

func (f *FixedWindow) limiter(rate limiter.Rate) *limiter.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.limiters == nil {
		f.limiters = make(map[limiter.Rate]*limiter.Limiter)
	}
	l, ok := f.limiters[rate]
	if !ok {
		l = limiter.New(f.Store, rate)
		f.limiters[rate] = l
	}
	return l
}
