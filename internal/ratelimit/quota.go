package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Quota is a fixed-window limiter with a formatted rate such as "30-M".
type Quota struct {
	L *limiter.Limiter
}

// NewStore returns a Redis store when a client is given and an in-process one otherwise.
func NewStore(rdb *redis.Client, prefix string) (limiter.Store, error) {
	if rdb == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix}), nil
	}
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
}

// NewQuota parses rate and binds it to store.
func NewQuota(store limiter.Store, rate string) (Quota, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return Quota{}, fmt.Errorf("parse rate %q: %w", rate, err)
	}
	return Quota{L: limiter.New(store, r)}, nil
}

// Allow implements Allower.
func (q Quota) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := q.L.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !res.Reached,
		Limit:     int(res.Limit),
		Remaining: int(res.Remaining),
		Reset:     time.Unix(res.Reset, 0),
	}, nil
}
