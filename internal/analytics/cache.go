package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when no summary is cached for the current generation.
var ErrCacheMiss = errors.New("analytics: cache miss")

// Generation identifies one cache epoch; every invalidation starts a new one.
type Generation int64

// Cache stores computed summaries between complaint changes. Get reports the
// generation it looked in; Set must be given that generation so a summary
// computed before an invalidation never lands in the epoch after it.
type Cache interface {
	Get(ctx context.Context, window int) (Summary, Generation, error)
	Set(ctx context.Context, gen Generation, window int, s Summary) error
	Invalidate(ctx context.Context) error
}

// NopCache never hits.
type NopCache struct{}

func (NopCache) Get(context.Context, int) (Summary, Generation, error) {
	return Summary{}, 0, ErrCacheMiss
}
func (NopCache) Set(context.Context, Generation, int, Summary) error { return nil }
func (NopCache) Invalidate(context.Context) error                    { return nil }

// RedisCache keeps summaries in Redis under a generation counter. Bumping the
// generation orphans every cached summary at once; orphans expire by TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache builds a cache with the given key prefix and TTL.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "hostel:analytics"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) genKey() string { return c.prefix + ":gen" }

func (c *RedisCache) key(gen Generation, window int) string {
	return fmt.Sprintf("%s:summary:%d:%d", c.prefix, gen, window)
}

// Get loads the summary for window at the current generation.
func (c *RedisCache) Get(ctx context.Context, window int) (Summary, Generation, error) {
	n, err := c.client.Get(ctx, c.genKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Summary{}, 0, err
	}
	gen := Generation(n)
	raw, err := c.client.Get(ctx, c.key(gen, window)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Summary{}, gen, ErrCacheMiss
	}
	if err != nil {
		return Summary{}, gen, err
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return Summary{}, gen, fmt.Errorf("analytics: decode cached summary: %w", err)
	}
	return s, gen, nil
}

// Set stores the summary for window under gen.
func (c *RedisCache) Set(ctx context.Context, gen Generation, window int, s Summary) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(gen, window), raw, c.ttl).Err()
}

// Invalidate bumps the generation.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, c.genKey()).Err()
}
