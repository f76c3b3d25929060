package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trike-itinerary-service/internal/observability"
)

// RedisPayloadCache stores assembled route-info payloads with a short TTL so
// duplicate polling requests from multiple viewers of one trip do not rebuild
// the itinerary each time.
type RedisPayloadCache struct {
	client *redis.Client
}

func NewRedisPayloadCache(addr, password string) *RedisPayloadCache {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisPayloadCache{client: c}
}

// NewRedisPayloadCacheFromClient wires an existing client, used in tests.
func NewRedisPayloadCacheFromClient(client *redis.Client) *RedisPayloadCache {
	return &RedisPayloadCache{client: client}
}

func (c *RedisPayloadCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			observability.PayloadCacheMisses.Inc()
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("payload cache get %q: %w", key, err)
	}
	observability.PayloadCacheHits.Inc()
	return b, true, nil
}

func (c *RedisPayloadCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("payload cache set %q: %w", key, err)
	}
	return nil
}

func (c *RedisPayloadCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("payload cache delete: %w", err)
	}
	return nil
}
