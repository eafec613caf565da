package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisReportCache struct {
	client *redis.Client
}

func NewRedisReportCache(addr string, password string, db int) *RedisReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisReportCache{client: client}
}

func (c *RedisReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisReportCache) Close() error {
	return c.client.Close()
}

// Client exposes the underlying connection for callers that need more than
// the cache interface, such as the reconcile runner's distributed lock.
func (c *RedisReportCache) Client() *redis.Client {
	return c.client
}

func (c *RedisReportCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisReportCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisReportCache) Invalidate(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
