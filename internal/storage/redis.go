package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/copytrade-ledger/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisCache is the shared Redis client behind the snapshot store, the
// notification sink and the P&L feed
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache dials Redis and waits until it answers
func NewRedisCache(ctx context.Context, cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := waitReachable(ctx, "redis", 3*time.Second, ping); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the client
func (r *RedisCache) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// Client returns the underlying client
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

// Ping reports whether Redis is reachable
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// MarkOnce sets key if it does not exist yet and reports whether this call
// set it. The mark expires after ttl.
func (r *RedisCache) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, 1, ttl).Result()
}

// Unmark removes a mark set by MarkOnce
func (r *RedisCache) Unmark(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
