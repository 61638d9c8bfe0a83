package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisReferralCache implements referral.ReferralCache using Redis.
// Every operation is a single Redis command, so each is atomic for its key.
type RedisReferralCache struct {
	client *redis.Client
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisReferralCache connects to Redis and verifies the connection
func NewRedisReferralCache(cfg RedisConfig) (*RedisReferralCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisReferralCache{client: client}, nil
}

// NewRedisReferralCacheWithClient creates a cache with an existing Redis client
func NewRedisReferralCacheWithClient(client *redis.Client) *RedisReferralCache {
	return &RedisReferralCache{client: client}
}

// Get returns the cached value, treating redis.Nil as a miss
func (c *RedisReferralCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return b, true, nil
}

// Set stores value under key for ttl
func (c *RedisReferralCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes key
func (c *RedisReferralCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisReferralCache) Close() error {
	return c.client.Close()
}
