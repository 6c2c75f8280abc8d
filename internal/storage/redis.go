package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hybrid_copilot/pkg"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// RedisRunStore implements RunStore using Redis
type RedisRunStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRunStore connects to the Redis server at redisURL
func NewRedisRunStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisRunStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRunStore{client: client, ttl: ttl}, nil
}

// Save stores a result with the configured TTL
func (r *RedisRunStore) Save(ctx context.Context, result pkg.Result) error {
	if result.ID == "" {
		return fmt.Errorf("run ID cannot be empty")
	}

	data, err := sonic.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal run result: %w", err)
	}

	if err := r.client.Set(ctx, key(result.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save run result: %w", err)
	}
	return nil
}

// Get retrieves a result by id
func (r *RedisRunStore) Get(ctx context.Context, id string) (*pkg.Result, error) {
	data, err := r.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get run result: %w", err)
	}

	var result pkg.Result
	if err := sonic.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run result: %w", err)
	}
	return &result, nil
}

// Delete removes a result
func (r *RedisRunStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete run result: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of a stored result
func (r *RedisRunStore) TTL(ctx context.Context, id string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, key(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get TTL: %w", err)
	}
	return ttl, nil
}

// Close closes the Redis connection
func (r *RedisRunStore) Close() error {
	return r.client.Close()
}

// NewRunStore returns a Redis store when redisURL is set and a memory store
// otherwise
func NewRunStore(ctx context.Context, redisURL string, ttl time.Duration) (RunStore, error) {
	if redisURL == "" {
		return NewMemoryRunStore(ttl), nil
	}
	return NewRedisRunStore(ctx, redisURL, ttl)
}
