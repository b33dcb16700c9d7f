package redis_utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"reminder/src/config"
)

// RedisHandler encapsulates the Redis client and provides utility methods.
type RedisHandler struct {
	client *redis.Client
}

// NewRedisHandler initializes a new Redis handler and verifies the connection.
func NewRedisHandler(cfg *config.Config) (*RedisHandler, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Databases.Redis.Host + ":" + cfg.Databases.Redis.Port,
		Username: cfg.Databases.Redis.Username,
		Password: cfg.Databases.Redis.Password, // Leave empty for no password
		DB:       cfg.Databases.Redis.Database,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisHandler{client: client}, nil
}

// NewRedisHandlerWithClient wraps an existing client. Used by tests that run
// against an embedded Redis.
func NewRedisHandlerWithClient(client *redis.Client) *RedisHandler {
	return &RedisHandler{client: client}
}

// ErrKeyMissing is returned by Get when the key does not exist.
var ErrKeyMissing = fmt.Errorf("key does not exist")

// Set stores a key-value pair in Redis with an optional expiration. The value
// is serialized to JSON.
func (r *RedisHandler) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize value: %w", err)
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// Get retrieves and deserializes the value of a key into the provided result.
func (r *RedisHandler) Get(ctx context.Context, key string, result interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return fmt.Errorf("%w: %s", ErrKeyMissing, key)
	} else if err != nil {
		return fmt.Errorf("failed to get key: %w", err)
	}

	if err := json.Unmarshal([]byte(data), result); err != nil {
		return fmt.Errorf("failed to deserialize value: %w", err)
	}
	return nil
}

// Delete removes one or more keys from Redis.
func (r *RedisHandler) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// DeleteByPattern removes every key matching the glob pattern, scanning in
// batches so large keyspaces do not block the server.
func (r *RedisHandler) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys for pattern %s: %w", pattern, err)
	}
	return r.Delete(ctx, keys...)
}

// Exists checks if a key exists in Redis.
func (r *RedisHandler) Exists(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check key existence: %w", err)
	}
	return count > 0, nil
}

// HSetJSON stores a map of field -> value under a hash key, serializing each
// value to JSON, and sets the hash expiration.
func (r *RedisHandler) HSetJSON(ctx context.Context, key string, fields map[string]interface{}, expiration time.Duration) error {
	if len(fields) == 0 {
		return nil
	}
	encoded := make(map[string]interface{}, len(fields))
	for field, value := range fields {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to serialize hash field %s: %w", field, err)
		}
		encoded[field] = data
	}
	if err := r.client.HSet(ctx, key, encoded).Err(); err != nil {
		return fmt.Errorf("failed to write hash %s: %w", key, err)
	}
	if expiration > 0 {
		if err := r.client.Expire(ctx, key, expiration).Err(); err != nil {
			return fmt.Errorf("failed to set expiration on %s: %w", key, err)
		}
	}
	return nil
}

// HGetAll returns every field of a hash as raw JSON strings. A missing key
// yields an empty map.
func (r *RedisHandler) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read hash %s: %w", key, err)
	}
	return fields, nil
}

// Close closes the Redis client connection.
func (r *RedisHandler) Close() error {
	return r.client.Close()
}
