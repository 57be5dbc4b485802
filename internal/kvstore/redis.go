package kvstore

import (
	"context"
	"fmt"
	"time"

	"example.com/volunteerhub/services/signup/config"

	"github.com/go-redis/redis/v8"
)

// Client is an interface over the schema-less fallback store. Records are
// durable JSON documents, not cache entries: writes carry no expiration.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// ScanPrefix returns all values whose keys start with prefix, keyed by
	// their full key.
	ScanPrefix(ctx context.Context, prefix string) (map[string]string, error)
	Close() error
}

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool {
	return err == redis.Nil
}

// redisClient implements the Client interface
type redisClient struct {
	client *redis.Client
}

// NewClient creates a new fallback-store client
func NewClient(cfg config.RedisConfig) (Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisClient{client: client}, nil
}

// Get retrieves a value from the store
func (r *redisClient) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

// Set stores a value without expiration
func (r *redisClient) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

// Delete removes a key from the store
func (r *redisClient) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// ScanPrefix collects every record under the given key prefix
func (r *redisClient) ScanPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	result := make(map[string]string)

	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := r.client.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, err
		}
		result[key] = val
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Close closes the Redis connection
func (r *redisClient) Close() error {
	return r.client.Close()
}
