package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps a Redis client to share corrections between replicas.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis stores entries under prefix:namespace:token. A zero ttl keeps
// entries until Redis evicts them.
func NewRedis(client *redis.Client, prefix, namespace string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{client: client, prefix: prefix + ":" + namespace + ":", ttl: ttl}
}

// Get returns the cached correction for token.
func (r *Redis) Get(ctx context.Context, token string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores the correction for token.
func (r *Redis) Set(ctx context.Context, token, corrected string) error {
	return r.client.Set(ctx, r.prefix+token, corrected, r.ttl).Err()
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
