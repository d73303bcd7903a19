// Package cache remembers finished corrections so that tokens repeated
// across OCR requests skip the pipeline. Entries are grouped by a
// namespace derived from the model and policy, so a retrained model or new
// thresholds never serve stale results.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ingredient-corrector/internal/config"
)

const DefaultPrefix = "ingredient_corrections"

// Cache is a correction store.
type Cache interface {
	Get(ctx context.Context, token string) (string, bool, error)
	Set(ctx context.Context, token, corrected string) error
	Close() error
}

// Open builds the backend selected in cfg. It returns nil, nil when
// caching is disabled.
func Open(ctx context.Context, cfg config.CacheConfig, namespace string) (Cache, error) {
	switch cfg.Backend {
	case "", config.BackendNone:
		return nil, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		r := NewRedis(client, cfg.Redis.Prefix, namespace, cfg.Redis.TTL)
		if err := r.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		return r, nil
	case config.BackendBolt:
		b, err := OpenBolt(cfg.Bolt.Path, namespace)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w %q", config.ErrUnknownBackend, cfg.Backend)
	}
}
