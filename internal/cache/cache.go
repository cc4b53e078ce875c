// Package cache is a Redis read-through cache for the catalog read path:
// repository and index lookups served by the coordinator API. Entries are
// invalidated on upsert and expire on a TTL; singleflight collapses
// concurrent loads of the same key. The cache is strictly an optimization:
// every miss or Redis failure falls through to the store.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/redis"
)

const keyPrefix = "catalog:"

// Catalog caches repository and index rows in Redis.
type Catalog struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Catalog cache. metrics may be nil.
func New(client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *Catalog {
	return &Catalog{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "catalog-cache"),
	}
}

// Repository returns the cached repository or loads it via load and caches
// the result.
func (c *Catalog) Repository(ctx context.Context, name string, load func(context.Context) (model.DataRepository, error)) (model.DataRepository, error) {
	return getOrLoad(ctx, c, "repo:"+name, load)
}

// Index returns the cached index or loads it via load and caches the result.
func (c *Catalog) Index(ctx context.Context, repository, name string, load func(context.Context) (model.Index, error)) (model.Index, error) {
	return getOrLoad(ctx, c, "index:"+repository+":"+name, load)
}

// InvalidateRepository drops the cached entry for a repository after an
// upsert.
func (c *Catalog) InvalidateRepository(ctx context.Context, name string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, keyPrefix+"repo:"+name); err != nil {
		c.logger.Warn("cache invalidation failed", "repository", name, "error", err)
	}
}

// InvalidateIndexes drops all cached index entries for a repository.
func (c *Catalog) InvalidateIndexes(ctx context.Context, repository string) {
	if c == nil || c.client == nil {
		return
	}
	if _, err := c.client.FlushByPattern(ctx, keyPrefix+"index:"+repository+":*"); err != nil {
		c.logger.Warn("cache invalidation failed", "repository", repository, "error", err)
	}
}

// getOrLoad is the generic read-through path. Redis errors degrade to a
// direct load; load errors are never cached.
func getOrLoad[T any](ctx context.Context, c *Catalog, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil || c.client == nil {
		return load(ctx)
	}
	fullKey := keyPrefix + key

	if data, err := c.client.Get(ctx, fullKey); err == nil {
		var value T
		if err := json.Unmarshal([]byte(data), &value); err == nil {
			c.hit()
			return value, nil
		}
		c.logger.Warn("dropping corrupt cache entry", "key", fullKey)
		_ = c.client.Del(ctx, fullKey)
	} else if !pkgredis.IsNilError(err) {
		c.logger.Warn("cache get failed", "key", fullKey, "error", err)
	}
	c.miss()

	result, err, _ := c.group.Do(fullKey, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return zero, err
		}
		if data, err := json.Marshal(value); err == nil {
			if err := c.client.Set(ctx, fullKey, data, c.cfg.CacheTTL); err != nil {
				c.logger.Warn("cache set failed", "key", fullKey, "error", err)
			}
		}
		return value, nil
	})
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

func (c *Catalog) hit() {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *Catalog) miss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
