package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/biomarker-engine/internal/intelligence/normalizer"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

const (
	overrideSpace  = "override"
	variationSpace = "variation"
)

// cachedLookup is the stored form of one lookup, including misses.
type cachedLookup struct {
	Found     bool                 `json:"found"`
	Category  string               `json:"category,omitempty"`
	Variation *biomarker.Variation `json:"variation,omitempty"`
}

// OverrideCache is a read-through cache in front of another OverrideLookup,
// usually the PostgreSQL repository.  Misses are cached too.  Redis failures
// degrade to the backing store; backing store errors are never cached.
type OverrideCache struct {
	client  *Client
	backing normalizer.OverrideLookup
	logger  logging.Logger
	metrics *prometheus.AppMetrics
}

var _ normalizer.OverrideLookup = (*OverrideCache)(nil)

// NewOverrideCache wraps backing.  metrics may be nil.
func NewOverrideCache(client *Client, backing normalizer.OverrideLookup, log logging.Logger, metrics *prometheus.AppMetrics) *OverrideCache {
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	return &OverrideCache{
		client:  client,
		backing: backing,
		logger:  logging.OrNop(log).Named("override_cache"),
		metrics: metrics,
	}
}

func (c *OverrideCache) GetOverride(ctx context.Context, name string) (string, bool, error) {
	key := normalizer.Normalize(name)
	if key == "" {
		return c.backing.GetOverride(ctx, name)
	}
	redisKey := c.client.Key("ref", overrideSpace, key)

	if hit, ok := c.read(ctx, redisKey); ok {
		return hit.Category, hit.Found, nil
	}

	category, found, err := c.backing.GetOverride(ctx, name)
	if err != nil {
		return "", false, err
	}
	c.write(ctx, redisKey, cachedLookup{Found: found, Category: category})
	return category, found, nil
}

func (c *OverrideCache) GetVariation(ctx context.Context, raw string) (*biomarker.Variation, bool, error) {
	key := normalizer.Normalize(raw)
	if key == "" {
		return c.backing.GetVariation(ctx, raw)
	}
	redisKey := c.client.Key("ref", variationSpace, key)

	if hit, ok := c.read(ctx, redisKey); ok {
		if !hit.Found || hit.Variation == nil {
			return nil, false, nil
		}
		v := *hit.Variation
		return &v, true, nil
	}

	v, found, err := c.backing.GetVariation(ctx, raw)
	if err != nil {
		return nil, false, err
	}
	c.write(ctx, redisKey, cachedLookup{Found: found && v != nil, Variation: v})
	return v, found, nil
}

// Invalidate drops every cached override and variation.
func (c *OverrideCache) Invalidate(ctx context.Context) (int64, error) {
	n, err := c.client.DeleteByPattern(ctx, c.client.Key("ref", "*"))
	if err != nil {
		prometheus.RecordError(c.metrics, "redis", "invalidate")
		return n, err
	}
	c.logger.Info("override cache invalidated", logging.Int64("keys", n))
	return n, nil
}

func (c *OverrideCache) read(ctx context.Context, key string) (cachedLookup, bool) {
	rdb := c.client.Underlying()
	if rdb == nil {
		return cachedLookup{}, false
	}
	raw, err := rdb.Get(ctx, key).Result()
	if stderrors.Is(err, redis.Nil) {
		return cachedLookup{}, false
	}
	if err != nil {
		c.degraded("get", key, err)
		return cachedLookup{}, false
	}
	var hit cachedLookup
	if err := json.Unmarshal([]byte(raw), &hit); err != nil {
		c.logger.Warn("discarding undecodable cache entry", logging.String("key", key), logging.Err(err))
		return cachedLookup{}, false
	}
	return hit, true
}

func (c *OverrideCache) write(ctx context.Context, key string, v cachedLookup) {
	rdb := c.client.Underlying()
	if rdb == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := rdb.Set(ctx, key, string(data), c.client.TTL()).Err(); err != nil {
		c.degraded("set", key, err)
	}
}

func (c *OverrideCache) degraded(op, key string, err error) {
	c.metrics.OverrideErrorsTotal.WithLabelValues("redis").Inc()
	c.logger.Warn("redis unavailable, using backing store",
		logging.String("op", op), logging.String("key", key), logging.Err(err))
}
