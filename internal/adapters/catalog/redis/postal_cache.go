// Package redis caches catalog lookups in Redis.
package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
	"3tcapital/ms_cartaporte_core/internal/infrastructure/metrics"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "cartaporte:cp:"

// PostalCodeCache is a read-through cache in front of a PostalCodeCatalog.
// Redis failures fall through to the wrapped catalog.
type PostalCodeCache struct {
	next   cartaporte.PostalCodeCatalog
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	log    *slog.Logger
}

// NewPostalCodeCache wraps next. Both hits and misses are cached for ttl.
func NewPostalCodeCache(next cartaporte.PostalCodeCatalog, client redis.UniversalClient, ttl time.Duration, log *slog.Logger) *PostalCodeCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PostalCodeCache{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: defaultPrefix,
		log:    log,
	}
}

func (c *PostalCodeCache) key(code string) string {
	return c.prefix + code
}

// PostalCodeExists answers from Redis when possible and populates it otherwise.
func (c *PostalCodeCache) PostalCodeExists(ctx context.Context, code string) (bool, error) {
	val, err := c.client.Get(ctx, c.key(code)).Result()
	switch {
	case err == nil:
		metrics.PostalCodeCache.WithLabelValues("hit").Inc()
		return val == "1", nil
	case errors.Is(err, redis.Nil):
		metrics.PostalCodeCache.WithLabelValues("miss").Inc()
	default:
		metrics.PostalCodeCache.WithLabelValues("error").Inc()
		c.log.WarnContext(ctx, "postal code cache unavailable", "postal_code", code, "error", err)
		return c.next.PostalCodeExists(ctx, code)
	}

	exists, err := c.next.PostalCodeExists(ctx, code)
	if err != nil {
		return false, err
	}

	val = "0"
	if exists {
		val = "1"
	}
	if err := c.client.Set(ctx, c.key(code), val, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "postal code cache write failed", "postal_code", code, "error", err)
	}
	return exists, nil
}
