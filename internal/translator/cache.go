package translator

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheKeyPrefix = "relist:tr:"
	redisCacheTTL  = 30 * 24 * time.Hour
)

var cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relist_translation_cache_hits_total",
	Help: "Translation cache hits by layer.",
}, []string{"layer"})

// CachingEngine layers caching over a machine-translation engine:
// in-process first, then Redis when configured, and finally the inner
// engine behind singleflight so concurrent misses for the same text
// cost one upstream call.
type CachingEngine struct {
	inner  Engine
	local  *gocache.Cache
	redis  redis.UniversalClient
	group  singleflight.Group
	logger *slog.Logger
}

// NewCachingEngine wraps an engine. rdb may be nil; the in-process
// cache alone still covers repeated values inside one run.
func NewCachingEngine(inner Engine, rdb redis.UniversalClient, logger *slog.Logger) *CachingEngine {
	return &CachingEngine{
		inner:  inner,
		local:  gocache.New(gocache.NoExpiration, 0),
		redis:  rdb,
		logger: logger,
	}
}

// Translate implements Engine.
func (c *CachingEngine) Translate(ctx context.Context, text, source, target string) (string, error) {
	return c.cached(ctx, cacheKey("t", text, source, target), func() (string, error) {
		return c.inner.Translate(ctx, text, source, target)
	})
}

// Detect implements Engine. Detection results are cached under the
// same keyspace with a distinct discriminator.
func (c *CachingEngine) Detect(ctx context.Context, text string) (string, error) {
	return c.cached(ctx, cacheKey("d", text), func() (string, error) {
		return c.inner.Detect(ctx, text)
	})
}

func (c *CachingEngine) cached(ctx context.Context, key string, fetch func() (string, error)) (string, error) {
	if v, ok := c.local.Get(key); ok {
		cacheHits.WithLabelValues("local").Inc()
		return v.(string), nil
	}
	if c.redis != nil {
		v, err := c.redis.Get(ctx, key).Result()
		switch {
		case err == nil:
			cacheHits.WithLabelValues("redis").Inc()
			c.local.Set(key, v, gocache.NoExpiration)
			return v, nil
		case !errors.Is(err, redis.Nil):
			c.logger.WarnContext(ctx, "translation cache read failed", slog.Any("error", err))
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		out, err := fetch()
		if err != nil {
			return nil, err
		}
		c.local.Set(key, out, gocache.NoExpiration)
		if c.redis != nil {
			if err := c.redis.Set(ctx, key, out, redisCacheTTL).Err(); err != nil {
				c.logger.WarnContext(ctx, "translation cache write failed", slog.Any("error", err))
			}
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func cacheKey(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "\x1f")))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
