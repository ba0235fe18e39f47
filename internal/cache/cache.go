// internal/cache/cache.go
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"proposition-engine/internal/common/logger"
	"proposition-engine/internal/common/metrics"
	"proposition-engine/internal/models"
)

const keyPrefix = "prop:rank"

// ResponseCache is a read-through cache for ranking results. Redis is
// the primary store; a bounded in-process map serves as fallback when
// Redis is down, so cache behavior degrades instead of disappearing.
//
// Keys embed a generation counter and the model version, so both a
// global invalidation and a model swap atomically orphan every previous
// entry without touching Redis.
type ResponseCache struct {
	redis      *redis.Client
	local      *localStore
	ttl        time.Duration
	generation atomic.Uint64
	logger     logger.Logger
}

func NewResponseCache(client *redis.Client, ttl time.Duration, maxLocalEntries int, log logger.Logger) *ResponseCache {
	return &ResponseCache{
		redis:  client,
		local:  newLocalStore(maxLocalEntries),
		ttl:    ttl,
		logger: log,
	}
}

// Key derives the deterministic cache key for a request against the
// given model version. Identical user, context, limit, and model always
// produce the same key within a generation.
func (c *ResponseCache) Key(req *models.RankingRequest, modelVersion string) string {
	payload := fmt.Sprintf("%s|%s|%d|%s", req.UserID, req.NormalizedContext(), req.Limit, modelVersion)
	sum := sha256.Sum256([]byte(payload))
	return fmt.Sprintf("%s:%d:%s", keyPrefix, c.generation.Load(), hex.EncodeToString(sum[:]))
}

// Get returns the cached result verbatim with CacheHit set, or nil on a
// miss. Redis errors count as misses and fall through to the local
// store.
func (c *ResponseCache) Get(ctx context.Context, key string) *models.RankingResult {
	if c.redis != nil {
		data, err := c.redis.Get(ctx, key).Bytes()
		if err == nil {
			if res := decode(data); res != nil {
				metrics.CacheHits.Inc()
				res.CacheHit = true
				return res
			}
		} else if err != redis.Nil {
			c.logger.Warn("Redis cache read failed, trying local store", map[string]interface{}{
				"error": err.Error(),
			})
			if res := c.local.get(key); res != nil {
				metrics.CacheHits.Inc()
				res.CacheHit = true
				return res
			}
		}
	} else if res := c.local.get(key); res != nil {
		metrics.CacheHits.Inc()
		res.CacheHit = true
		return res
	}

	metrics.CacheMisses.Inc()
	return nil
}

// Set stores the result under the key for the configured TTL. Write
// failures are logged, never surfaced; caching is best effort.
func (c *ResponseCache) Set(ctx context.Context, key string, res *models.RankingResult) {
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Error("Failed to encode ranking result for cache", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if c.redis != nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Redis cache write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	// The local store mirrors every write so entries survive a Redis
	// outage that starts after they were cached.
	c.local.set(key, data, c.ttl)
}

// InvalidateAll bumps the generation counter. Previous entries stay in
// Redis until their TTL expires but can never be addressed again.
func (c *ResponseCache) InvalidateAll() {
	gen := c.generation.Add(1)
	c.logger.Info("Response cache invalidated", map[string]interface{}{
		"generation": gen,
	})
}

func decode(data []byte) *models.RankingResult {
	var res models.RankingResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil
	}
	return &res
}
