// internal/cache/validation.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"builder-licensing/internal/common/database"
	"builder-licensing/internal/common/logger"
	"builder-licensing/internal/models"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "license:validate:"

// ValidationCache is a read-through cache for license validation lookups.
// Validation is the hottest path (every app launch hits it) while license
// rows change at most a few times a day, so a short TTL absorbs almost all
// reads. Every lifecycle transition invalidates the key, so the TTL only
// bounds staleness across process crashes.
type ValidationCache struct {
	redis  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

func NewValidationCache(rc *database.RedisClient, ttl time.Duration, log logger.Logger) *ValidationCache {
	return &ValidationCache{
		redis:  rc,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "validation-cache"}),
	}
}

// Get returns the cached license, or nil on miss. Redis errors degrade to a
// miss; the caller falls through to the database.
func (c *ValidationCache) Get(ctx context.Context, key string) *models.License {
	raw, err := c.redis.Client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Warn("cache read failed", nil)
		}
		return nil
	}

	var lic models.License
	if err := json.Unmarshal(raw, &lic); err != nil {
		c.logger.WithError(err).Warn("corrupt cache entry, dropping", map[string]interface{}{
			"key": key,
		})
		c.Invalidate(ctx, key)
		return nil
	}
	return &lic
}

// Set stores a license for the configured TTL. Best-effort.
func (c *ValidationCache) Set(ctx context.Context, lic *models.License) {
	raw, err := json.Marshal(lic)
	if err != nil {
		return
	}
	if err := c.redis.Client.Set(ctx, keyPrefix+lic.Key, raw, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("cache write failed", nil)
	}
}

// Invalidate drops a key after a status change.
func (c *ValidationCache) Invalidate(ctx context.Context, key string) {
	if err := c.redis.Client.Del(ctx, keyPrefix+key).Err(); err != nil {
		c.logger.WithError(err).Warn("cache invalidation failed", map[string]interface{}{
			"key": key,
		})
	}
}
