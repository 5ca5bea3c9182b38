// internal/cache/validation_test.go
package cache

import (
	"context"
	"testing"
	"time"

	"builder-licensing/internal/common/database"
	"builder-licensing/internal/common/logger"
	"builder-licensing/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestCache(t *testing.T) (*ValidationCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := &database.RedisClient{
		Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
	}
	return NewValidationCache(client, time.Minute, logger.NewTestLogger(t)), mr
}

func testLicense(key string) *models.License {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &models.License{
		Key:              key,
		Email:            "smith@forge.example",
		Tier:             models.TierPro,
		Status:           models.StatusActive,
		ExpiresAt:        now.AddDate(0, 0, 90),
		LastTransitionAt: now,
		NotifiedStates:   []string{},
		CreatedAt:        now,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestValidationCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	lic := testLicense("BLDR-AAAA-BBBB-CCCC")

	assert.Nil(t, c.Get(ctx, lic.Key))

	c.Set(ctx, lic)
	got := c.Get(ctx, lic.Key)
	require.NotNil(t, got)
	assert.Equal(t, lic.Key, got.Key)
	assert.Equal(t, lic.Status, got.Status)
	assert.True(t, lic.ExpiresAt.Equal(got.ExpiresAt))
}

func TestValidationCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	lic := testLicense("BLDR-AAAA-BBBB-CCCC")

	c.Set(ctx, lic)
	require.NotNil(t, c.Get(ctx, lic.Key))

	c.Invalidate(ctx, lic.Key)
	assert.Nil(t, c.Get(ctx, lic.Key))
}

func TestValidationCache_TTLExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	lic := testLicense("BLDR-AAAA-BBBB-CCCC")

	c.Set(ctx, lic)
	mr.FastForward(2 * time.Minute)
	assert.Nil(t, c.Get(ctx, lic.Key))
}

func TestValidationCache_CorruptEntryDegradesToMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(keyPrefix+"BLDR-AAAA-BBBB-CCCC", "{not json"))
	assert.Nil(t, c.Get(ctx, "BLDR-AAAA-BBBB-CCCC"))
	// The corrupt entry is dropped so the next database read repopulates.
	assert.False(t, mr.Exists(keyPrefix+"BLDR-AAAA-BBBB-CCCC"))
}

func TestValidationCache_RedisDownDegradesToMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	lic := testLicense("BLDR-AAAA-BBBB-CCCC")

	c.Set(ctx, lic)
	mr.Close()

	assert.Nil(t, c.Get(ctx, lic.Key))
}
