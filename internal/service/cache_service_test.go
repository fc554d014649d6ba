package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gurtprime/merlinCLI/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestCache(t *testing.T) *CacheService {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.CacheEntry{}))

	return NewCacheService(db, zap.NewNop())
}

type cachedThing struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestCache_RoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	want := cachedThing{Name: "btc", Value: 42.5}
	require.NoError(t, cache.Set(ctx, "k1", want, time.Minute))

	var got cachedThing
	hit, err := cache.Get(ctx, "k1", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	cache := newTestCache(t)

	var got cachedThing
	hit, err := cache.Get(context.Background(), "nope", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCache_ExpiryIsInvisibleAndDoesNotResurrect(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k1", cachedThing{Name: "short"}, 50*time.Millisecond))

	var got cachedThing
	hit, err := cache.Get(ctx, "k1", &got)
	require.NoError(t, err)
	require.True(t, hit)

	time.Sleep(80 * time.Millisecond)

	hit, err = cache.Get(ctx, "k1", &got)
	require.NoError(t, err)
	assert.False(t, hit, "expired entry must be invisible")

	// 过期读已触发惰性删除，再次读取仍然未命中
	hit, err = cache.Get(ctx, "k1", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "forever", cachedThing{Name: "keep"}, 0))

	time.Sleep(30 * time.Millisecond)

	var got cachedThing
	hit, err := cache.Get(ctx, "forever", &got)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestCache_SetOverwrites(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k1", cachedThing{Value: 1}, time.Minute))
	require.NoError(t, cache.Set(ctx, "k1", cachedThing{Value: 2}, time.Minute))

	var got cachedThing
	hit, err := cache.Get(ctx, "k1", &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, 2.0, got.Value)
}

func TestCache_DeleteAndClear(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", cachedThing{}, time.Minute))
	require.NoError(t, cache.Set(ctx, "b", cachedThing{}, time.Minute))

	require.NoError(t, cache.Delete(ctx, "a"))
	var got cachedThing
	hit, err := cache.Get(ctx, "a", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Clear(ctx))
	hit, err = cache.Get(ctx, "b", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCache_CorruptedPayloadIsHardError(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	entry := &models.CacheEntry{
		CacheKey: "broken",
		Payload:  datatypes.JSON([]byte(`{"name": truncated`)),
	}
	require.NoError(t, cache.CacheRepo.Upsert(ctx, entry))

	var got cachedThing
	hit, err := cache.Get(ctx, "broken", &got)
	assert.False(t, hit)
	require.Error(t, err, "corruption must not be masked as a cache miss")
	assert.Contains(t, err.Error(), "corrupted")
}

func TestCache_PurgeExpired(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "old", cachedThing{}, time.Millisecond))
	require.NoError(t, cache.Set(ctx, "fresh", cachedThing{}, time.Minute))

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, cache.PurgeExpired(ctx))

	var got cachedThing
	hit, err := cache.Get(ctx, "fresh", &got)
	require.NoError(t, err)
	assert.True(t, hit)

	hit, err = cache.Get(ctx, "old", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}
