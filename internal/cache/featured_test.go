package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/feedback-service/internal/domain"
)

func newTestCache(t *testing.T, ttl time.Duration) (*FeaturedCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFeaturedCache(client, ttl), mr
}

func TestFeaturedCacheLifecycle(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, time.Minute)

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	reviews := []domain.Review{{ID: "a", Name: "Ann", Rating: 5, Feedback: "Great!"}}
	stored, err := c.Set(ctx, gen, reviews)
	require.NoError(t, err)
	require.True(t, stored)

	got, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "Ann", got[0].Name)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFeaturedCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, time.Minute)

	_, err := c.Set(ctx, 0, []domain.Review{{ID: "a"}})
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
}

func TestFeaturedCacheSkipsFillAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, time.Minute)

	// A reader takes the generation, then a writer invalidates before the
	// reader's store query result is written back.
	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))

	stale := []domain.Review{{ID: "old", Name: "Before the insert"}}
	stored, err := c.Set(ctx, gen, stale)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, mr.Exists(featuredKey))

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	fresh, err := c.Generation(ctx)
	require.NoError(t, err)
	stored, err = c.Set(ctx, fresh, []domain.Review{{ID: "new"}})
	require.NoError(t, err)
	assert.True(t, stored)

	got, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", got[0].ID)
}

func TestFeaturedCacheDropsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, time.Minute)

	require.NoError(t, mr.Set(featuredKey, "{not json"))

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(featuredKey))
}

func TestNilFeaturedCacheIsAMiss(t *testing.T) {
	var c *FeaturedCache
	assert.Nil(t, NewFeaturedCache(nil, time.Minute))

	_, ok, err := c.Get(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
	gen, err := c.Generation(context.Background())
	assert.NoError(t, err)
	stored, err := c.Set(context.Background(), gen, nil)
	assert.NoError(t, err)
	assert.False(t, stored)
	assert.NoError(t, c.Invalidate(context.Background()))
}
