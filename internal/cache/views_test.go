package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViews(t *testing.T) (*Views, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewViews(rdb, time.Minute), mr
}

func TestViewsRoundTrip(t *testing.T) {
	views, _ := newTestViews(t)
	ctx := context.Background()

	_, ok := views.Get(ctx, 1, "deals")
	assert.False(t, ok, "empty cache misses")

	views.Set(ctx, 1, "deals", []byte(`[{"id":1}]`))
	body, ok := views.Get(ctx, 1, "deals")
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":1}]`, string(body))
}

func TestViewsScopedByOrg(t *testing.T) {
	views, _ := newTestViews(t)
	ctx := context.Background()

	views.Set(ctx, 1, "deals", []byte(`[1]`))
	_, ok := views.Get(ctx, 2, "deals")
	assert.False(t, ok, "org 2 must not see org 1's snapshot")
}

func TestViewsInvalidate(t *testing.T) {
	views, _ := newTestViews(t)
	ctx := context.Background()

	views.Set(ctx, 1, "deals", []byte(`[1]`))
	views.Set(ctx, 1, "tasks", []byte(`[2]`))
	views.Set(ctx, 1, "contacts", []byte(`[3]`))

	views.Invalidate(ctx, 1, "deals", "tasks")

	_, ok := views.Get(ctx, 1, "deals")
	assert.False(t, ok)
	_, ok = views.Get(ctx, 1, "tasks")
	assert.False(t, ok)
	_, ok = views.Get(ctx, 1, "contacts")
	assert.True(t, ok, "untouched entity keeps its snapshot")
}

func TestViewsRedisDownIsAMiss(t *testing.T) {
	views, mr := newTestViews(t)
	ctx := context.Background()

	views.Set(ctx, 1, "deals", []byte(`[1]`))
	mr.Close()

	_, ok := views.Get(ctx, 1, "deals")
	assert.False(t, ok, "cache failure reads as a miss, never an error")
	// Writes and invalidations must not panic either.
	views.Set(ctx, 1, "deals", []byte(`[1]`))
	views.Invalidate(ctx, 1, "deals")
}
