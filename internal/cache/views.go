// Package cache holds redis-backed snapshots of per-organization list
// views. Mutations invalidate the views they touch; everything here is
// best-effort and a cache failure is only ever a miss.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"crmapi/internal/logger"
)

// Views caches JSON list snapshots keyed by organization and entity.
type Views struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewViews creates a Views cache with the given TTL.
func NewViews(rdb *redis.Client, ttl time.Duration) *Views {
	return &Views{rdb: rdb, ttl: ttl}
}

func viewKey(orgID int, entity string) string {
	return fmt.Sprintf("views:%d:%s", orgID, entity)
}

// Get returns the cached snapshot for (org, entity), or false on a miss.
// Errors are logged and reported as misses.
func (v *Views) Get(ctx context.Context, orgID int, entity string) ([]byte, bool) {
	body, err := v.rdb.Get(ctx, viewKey(orgID, entity)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Get().Warn("view cache read failed",
			zap.Int("org_id", orgID), zap.String("entity", entity), zap.Error(err))
		return nil, false
	}
	return body, true
}

// Set stores a snapshot for (org, entity).
func (v *Views) Set(ctx context.Context, orgID int, entity string, body []byte) {
	if err := v.rdb.Set(ctx, viewKey(orgID, entity), body, v.ttl).Err(); err != nil {
		logger.Get().Warn("view cache write failed",
			zap.Int("org_id", orgID), zap.String("entity", entity), zap.Error(err))
	}
}

// Invalidate drops the snapshots for the given entities within one
// organization. Called after every successful mutation.
func (v *Views) Invalidate(ctx context.Context, orgID int, entities ...string) {
	keys := make([]string, len(entities))
	for i, entity := range entities {
		keys[i] = viewKey(orgID, entity)
	}
	if err := v.rdb.Del(ctx, keys...).Err(); err != nil {
		logger.Get().Warn("view cache invalidation failed",
			zap.Int("org_id", orgID), zap.Strings("keys", keys), zap.Error(err))
	}
}
