package routing

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

// cacheKeyPrecision of 8 geohash characters is a cell of roughly 38m x 19m
const cacheKeyPrecision = 8

// Store is the subset of a TTL cache the CachedProvider needs
type Store interface {
	Set(key string, data interface{}, ttl time.Duration, source string) error
	Get(key string, result interface{}) (bool, error)
}

// CachedProvider memoizes provider responses for nearby waypoint pairs
type CachedProvider struct {
	next   Provider
	store  Store
	ttl    time.Duration
	source string
	logger *zap.Logger
}

// NewCachedProvider wraps next with a response cache
func NewCachedProvider(next Provider, store Store, ttl time.Duration, source string, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{
		next:   next,
		store:  store,
		ttl:    ttl,
		source: source,
		logger: logger,
	}
}

// ComputeRoutes serves from cache when possible and stores fresh provider responses.
// Errors are never cached.
func (c *CachedProvider) ComputeRoutes(ctx context.Context, waypoints []geo.Point) ([]Route, error) {
	key := CacheKey(waypoints)

	var cached []Route
	found, err := c.store.Get(key, &cached)
	if err != nil {
		c.logger.Warn("route cache read failed", zap.String("key", key), zap.Error(err))
	} else if found && len(cached) > 0 {
		c.logger.Debug("route cache hit", zap.String("key", key))
		return cached, nil
	}

	routes, err := c.next.ComputeRoutes(ctx, waypoints)
	if err != nil {
		return nil, err
	}

	if err := c.store.Set(key, routes, c.ttl, c.source); err != nil {
		c.logger.Warn("route cache write failed", zap.String("key", key), zap.Error(err))
	}
	return routes, nil
}

// CacheKey derives a cache key from waypoint geohashes
func CacheKey(waypoints []geo.Point) string {
	parts := make([]string, 0, len(waypoints)+1)
	parts = append(parts, "route")
	for _, p := range waypoints {
		parts = append(parts, geo.Geohash(p, cacheKeyPrecision))
	}
	return strings.Join(parts, ":")
}
