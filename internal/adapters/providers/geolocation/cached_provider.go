package geolocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/zatekoja/carefinder/internal/domain/providers"
	"github.com/zatekoja/carefinder/internal/infrastructure/observability"
)

const geocodeCacheName = "geocode"

// CachedGeolocationProvider wraps a GeolocationProvider with a cache.
// Only successful lookups are cached.
type CachedGeolocationProvider struct {
	provider providers.GeolocationProvider
	cache    providers.CacheProvider
	ttl      time.Duration
	metrics  *observability.Metrics
}

// NewCachedGeolocationProvider returns provider unchanged when ttl is zero or cache is nil.
func NewCachedGeolocationProvider(provider providers.GeolocationProvider, cache providers.CacheProvider, ttl time.Duration, metrics *observability.Metrics) providers.GeolocationProvider {
	if cache == nil || ttl <= 0 {
		return provider
	}
	return &CachedGeolocationProvider{
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		metrics:  metrics,
	}
}

// Geocode serves repeated queries from cache
func (c *CachedGeolocationProvider) Geocode(ctx context.Context, address string) (*providers.GeocodedLocation, error) {
	key := geocodeCacheKey(address)

	if cached, err := c.cache.Get(ctx, key); err == nil && len(cached) > 0 {
		var loc providers.GeocodedLocation
		uerr := json.Unmarshal(cached, &loc)
		if uerr == nil {
			observability.RecordCacheHit(ctx, c.metrics, geocodeCacheName)
			return &loc, nil
		}
		observability.LoggerFromContext(ctx).Warn().Err(uerr).Str("key", key).Msg("Failed to unmarshal cached geocode")
	}
	observability.RecordCacheMiss(ctx, c.metrics, geocodeCacheName)

	loc, err := c.provider.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(loc); err == nil {
		if err := c.cache.Set(ctx, key, payload, int(c.ttl.Seconds())); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Failed to cache geocode")
		}
	}

	return loc, nil
}

func geocodeCacheKey(address string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(address), " "))
	sum := sha256.Sum256([]byte(normalized))
	return "geo:v1:geocode:" + hex.EncodeToString(sum[:])
}
