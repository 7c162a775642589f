package geolocation

import (
	"fmt"
	"strings"

	"github.com/zatekoja/carefinder/internal/domain/providers"
	"github.com/zatekoja/carefinder/internal/infrastructure/observability"
	"github.com/zatekoja/carefinder/pkg/config"
)

// NewProvider builds the configured geocoder wrapped in the geocode cache.
// cache may be nil, which disables caching.
func NewProvider(cfg *config.GeolocationConfig, cache providers.CacheProvider, metrics *observability.Metrics) (providers.GeolocationProvider, error) {
	var base providers.GeolocationProvider
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "nominatim":
		base = NewNominatimGeolocationProviderWithOptions(NominatimOptions{
			BaseURL:       cfg.NominatimURL,
			UserAgent:     cfg.UserAgent,
			Timeout:       cfg.Timeout,
			RetryAttempts: cfg.RetryAttempts,
			Metrics:       metrics,
		})
	case "mock":
		// Offline development only
		return NewMockGeolocationProvider(), nil
	default:
		return nil, fmt.Errorf("unknown geolocation provider %q", cfg.Provider)
	}

	return NewCachedGeolocationProvider(base, cache, cfg.CacheTTL, metrics), nil
}
