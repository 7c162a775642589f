package geolocation

import (
	"context"
	"strings"

	"github.com/zatekoja/carefinder/internal/domain/providers"
	apperrors "github.com/zatekoja/carefinder/pkg/errors"
	"github.com/zatekoja/carefinder/pkg/geo"
)

// MockGeolocationProvider implements a mock geolocation provider for local development and tests
type MockGeolocationProvider struct{}

// NewMockGeolocationProvider creates a new mock geolocation provider
func NewMockGeolocationProvider() providers.GeolocationProvider {
	return &MockGeolocationProvider{}
}

var mockPlaces = []struct {
	name   string
	coords geo.Coordinates
}{
	{"New York", geo.Coordinates{Latitude: 40.7128, Longitude: -74.0060}},
	{"Los Angeles", geo.Coordinates{Latitude: 34.0522, Longitude: -118.2437}},
	{"Chicago", geo.Coordinates{Latitude: 41.8781, Longitude: -87.6298}},
	{"Houston", geo.Coordinates{Latitude: 29.7604, Longitude: -95.3698}},
	{"Phoenix", geo.Coordinates{Latitude: 33.4484, Longitude: -112.0740}},
	{"Boston", geo.Coordinates{Latitude: 42.3601, Longitude: -71.0589}},
	{"02115", geo.Coordinates{Latitude: 42.3427, Longitude: -71.0922}},
}

// Geocode matches a handful of known US cities and zip codes.
// Unknown text resolves to San Francisco, except "nowhere" which reports no match.
func (m *MockGeolocationProvider) Geocode(ctx context.Context, address string) (*providers.GeocodedLocation, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, apperrors.NewValidationError("location is required")
	}
	if strings.EqualFold(trimmed, "nowhere") {
		return nil, apperrors.NewLocationNotFoundError(trimmed)
	}

	lower := strings.ToLower(trimmed)
	for _, p := range mockPlaces {
		if strings.Contains(lower, strings.ToLower(p.name)) {
			return &providers.GeocodedLocation{Coordinates: p.coords, DisplayName: p.name}, nil
		}
	}

	return &providers.GeocodedLocation{
		Coordinates: geo.Coordinates{Latitude: 37.7749, Longitude: -122.4194},
		DisplayName: "San Francisco",
	}, nil
}
