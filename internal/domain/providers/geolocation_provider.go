package providers

import (
	"context"

	"github.com/zatekoja/carefinder/pkg/geo"
)

// GeolocationProvider defines the interface for geocoding services
type GeolocationProvider interface {
	// Geocode resolves free text to the first matching place
	Geocode(ctx context.Context, address string) (*GeocodedLocation, error)
}

// GeocodedLocation is the first match returned for a free-text query
type GeocodedLocation struct {
	Coordinates geo.Coordinates `json:"coordinates"`
	DisplayName string          `json:"display_name"`
}
