package providers

import (
	"context"

	"github.com/paulmach/osm"

	"github.com/zatekoja/carefinder/internal/domain/entities"
	"github.com/zatekoja/carefinder/pkg/geo"
)

// HealthcarePOIProvider queries map data for healthcare points of interest
type HealthcarePOIProvider interface {
	// QueryHealthcare returns every healthcare element within radiusKm of center,
	// together with the nodes needed to resolve way positions
	QueryHealthcare(ctx context.Context, center geo.Coordinates, radiusKm float64) (*entities.ElementBatch, error)

	// LookupElement returns a single element and, for ways, its nodes
	LookupElement(ctx context.Context, elementType osm.Type, id int64) (*entities.ElementBatch, error)
}
