package repositories

import (
	"context"

	"github.com/zatekoja/carefinder/internal/domain/entities"
	"github.com/zatekoja/carefinder/pkg/geo"
)

// FacilityRepository defines the interface for facility data operations
type FacilityRepository interface {
	// Create creates a new facility
	Create(ctx context.Context, facility *entities.Facility) error

	// GetByID retrieves a facility by ID, including inactive facilities
	GetByID(ctx context.Context, id string) (*entities.Facility, error)

	// GetByIDs retrieves multiple facilities by their IDs
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Facility, error)

	// Update updates a facility
	Update(ctx context.Context, facility *entities.Facility) error

	// Delete deactivates a facility. The row is kept with is_active=false.
	Delete(ctx context.Context, id string) error

	// List retrieves active facilities with filters
	List(ctx context.Context, filter FacilityFilter) ([]*entities.Facility, error)

	// FindNear returns active facilities within radiusKm of center, nearest first
	FindNear(ctx context.Context, center geo.Coordinates, radiusKm float64, filter NearFilter) ([]*entities.NearbyFacility, error)
}

// FacilitySearchRepository defines the interface for the facility geo index (e.g. Typesense)
type FacilitySearchRepository interface {
	// Index indexes a facility
	Index(ctx context.Context, facility *entities.Facility) error

	// Delete removes a facility from index
	Delete(ctx context.Context, id string) error

	// NearbyIDs returns ids of active indexed facilities within radiusKm of center
	NearbyIDs(ctx context.Context, center geo.Coordinates, radiusKm float64, filter NearFilter) ([]string, error)
}

// FacilityFilter defines filters for listing facilities
type FacilityFilter struct {
	FacilityType string
	Limit        int
	Offset       int
}

// NearFilter narrows a radius search. PaymentOptions match when any one flag is set.
type NearFilter struct {
	FacilityType   string
	PaymentOptions []string
}
