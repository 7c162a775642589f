package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zatekoja/carefinder/internal/domain/entities"
	"github.com/zatekoja/carefinder/internal/domain/providers"
	"github.com/zatekoja/carefinder/internal/domain/repositories"
	"github.com/zatekoja/carefinder/internal/infrastructure/observability"
	"github.com/zatekoja/carefinder/pkg/geo"
)

// CachedFacilityAdapter wraps a FacilityRepository with a read-through cache for single facilities
type CachedFacilityAdapter struct {
	adapter repositories.FacilityRepository
	cache   providers.CacheProvider
	metrics *observability.Metrics
}

// NewCachedFacilityAdapter creates a new cached facility adapter
func NewCachedFacilityAdapter(adapter repositories.FacilityRepository, cache providers.CacheProvider, metrics *observability.Metrics) repositories.FacilityRepository {
	return &CachedFacilityAdapter{
		adapter: adapter,
		cache:   cache,
		metrics: metrics,
	}
}

// facilityByIDTTL is five minutes
const facilityByIDTTL = 300

const facilityCacheName = "facility"

func facilityCacheKey(id string) string {
	return fmt.Sprintf("facility:%s", id)
}

// GetByID retrieves a facility by ID with caching
func (a *CachedFacilityAdapter) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	cacheKey := facilityCacheKey(id)
	logger := observability.LoggerFromContext(ctx)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var facility entities.Facility
		uerr := json.Unmarshal(cached, &facility)
		if uerr == nil {
			observability.RecordCacheHit(ctx, a.metrics, facilityCacheName)
			return &facility, nil
		}
		logger.Warn().Err(uerr).Str("facility_id", id).Msg("Failed to unmarshal cached facility")
	}
	observability.RecordCacheMiss(ctx, a.metrics, facilityCacheName)

	facility, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(facility); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, facilityByIDTTL); err != nil {
			logger.Warn().Err(err).Str("facility_id", id).Msg("Failed to cache facility")
		}
	}

	return facility, nil
}

// GetByIDs is not cached
func (a *CachedFacilityAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Facility, error) {
	return a.adapter.GetByIDs(ctx, ids)
}

// List is not cached
func (a *CachedFacilityAdapter) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	return a.adapter.List(ctx, filter)
}

// FindNear is not cached
func (a *CachedFacilityAdapter) FindNear(ctx context.Context, center geo.Coordinates, radiusKm float64, filter repositories.NearFilter) ([]*entities.NearbyFacility, error) {
	return a.adapter.FindNear(ctx, center, radiusKm, filter)
}

// Create creates a facility
func (a *CachedFacilityAdapter) Create(ctx context.Context, facility *entities.Facility) error {
	return a.adapter.Create(ctx, facility)
}

// Update updates a facility and invalidates its cache entry
func (a *CachedFacilityAdapter) Update(ctx context.Context, facility *entities.Facility) error {
	if err := a.adapter.Update(ctx, facility); err != nil {
		return err
	}
	a.invalidate(ctx, facility.ID)
	return nil
}

// Delete deactivates a facility and invalidates its cache entry
func (a *CachedFacilityAdapter) Delete(ctx context.Context, id string) error {
	if err := a.adapter.Delete(ctx, id); err != nil {
		return err
	}
	a.invalidate(ctx, id)
	return nil
}

func (a *CachedFacilityAdapter) invalidate(ctx context.Context, id string) {
	if err := a.cache.Delete(ctx, facilityCacheKey(id)); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("facility_id", id).Msg("Failed to invalidate facility cache")
	}
}
