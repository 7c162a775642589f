package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/carefinder/internal/domain/entities"
	"github.com/zatekoja/carefinder/internal/domain/providers"
	"github.com/zatekoja/carefinder/internal/domain/repositories"
	"github.com/zatekoja/carefinder/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carefinder/pkg/errors"
	"github.com/zatekoja/carefinder/pkg/geo"
)

// NearbySearchRequest is a radius search over the facility directory
type NearbySearchRequest struct {
	Location       string
	RadiusKm       float64
	FacilityType   string
	PaymentOptions []string
}

const indexSyncPageSize = 200

// FacilityService handles business logic for facilities
type FacilityService struct {
	repo       repositories.FacilityRepository
	searchRepo repositories.FacilitySearchRepository
	geocoder   providers.GeolocationProvider
	limits     RadiusLimits
	now        func() time.Time

	// The index only answers FindNear after a full SyncIndex with no write
	// failure since. Until then radius searches go to the database.
	indexMu       sync.Mutex
	indexStale    bool
	indexFailures uint64
}

// NewFacilityService creates a new facility service. searchRepo may be nil;
// when set, call SyncIndex before the index is used for radius searches.
func NewFacilityService(repo repositories.FacilityRepository, searchRepo repositories.FacilitySearchRepository, geocoder providers.GeolocationProvider, limits RadiusLimits) *FacilityService {
	return &FacilityService{
		repo:       repo,
		searchRepo: searchRepo,
		geocoder:   geocoder,
		limits:     limits,
		now:        func() time.Time { return time.Now().UTC() },
		indexStale: searchRepo != nil,
	}
}

// Create geocodes the address, persists the facility and indexes it
func (s *FacilityService) Create(ctx context.Context, facility *entities.Facility) error {
	if err := validateFacility(facility); err != nil {
		return err
	}

	location, err := s.geocodeAddress(ctx, facility.Address)
	if err != nil {
		return err
	}

	now := s.now()
	facility.ID = uuid.NewString()
	facility.Location = location
	facility.IsActive = true
	facility.Ratings = entities.Ratings{}
	facility.CreatedAt = now
	facility.UpdatedAt = now

	if err := s.repo.Create(ctx, facility); err != nil {
		return err
	}

	s.index(ctx, facility)
	return nil
}

// GetByID retrieves a facility by ID, including deactivated facilities
func (s *FacilityService) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	return s.repo.GetByID(ctx, id)
}

// Update replaces the editable fields of a facility. The address is geocoded
// again only when one of its fields changed.
func (s *FacilityService) Update(ctx context.Context, id string, changes *entities.Facility) (*entities.Facility, error) {
	if err := validateFacility(changes); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *changes
	updated.ID = existing.ID
	updated.Location = existing.Location
	updated.Ratings = existing.Ratings
	updated.IsActive = existing.IsActive
	updated.CreatedAt = existing.CreatedAt

	if addressChanged(existing.Address, changes.Address) {
		location, err := s.geocodeAddress(ctx, changes.Address)
		if err != nil {
			return nil, err
		}
		updated.Location = location
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	if updated.IsActive {
		s.index(ctx, &updated)
	}
	return &updated, nil
}

// Delete deactivates a facility and removes it from the search index
func (s *FacilityService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if s.searchRepo != nil {
		if err := s.searchRepo.Delete(ctx, id); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("facility_id", id).Msg("Failed to delete facility from index")
		}
	}

	return nil
}

// List retrieves active facilities
func (s *FacilityService) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	if filter.FacilityType != "" && !entities.FacilityType(filter.FacilityType).Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown facility type %q", filter.FacilityType))
	}
	return s.repo.List(ctx, filter)
}

// SearchNearby geocodes the location and returns active facilities within the radius
func (s *FacilityService) SearchNearby(ctx context.Context, req NearbySearchRequest) (*entities.NearbySearchResult, error) {
	ctx, span := observability.StartSpan(ctx, "FacilityService.SearchNearby")
	defer span.End()

	location := strings.TrimSpace(req.Location)
	if location == "" {
		return nil, apperrors.NewValidationError("location is required")
	}
	radiusKm, err := s.limits.resolve(req.RadiusKm)
	if err != nil {
		return nil, err
	}
	if req.FacilityType != "" && !entities.FacilityType(req.FacilityType).Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown facility type %q", req.FacilityType))
	}
	if err := validateOptions(req.PaymentOptions, entities.PaymentOptionNames); err != nil {
		return nil, err
	}

	origin, err := s.geocoder.Geocode(ctx, location)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	nearby, err := s.FindNear(ctx, origin.Coordinates, radiusKm, repositories.NearFilter{
		FacilityType:   req.FacilityType,
		PaymentOptions: req.PaymentOptions,
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	observability.SetSpanAttributes(span, attribute.Int("search.result_count", len(nearby)))

	results := make([]entities.NearbyFacility, 0, len(nearby))
	for _, n := range nearby {
		results = append(results, *n)
	}

	return &entities.NearbySearchResult{
		Location: location,
		SearchCoordinates: entities.Location{
			Latitude:  origin.Coordinates.Latitude,
			Longitude: origin.Coordinates.Longitude,
		},
		RadiusKm:       radiusKm,
		TotalProviders: len(results),
		Providers:      results,
	}, nil
}

// FindNear uses the search index to pick candidates when it is in sync with the
// database and falls back to the database radius query otherwise.
func (s *FacilityService) FindNear(ctx context.Context, center geo.Coordinates, radiusKm float64, filter repositories.NearFilter) ([]*entities.NearbyFacility, error) {
	if s.searchRepo != nil && !s.IndexStale() {
		ids, err := s.searchRepo.NearbyIDs(ctx, center, radiusKm, filter)
		if err == nil {
			candidates, err := s.repo.GetByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			return entities.RankNearby(candidates, center, radiusKm, filter.PaymentOptions), nil
		}
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Search index unavailable, falling back to database")
	}

	return s.repo.FindNear(ctx, center, radiusKm, filter)
}

func (s *FacilityService) geocodeAddress(ctx context.Context, address entities.Address) (entities.Location, error) {
	loc, err := s.geocoder.Geocode(ctx, address.String())
	if err != nil {
		return entities.Location{}, err
	}
	return entities.Location{
		Latitude:  loc.Coordinates.Latitude,
		Longitude: loc.Coordinates.Longitude,
	}, nil
}

func (s *FacilityService) index(ctx context.Context, facility *entities.Facility) {
	if s.searchRepo == nil {
		return
	}
	if err := s.searchRepo.Index(ctx, facility); err != nil {
		s.markIndexStale()
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("facility_id", facility.ID).Msg("Failed to index facility, radius search uses the database until resync")
	}
}

// SyncIndex writes every active facility to the search index. On success the
// index serves radius searches again, unless another write failed meanwhile.
func (s *FacilityService) SyncIndex(ctx context.Context) (int, error) {
	if s.searchRepo == nil {
		return 0, nil
	}

	s.indexMu.Lock()
	failures := s.indexFailures
	s.indexMu.Unlock()

	indexed := 0
	for offset := 0; ; offset += indexSyncPageSize {
		page, err := s.repo.List(ctx, repositories.FacilityFilter{Limit: indexSyncPageSize, Offset: offset})
		if err != nil {
			return indexed, err
		}
		for _, facility := range page {
			if err := s.searchRepo.Index(ctx, facility); err != nil {
				s.markIndexStale()
				return indexed, fmt.Errorf("failed to index facility %s: %w", facility.ID, err)
			}
			indexed++
		}
		if len(page) < indexSyncPageSize {
			break
		}
	}

	s.indexMu.Lock()
	if s.indexFailures == failures {
		s.indexStale = false
	}
	s.indexMu.Unlock()

	observability.LoggerFromContext(ctx).Info().Int("facilities", indexed).Msg("Search index synchronized")
	return indexed, nil
}

func (s *FacilityService) markIndexStale() {
	s.indexMu.Lock()
	s.indexStale = true
	s.indexFailures++
	s.indexMu.Unlock()
}

// IndexStale reports whether radius searches currently bypass the search index
func (s *FacilityService) IndexStale() bool {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return s.indexStale
}

func addressChanged(a, b entities.Address) bool {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return norm(a.Street) != norm(b.Street) ||
		norm(a.City) != norm(b.City) ||
		norm(a.State) != norm(b.State) ||
		norm(a.ZipCode) != norm(b.ZipCode) ||
		norm(a.Country) != norm(b.Country)
}

func validateFacility(f *entities.Facility) error {
	if f == nil {
		return apperrors.NewValidationError("facility is required")
	}
	if strings.TrimSpace(f.Name) == "" {
		return apperrors.NewValidationError("name is required")
	}
	if !f.FacilityType.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown facility type %q", f.FacilityType))
	}
	if f.Address.String() == "" {
		return apperrors.NewValidationError("address is required")
	}
	if f.CostLevel < entities.CostLevelVeryLow || f.CostLevel > entities.CostLevelStandard {
		return apperrors.NewValidationError("cost level must be between 0 and 3")
	}
	for _, pc := range f.ProcedureCosts {
		if strings.TrimSpace(pc.ProcedureName) == "" {
			return apperrors.NewValidationError("procedure name is required")
		}
		if pc.MinCost < 0 || pc.MinCost > pc.AverageCost || pc.AverageCost > pc.MaxCost {
			return apperrors.NewValidationError(fmt.Sprintf("procedure %q costs must satisfy 0 <= min <= average <= max", pc.ProcedureName))
		}
	}
	return nil
}
