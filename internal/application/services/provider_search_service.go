package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/paulmach/osm"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/carefinder/internal/domain/entities"
	"github.com/zatekoja/carefinder/internal/domain/providers"
	"github.com/zatekoja/carefinder/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carefinder/pkg/errors"
	"github.com/zatekoja/carefinder/pkg/geo"
	"github.com/zatekoja/carefinder/pkg/utils"
)

// SearchRequest is a live-map provider search. RadiusKm of zero uses the default.
type SearchRequest struct {
	Location       string
	RadiusKm       float64
	FacilityType   string
	PaymentOptions []string
}

// RadiusLimits bounds search radii in kilometers
type RadiusLimits struct {
	DefaultKm float64
	MaxKm     float64
}

// ProviderSearchService searches live map data for healthcare providers
type ProviderSearchService struct {
	geocoder   providers.GeolocationProvider
	poi        providers.HealthcarePOIProvider
	normalizer *utils.FacilityNormalizer
	limits     RadiusLimits
}

// NewProviderSearchService creates a new provider search service
func NewProviderSearchService(geocoder providers.GeolocationProvider, poi providers.HealthcarePOIProvider, limits RadiusLimits) *ProviderSearchService {
	return &ProviderSearchService{
		geocoder:   geocoder,
		poi:        poi,
		normalizer: utils.NewFacilityNormalizer(),
		limits:     limits,
	}
}

// Search geocodes the location, queries map data around it and returns the
// normalized providers nearest first. Any upstream failure fails the whole search.
func (s *ProviderSearchService) Search(ctx context.Context, req SearchRequest) (*entities.ProviderSearchResult, error) {
	ctx, span := observability.StartSpan(ctx, "ProviderSearchService.Search")
	defer span.End()

	location := strings.TrimSpace(req.Location)
	if location == "" {
		return nil, apperrors.NewValidationError("location is required")
	}
	radiusKm, err := s.limits.resolve(req.RadiusKm)
	if err != nil {
		return nil, err
	}
	if err := validateOptions(req.PaymentOptions, entities.ProviderPaymentOptions); err != nil {
		return nil, err
	}

	observability.SetSpanAttributes(span,
		attribute.String("search.location", location),
		attribute.Float64("search.radius_km", radiusKm),
	)

	origin, err := s.geocoder.Geocode(ctx, location)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	batch, err := s.poi.QueryHealthcare(ctx, origin.Coordinates, radiusKm)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	typeFilter := strings.ToLower(strings.TrimSpace(req.FacilityType))
	results := []entities.NormalizedFacility{}
	skipped := 0
	for _, el := range batch.Elements {
		if len(el.Tags) == 0 {
			continue
		}
		facility, ok := s.normalizer.Normalize(el, batch, origin.Coordinates)
		if !ok {
			skipped++
			continue
		}
		if typeFilter != "" && !strings.Contains(strings.ToLower(facility.FacilityType), typeFilter) {
			continue
		}
		if !satisfiesAny(facility.PaymentInfo, req.PaymentOptions) {
			continue
		}
		results = append(results, facility)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})

	observability.SetSpanAttributes(span,
		attribute.Int("search.result_count", len(results)),
		attribute.Int("search.skipped_count", skipped),
	)
	observability.LoggerFromContext(ctx).Debug().
		Str("location", location).
		Float64("radius_km", radiusKm).
		Int("elements", len(batch.Elements)).
		Int("results", len(results)).
		Int("skipped", skipped).
		Msg("Provider search completed")

	return &entities.ProviderSearchResult{
		OriginDisplayName: origin.DisplayName,
		Origin:            origin.Coordinates,
		RadiusKm:          radiusKm,
		Providers:         results,
		Count:             len(results),
	}, nil
}

// GetProviderDetail fetches and normalizes a single map element. Distance is
// measured from origin when one is given, otherwise it is zero.
func (s *ProviderSearchService) GetProviderDetail(ctx context.Context, elementType string, id int64, origin *geo.Coordinates) (*entities.NormalizedFacility, error) {
	ctx, span := observability.StartSpan(ctx, "ProviderSearchService.GetProviderDetail")
	defer span.End()

	kind := osm.Type(strings.ToLower(strings.TrimSpace(elementType)))
	switch kind {
	case osm.TypeNode, osm.TypeWay, osm.TypeRelation:
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported element type %q", elementType))
	}
	if origin != nil && !origin.Valid() {
		return nil, apperrors.NewValidationError("origin coordinates out of range")
	}

	batch, err := s.poi.LookupElement(ctx, kind, id)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	for _, el := range batch.Elements {
		if el.Type != kind || el.ID != id {
			continue
		}
		from := origin
		if from == nil {
			resolved, ok := utils.ResolveCoordinates(el, batch)
			if !ok {
				break
			}
			from = &resolved
		}
		facility, ok := s.normalizer.Normalize(el, batch, *from)
		if !ok {
			break
		}
		return &facility, nil
	}

	return nil, apperrors.NewNotFoundError(fmt.Sprintf("healthcare facility %s/%d not found", kind, id))
}

func (l RadiusLimits) resolve(radiusKm float64) (float64, error) {
	if math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) {
		return 0, apperrors.NewValidationError("radius must be a finite number")
	}
	if radiusKm == 0 {
		return l.DefaultKm, nil
	}
	if radiusKm < 0 || (l.MaxKm > 0 && radiusKm > l.MaxKm) {
		return 0, apperrors.NewValidationError(fmt.Sprintf("radius must be between 0 and %g km", l.MaxKm))
	}
	return radiusKm, nil
}

func satisfiesAny(info entities.PaymentInfo, options []string) bool {
	if len(options) == 0 {
		return true
	}
	for _, option := range options {
		if info.Satisfies(option) {
			return true
		}
	}
	return false
}

func validateOptions(options, allowed []string) error {
	for _, option := range options {
		known := false
		for _, a := range allowed {
			if option == a {
				known = true
				break
			}
		}
		if !known {
			return apperrors.NewValidationError(fmt.Sprintf("unknown payment option %q", option))
		}
	}
	return nil
}
