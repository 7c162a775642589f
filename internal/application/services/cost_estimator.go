package services

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/zatekoja/carefinder/internal/domain/entities"
	"github.com/zatekoja/carefinder/internal/domain/providers"
	"github.com/zatekoja/carefinder/internal/domain/repositories"
	"github.com/zatekoja/carefinder/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carefinder/pkg/errors"
	"github.com/zatekoja/carefinder/pkg/geo"
)

// CostDisclaimer accompanies every estimate
const CostDisclaimer = "Estimated costs are a simulation using fixed insurance discounts. They are not a quote or a benefits determination."

// insuranceMultipliers are display discounts, not real plan pricing
var insuranceMultipliers = map[entities.InsuranceCategory]float64{
	entities.InsuranceNone:     1.0,
	entities.InsurancePrivate:  0.60,
	entities.InsuranceMedicare: 0.45,
	entities.InsuranceMedicaid: 0.40,
}

// ParseInsuranceCategory maps free text to a category. Unknown values are none.
func ParseInsuranceCategory(value string) entities.InsuranceCategory {
	category := entities.InsuranceCategory(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := insuranceMultipliers[category]; ok {
		return category
	}
	return entities.InsuranceNone
}

// Estimate applies the insurance multiplier to a stored procedure cost.
// Each figure is rounded to the nearest whole currency unit on its own.
func Estimate(cost entities.ProcedureCost, category entities.InsuranceCategory) entities.CostEstimate {
	multiplier, ok := insuranceMultipliers[category]
	if !ok {
		category = entities.InsuranceNone
		multiplier = 1.0
	}
	return entities.CostEstimate{
		ProcedureName: cost.ProcedureName,
		Insurance:     category,
		AverageCost:   math.Round(cost.AverageCost * multiplier),
		MinCost:       math.Round(cost.MinCost * multiplier),
		MaxCost:       math.Round(cost.MaxCost * multiplier),
		Simulated:     true,
	}
}

// NearbyFacilityFinder returns active facilities around a point, nearest first
type NearbyFacilityFinder interface {
	FindNear(ctx context.Context, center geo.Coordinates, radiusKm float64, filter repositories.NearFilter) ([]*entities.NearbyFacility, error)
}

// CostComparisonRequest compares one procedure across nearby facilities
type CostComparisonRequest struct {
	ProcedureName string
	ZipCode       string
	InsuranceType string
	RadiusKm      float64
}

// CostEstimator compares insurance-adjusted procedure costs across facilities
type CostEstimator struct {
	geocoder   providers.GeolocationProvider
	facilities NearbyFacilityFinder
	limits     RadiusLimits
}

// NewCostEstimator creates a new cost estimator
func NewCostEstimator(geocoder providers.GeolocationProvider, facilities NearbyFacilityFinder, limits RadiusLimits) *CostEstimator {
	return &CostEstimator{
		geocoder:   geocoder,
		facilities: facilities,
		limits:     limits,
	}
}

// CompareCosts lists facilities near the zip code that offer the procedure,
// cheapest adjusted average cost first
func (e *CostEstimator) CompareCosts(ctx context.Context, req CostComparisonRequest) (*entities.CostComparison, error) {
	ctx, span := observability.StartSpan(ctx, "CostEstimator.CompareCosts")
	defer span.End()

	procedure := strings.TrimSpace(req.ProcedureName)
	if procedure == "" {
		return nil, apperrors.NewValidationError("procedure name is required")
	}
	zip := strings.TrimSpace(req.ZipCode)
	if zip == "" {
		return nil, apperrors.NewValidationError("zip code is required")
	}
	radiusKm, err := e.limits.resolve(req.RadiusKm)
	if err != nil {
		return nil, err
	}
	category := ParseInsuranceCategory(req.InsuranceType)

	origin, err := e.geocoder.Geocode(ctx, zip)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	nearby, err := e.facilities.FindNear(ctx, origin.Coordinates, radiusKm, repositories.NearFilter{})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	rows := []entities.CostComparisonEntry{}
	for _, n := range nearby {
		cost, ok := n.FindProcedure(procedure)
		if !ok {
			continue
		}
		estimate := Estimate(cost, category)
		rows = append(rows, entities.CostComparisonEntry{
			FacilityID:     n.ID,
			FacilityName:   n.Name,
			FacilityType:   n.FacilityType,
			AverageCost:    estimate.AverageCost,
			MinCost:        estimate.MinCost,
			MaxCost:        estimate.MaxCost,
			DistanceKm:     n.DistanceKm,
			PaymentOptions: n.PaymentOptions,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].AverageCost < rows[j].AverageCost
	})

	return &entities.CostComparison{
		ProcedureName: procedure,
		Location:      origin.DisplayName,
		Insurance:     category,
		RadiusKm:      radiusKm,
		Disclaimer:    CostDisclaimer,
		Providers:     rows,
	}, nil
}
