package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/carefinder/internal/domain/entities"
	"github.com/zatekoja/carefinder/internal/domain/repositories"
	tsclient "github.com/zatekoja/carefinder/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/carefinder/pkg/geo"
)

const (
	collectionName = tsclient.FacilitiesCollection
	maxPerPage     = 250
)

// TypesenseAdapter implements the facility geo index using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements FacilitySearchRepository
var _ repositories.FacilitySearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts a facility document
func (a *TypesenseAdapter) Index(ctx context.Context, facility *entities.Facility) error {
	_, err := a.client.Client().Collection(collectionName).Documents().Upsert(ctx, buildFacilityDocument(facility))
	if err != nil {
		return fmt.Errorf("failed to index facility: %w", err)
	}
	return nil
}

// Delete removes a facility from index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(collectionName).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete facility from index: %w", err)
	}
	return nil
}

// NearbyIDs returns the ids of active facilities inside the radius, nearest first.
// Every result page is read so the candidate set is never truncated.
func (a *TypesenseAdapter) NearbyIDs(ctx context.Context, center geo.Coordinates, radiusKm float64, filter repositories.NearFilter) ([]string, error) {
	filterBy := buildNearbyFilter(center, radiusKm, filter)
	sortBy := fmt.Sprintf("location(%f, %f):asc", center.Latitude, center.Longitude)

	ids := []string{}
	for page := 1; ; page++ {
		searchParams := &api.SearchCollectionParams{
			Q:        pointer.String("*"),
			QueryBy:  pointer.String("name"),
			FilterBy: pointer.String(filterBy),
			SortBy:   pointer.String(sortBy),
			Page:     pointer.Int(page),
			PerPage:  pointer.Int(maxPerPage),
		}

		result, err := a.client.Client().Collection(collectionName).Documents().Search(ctx, searchParams)
		if err != nil {
			return nil, fmt.Errorf("failed to search facilities: %w", err)
		}
		if result.Hits == nil || len(*result.Hits) == 0 {
			return ids, nil
		}

		for _, hit := range *result.Hits {
			if hit.Document == nil {
				continue
			}
			doc := *hit.Document
			if id, ok := doc["id"].(string); ok {
				ids = append(ids, id)
			}
		}

		if len(*result.Hits) < maxPerPage {
			return ids, nil
		}
	}
}

func buildNearbyFilter(center geo.Coordinates, radiusKm float64, filter repositories.NearFilter) string {
	clauses := []string{
		"is_active:=true",
		fmt.Sprintf("location:(%f, %f, %f km)", center.Latitude, center.Longitude, radiusKm),
	}
	if filter.FacilityType != "" {
		clauses = append(clauses, fmt.Sprintf("facility_type:=%s", filter.FacilityType))
	}
	if len(filter.PaymentOptions) > 0 {
		clauses = append(clauses, fmt.Sprintf("payment_options:=[%s]", strings.Join(filter.PaymentOptions, ",")))
	}
	return strings.Join(clauses, " && ")
}

func buildFacilityDocument(facility *entities.Facility) map[string]interface{} {
	payment := []string{}
	for _, name := range entities.PaymentOptionNames {
		if facility.PaymentOptions.Has(name) {
			payment = append(payment, name)
		}
	}

	procedures := make([]string, 0, len(facility.ProcedureCosts))
	for _, pc := range facility.ProcedureCosts {
		procedures = append(procedures, strings.ToLower(strings.TrimSpace(pc.ProcedureName)))
	}

	return map[string]interface{}{
		"id":              facility.ID,
		"name":            facility.Name,
		"facility_type":   string(facility.FacilityType),
		"is_active":       facility.IsActive,
		"location":        []float64{facility.Location.Latitude, facility.Location.Longitude},
		"payment_options": payment,
		"procedures":      procedures,
		"cost_level":      int(facility.CostLevel),
		"created_at":      facility.CreatedAt.Unix(),
	}
}
