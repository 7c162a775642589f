package services_test

import (
	"context"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/carefinder/internal/domain/entities"
	"github.com/zatekoja/carefinder/internal/domain/providers"
	"github.com/zatekoja/carefinder/internal/domain/repositories"
	"github.com/zatekoja/carefinder/pkg/geo"
)

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Geocode(ctx context.Context, address string) (*providers.GeocodedLocation, error) {
	args := m.Called(ctx, address)
	if loc, ok := args.Get(0).(*providers.GeocodedLocation); ok {
		return loc, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPOIProvider struct {
	mock.Mock
}

func (m *mockPOIProvider) QueryHealthcare(ctx context.Context, center geo.Coordinates, radiusKm float64) (*entities.ElementBatch, error) {
	args := m.Called(ctx, center, radiusKm)
	if batch, ok := args.Get(0).(*entities.ElementBatch); ok {
		return batch, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPOIProvider) LookupElement(ctx context.Context, kind osm.Type, id int64) (*entities.ElementBatch, error) {
	args := m.Called(ctx, kind, id)
	if batch, ok := args.Get(0).(*entities.ElementBatch); ok {
		return batch, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockFacilityRepository struct {
	mock.Mock
}

func (m *mockFacilityRepository) Create(ctx context.Context, facility *entities.Facility) error {
	return m.Called(ctx, facility).Error(0)
}

func (m *mockFacilityRepository) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	args := m.Called(ctx, id)
	if f, ok := args.Get(0).(*entities.Facility); ok {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFacilityRepository) GetByIDs(ctx context.Context, ids []string) ([]*entities.Facility, error) {
	args := m.Called(ctx, ids)
	if f, ok := args.Get(0).([]*entities.Facility); ok {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFacilityRepository) Update(ctx context.Context, facility *entities.Facility) error {
	return m.Called(ctx, facility).Error(0)
}

func (m *mockFacilityRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockFacilityRepository) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	args := m.Called(ctx, filter)
	if f, ok := args.Get(0).([]*entities.Facility); ok {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFacilityRepository) FindNear(ctx context.Context, center geo.Coordinates, radiusKm float64, filter repositories.NearFilter) ([]*entities.NearbyFacility, error) {
	args := m.Called(ctx, center, radiusKm, filter)
	if f, ok := args.Get(0).([]*entities.NearbyFacility); ok {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSearchRepository struct {
	mock.Mock
}

func (m *mockSearchRepository) Index(ctx context.Context, facility *entities.Facility) error {
	return m.Called(ctx, facility).Error(0)
}

func (m *mockSearchRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSearchRepository) NearbyIDs(ctx context.Context, center geo.Coordinates, radiusKm float64, filter repositories.NearFilter) ([]string, error) {
	args := m.Called(ctx, center, radiusKm, filter)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func floatPtr(v float64) *float64 {
	return &v
}

func node(id int64, lat, lon float64, tags ...osm.Tag) entities.RawElement {
	return entities.RawElement{Type: osm.TypeNode, ID: id, Lat: floatPtr(lat), Lon: floatPtr(lon), Tags: tags}
}
