package services_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/carefinder/internal/application/services"
	"github.com/zatekoja/carefinder/internal/domain/entities"
	"github.com/zatekoja/carefinder/internal/domain/providers"
	"github.com/zatekoja/carefinder/internal/domain/repositories"
	apperrors "github.com/zatekoja/carefinder/pkg/errors"
	"github.com/zatekoja/carefinder/pkg/geo"
)

func newFacility() *entities.Facility {
	return &entities.Facility{
		Name:         "Mission Clinic",
		FacilityType: entities.FacilityTypeClinic,
		Address: entities.Address{
			Street:  "100 Valencia St",
			City:    "San Francisco",
			State:   "CA",
			ZipCode: "94103",
			Country: "USA",
		},
		CostLevel:      entities.CostLevelLow,
		PaymentOptions: entities.PaymentOptions{SlidingScale: true},
		ProcedureCosts: []entities.ProcedureCost{
			{ProcedureName: "Office Visit", AverageCost: 80, MinCost: 40, MaxCost: 120},
		},
		Ratings: entities.Ratings{Overall: 5, ReviewCount: 99},
	}
}

const missionAddress = "100 Valencia St, San Francisco, CA, 94103, USA"

var missionPoint = geo.Coordinates{Latitude: 37.7706, Longitude: -122.4224}

func TestFacilityService_Create(t *testing.T) {
	ctx := context.Background()
	repo := &mockFacilityRepository{}
	search := &mockSearchRepository{}
	geocoder := &mockGeocoder{}

	geocoder.On("Geocode", mock.Anything, missionAddress).Return(&providers.GeocodedLocation{Coordinates: missionPoint}, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*entities.Facility")).Return(nil)
	search.On("Index", mock.Anything, mock.AnythingOfType("*entities.Facility")).Return(nil)

	svc := services.NewFacilityService(repo, search, geocoder, testLimits)
	facility := newFacility()
	err := svc.Create(ctx, facility)
	require.NoError(t, err)

	assert.NotEmpty(t, facility.ID)
	assert.True(t, facility.IsActive)
	assert.Equal(t, missionPoint.Latitude, facility.Location.Latitude)
	assert.Equal(t, missionPoint.Longitude, facility.Location.Longitude)
	assert.Equal(t, entities.Ratings{}, facility.Ratings)
	assert.False(t, facility.CreatedAt.IsZero())
	repo.AssertExpectations(t)
	search.AssertExpectations(t)
}

func TestFacilityService_Create_IndexFailureDoesNotFailWrite(t *testing.T) {
	repo := &mockFacilityRepository{}
	search := &mockSearchRepository{}
	geocoder := &mockGeocoder{}

	geocoder.On("Geocode", mock.Anything, missionAddress).Return(&providers.GeocodedLocation{Coordinates: missionPoint}, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	search.On("Index", mock.Anything, mock.Anything).Return(errors.New("typesense down"))

	svc := services.NewFacilityService(repo, search, geocoder, testLimits)
	assert.NoError(t, svc.Create(context.Background(), newFacility()))
}

func TestFacilityService_Create_Validation(t *testing.T) {
	svc := services.NewFacilityService(&mockFacilityRepository{}, nil, &mockGeocoder{}, testLimits)

	tests := []struct {
		name   string
		mutate func(f *entities.Facility)
	}{
		{"missing name", func(f *entities.Facility) { f.Name = " " }},
		{"unknown type", func(f *entities.Facility) { f.FacilityType = "spa" }},
		{"empty address", func(f *entities.Facility) { f.Address = entities.Address{} }},
		{"cost level out of range", func(f *entities.Facility) { f.CostLevel = 4 }},
		{"min above average", func(f *entities.Facility) { f.ProcedureCosts[0].MinCost = 90 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFacility()
			tt.mutate(f)
			err := svc.Create(context.Background(), f)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), "got %v", err)
		})
	}
}

func TestFacilityService_Create_GeocodeFailure(t *testing.T) {
	repo := &mockFacilityRepository{}
	geocoder := &mockGeocoder{}
	geocoder.On("Geocode", mock.Anything, missionAddress).Return(nil, apperrors.NewLocationNotFoundError(missionAddress))

	svc := services.NewFacilityService(repo, nil, geocoder, testLimits)
	err := svc.Create(context.Background(), newFacility())

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeLocationNotFound))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestFacilityService_Update_KeepsLocationWhenAddressUnchanged(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	existing := newFacility()
	existing.ID = "fac-1"
	existing.IsActive = true
	existing.CreatedAt = created
	existing.Location = entities.Location{Latitude: missionPoint.Latitude, Longitude: missionPoint.Longitude}

	repo := &mockFacilityRepository{}
	geocoder := &mockGeocoder{}
	repo.On("GetByID", mock.Anything, "fac-1").Return(existing, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*entities.Facility")).Return(nil)

	svc := services.NewFacilityService(repo, nil, geocoder, testLimits)
	changes := newFacility()
	changes.Name = "Mission Community Clinic"
	changes.Address.City = "san francisco "
	changes.Ratings = entities.Ratings{}

	updated, err := svc.Update(context.Background(), "fac-1", changes)
	require.NoError(t, err)

	assert.Equal(t, "fac-1", updated.ID)
	assert.Equal(t, "Mission Community Clinic", updated.Name)
	assert.Equal(t, created, updated.CreatedAt)
	assert.Equal(t, existing.Ratings, updated.Ratings)
	assert.Equal(t, existing.Location, updated.Location)
	geocoder.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
}

func TestFacilityService_Update_RegeocodesChangedAddress(t *testing.T) {
	existing := newFacility()
	existing.ID = "fac-1"
	existing.IsActive = true

	moved := geo.Coordinates{Latitude: 37.8, Longitude: -122.3}
	repo := &mockFacilityRepository{}
	search := &mockSearchRepository{}
	geocoder := &mockGeocoder{}
	repo.On("GetByID", mock.Anything, "fac-1").Return(existing, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	search.On("Index", mock.Anything, mock.Anything).Return(nil)
	geocoder.On("Geocode", mock.Anything, "1 Market St, San Francisco, CA, 94103, USA").
		Return(&providers.GeocodedLocation{Coordinates: moved}, nil)

	svc := services.NewFacilityService(repo, search, geocoder, testLimits)
	changes := newFacility()
	changes.Address.Street = "1 Market St"

	updated, err := svc.Update(context.Background(), "fac-1", changes)
	require.NoError(t, err)
	assert.Equal(t, moved.Latitude, updated.Location.Latitude)
	search.AssertCalled(t, "Index", mock.Anything, updated)
}

func TestFacilityService_Update_NotFound(t *testing.T) {
	repo := &mockFacilityRepository{}
	repo.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NewNotFoundError("facility not found"))

	svc := services.NewFacilityService(repo, nil, &mockGeocoder{}, testLimits)
	_, err := svc.Update(context.Background(), "missing", newFacility())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestFacilityService_Delete(t *testing.T) {
	repo := &mockFacilityRepository{}
	search := &mockSearchRepository{}
	repo.On("Delete", mock.Anything, "fac-1").Return(nil)
	search.On("Delete", mock.Anything, "fac-1").Return(errors.New("index unavailable"))

	svc := services.NewFacilityService(repo, search, &mockGeocoder{}, testLimits)
	assert.NoError(t, svc.Delete(context.Background(), "fac-1"))
	repo.AssertExpectations(t)
	search.AssertExpectations(t)
}

func TestFacilityService_List_RejectsUnknownType(t *testing.T) {
	svc := services.NewFacilityService(&mockFacilityRepository{}, nil, &mockGeocoder{}, testLimits)
	_, err := svc.List(context.Background(), repositories.FacilityFilter{FacilityType: "spa"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

// syncedFacilityService returns a service whose search index has been
// synchronized against an empty directory.
func syncedFacilityService(t *testing.T, repo *mockFacilityRepository, search *mockSearchRepository, geocoder providers.GeolocationProvider) *services.FacilityService {
	t.Helper()
	repo.On("List", mock.Anything, repositories.FacilityFilter{Limit: 200, Offset: 0}).Return([]*entities.Facility{}, nil).Once()

	svc := services.NewFacilityService(repo, search, geocoder, testLimits)
	require.True(t, svc.IndexStale())
	_, err := svc.SyncIndex(context.Background())
	require.NoError(t, err)
	require.False(t, svc.IndexStale())
	return svc
}

func TestFacilityService_FindNear_UsesIndexCandidates(t *testing.T) {
	near := newFacility()
	near.ID = "near"
	near.IsActive = true
	near.Location = entities.Location{Latitude: 37.7759, Longitude: -122.4194}
	outside := newFacility()
	outside.ID = "outside"
	outside.IsActive = true
	outside.Location = entities.Location{Latitude: 38.5, Longitude: -122.4194}

	repo := &mockFacilityRepository{}
	search := &mockSearchRepository{}
	search.On("NearbyIDs", mock.Anything, sanFrancisco, 10.0, repositories.NearFilter{}).Return([]string{"near", "outside"}, nil)
	repo.On("GetByIDs", mock.Anything, []string{"near", "outside"}).Return([]*entities.Facility{outside, near}, nil)

	svc := syncedFacilityService(t, repo, search, &mockGeocoder{})
	results, err := svc.FindNear(context.Background(), sanFrancisco, 10, repositories.NearFilter{})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "near", results[0].ID)
	repo.AssertNotCalled(t, "FindNear", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFacilityService_FindNear_FallsBackToDatabase(t *testing.T) {
	repo := &mockFacilityRepository{}
	search := &mockSearchRepository{}
	filter := repositories.NearFilter{PaymentOptions: []string{"freeCare"}}
	search.On("NearbyIDs", mock.Anything, sanFrancisco, 10.0, filter).Return(nil, errors.New("connection refused"))
	repo.On("FindNear", mock.Anything, sanFrancisco, 10.0, filter).Return([]*entities.NearbyFacility{}, nil)

	svc := syncedFacilityService(t, repo, search, &mockGeocoder{})
	results, err := svc.FindNear(context.Background(), sanFrancisco, 10, filter)
	require.NoError(t, err)
	assert.Empty(t, results)
	repo.AssertExpectations(t)
	search.AssertExpectations(t)
}

func TestFacilityService_FindNear_UsesDatabaseUntilIndexSynced(t *testing.T) {
	repo := &mockFacilityRepository{}
	search := &mockSearchRepository{}
	repo.On("FindNear", mock.Anything, sanFrancisco, 10.0, repositories.NearFilter{}).Return([]*entities.NearbyFacility{}, nil)

	svc := services.NewFacilityService(repo, search, &mockGeocoder{}, testLimits)
	_, err := svc.FindNear(context.Background(), sanFrancisco, 10, repositories.NearFilter{})
	require.NoError(t, err)

	repo.AssertExpectations(t)
	search.AssertNotCalled(t, "NearbyIDs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFacilityService_FindNear_ReturnsFacilityMissingFromIndex(t *testing.T) {
	ctx := context.Background()
	repo := &mockFacilityRepository{}
	search := &mockSearchRepository{}
	geocoder := &mockGeocoder{}

	geocoder.On("Geocode", mock.Anything, missionAddress).Return(&providers.GeocodedLocation{Coordinates: missionPoint}, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	search.On("Index", mock.Anything, mock.Anything).Return(errors.New("typesense down"))
	search.On("NearbyIDs", mock.Anything, missionPoint, 10.0, repositories.NearFilter{}).Return([]string{}, nil)

	svc := syncedFacilityService(t, repo, search, geocoder)

	facility := newFacility()
	require.NoError(t, svc.Create(ctx, facility))
	assert.True(t, svc.IndexStale())

	repo.On("FindNear", mock.Anything, missionPoint, 10.0, repositories.NearFilter{}).Return([]*entities.NearbyFacility{
		{Facility: facility, DistanceKm: 0},
	}, nil)

	results, err := svc.FindNear(ctx, missionPoint, 10, repositories.NearFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, facility.ID, results[0].ID)
	search.AssertNotCalled(t, "NearbyIDs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFacilityService_SyncIndex_RestoresIndexAfterFailedWrite(t *testing.T) {
	ctx := context.Background()
	repo := &mockFacilityRepository{}
	search := &mockSearchRepository{}
	geocoder := &mockGeocoder{}

	geocoder.On("Geocode", mock.Anything, missionAddress).Return(&providers.GeocodedLocation{Coordinates: missionPoint}, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	search.On("Index", mock.Anything, mock.Anything).Return(errors.New("typesense down")).Once()

	svc := syncedFacilityService(t, repo, search, geocoder)
	facility := newFacility()
	require.NoError(t, svc.Create(ctx, facility))
	require.True(t, svc.IndexStale())

	repo.On("List", mock.Anything, repositories.FacilityFilter{Limit: 200, Offset: 0}).Return([]*entities.Facility{facility}, nil).Once()
	search.On("Index", mock.Anything, facility).Return(nil).Once()

	indexed, err := svc.SyncIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, indexed)
	assert.False(t, svc.IndexStale())

	search.On("NearbyIDs", mock.Anything, missionPoint, 10.0, repositories.NearFilter{}).Return([]string{facility.ID}, nil)
	repo.On("GetByIDs", mock.Anything, []string{facility.ID}).Return([]*entities.Facility{facility}, nil)

	results, err := svc.FindNear(ctx, missionPoint, 10, repositories.NearFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	repo.AssertNotCalled(t, "FindNear", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFacilityService_SyncIndex_PagesThroughDirectory(t *testing.T) {
	repo := &mockFacilityRepository{}
	search := &mockSearchRepository{}

	firstPage := make([]*entities.Facility, 200)
	for i := range firstPage {
		firstPage[i] = newFacility()
	}
	repo.On("List", mock.Anything, repositories.FacilityFilter{Limit: 200, Offset: 0}).Return(firstPage, nil)
	repo.On("List", mock.Anything, repositories.FacilityFilter{Limit: 200, Offset: 200}).Return([]*entities.Facility{newFacility()}, nil)
	search.On("Index", mock.Anything, mock.Anything).Return(nil)

	svc := services.NewFacilityService(repo, search, &mockGeocoder{}, testLimits)
	indexed, err := svc.SyncIndex(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 201, indexed)
	assert.False(t, svc.IndexStale())
	search.AssertNumberOfCalls(t, "Index", 201)
}

func TestFacilityService_SyncIndex_FailureKeepsDatabasePath(t *testing.T) {
	repo := &mockFacilityRepository{}
	search := &mockSearchRepository{}
	repo.On("List", mock.Anything, mock.Anything).Return([]*entities.Facility{newFacility()}, nil)
	search.On("Index", mock.Anything, mock.Anything).Return(errors.New("typesense down"))

	svc := services.NewFacilityService(repo, search, &mockGeocoder{}, testLimits)
	_, err := svc.SyncIndex(context.Background())

	assert.Error(t, err)
	assert.True(t, svc.IndexStale())
}

func TestFacilityService_SyncIndex_WithoutIndex(t *testing.T) {
	svc := services.NewFacilityService(&mockFacilityRepository{}, nil, &mockGeocoder{}, testLimits)

	indexed, err := svc.SyncIndex(context.Background())
	require.NoError(t, err)
	assert.Zero(t, indexed)
}

func TestFacilityService_SearchNearby(t *testing.T) {
	facility := newFacility()
	facility.ID = "fac-1"
	facility.IsActive = true

	repo := &mockFacilityRepository{}
	filter := repositories.NearFilter{FacilityType: "clinic", PaymentOptions: []string{"slidingScale"}}
	repo.On("FindNear", mock.Anything, sanFrancisco, 16.0, filter).Return([]*entities.NearbyFacility{
		{Facility: facility, DistanceKm: 1.2},
	}, nil)

	svc := services.NewFacilityService(repo, nil, sfGeocoder(), testLimits)
	result, err := svc.SearchNearby(context.Background(), services.NearbySearchRequest{
		Location:       "San Francisco",
		FacilityType:   "clinic",
		PaymentOptions: []string{"slidingScale"},
	})
	require.NoError(t, err)

	assert.Equal(t, "San Francisco", result.Location)
	assert.Equal(t, sanFrancisco.Latitude, result.SearchCoordinates.Latitude)
	assert.Equal(t, 16.0, result.RadiusKm)
	assert.Equal(t, 1, result.TotalProviders)
	assert.Equal(t, "fac-1", result.Providers[0].ID)
}

func TestFacilityService_SearchNearby_Validation(t *testing.T) {
	svc := services.NewFacilityService(&mockFacilityRepository{}, nil, &mockGeocoder{}, testLimits)

	_, err := svc.SearchNearby(context.Background(), services.NearbySearchRequest{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.SearchNearby(context.Background(), services.NearbySearchRequest{Location: "x", PaymentOptions: []string{"bitcoin"}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.SearchNearby(context.Background(), services.NearbySearchRequest{Location: "x", FacilityType: "spa"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.SearchNearby(context.Background(), services.NearbySearchRequest{Location: "x", RadiusKm: math.NaN()})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}
