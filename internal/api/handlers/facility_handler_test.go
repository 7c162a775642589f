package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/carefinder/internal/api/handlers"
	"github.com/zatekoja/carefinder/internal/application/services"
	"github.com/zatekoja/carefinder/internal/domain/entities"
	"github.com/zatekoja/carefinder/internal/domain/repositories"
	apperrors "github.com/zatekoja/carefinder/pkg/errors"
)

type MockFacilityService struct {
	mock.Mock
}

func (m *MockFacilityService) Create(ctx context.Context, facility *entities.Facility) error {
	return m.Called(ctx, facility).Error(0)
}

func (m *MockFacilityService) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Facility), args.Error(1)
}

func (m *MockFacilityService) Update(ctx context.Context, id string, changes *entities.Facility) (*entities.Facility, error) {
	args := m.Called(ctx, id, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Facility), args.Error(1)
}

func (m *MockFacilityService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockFacilityService) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Facility), args.Error(1)
}

func (m *MockFacilityService) SearchNearby(ctx context.Context, req services.NearbySearchRequest) (*entities.NearbySearchResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.NearbySearchResult), args.Error(1)
}

type MockCostComparer struct {
	mock.Mock
}

func (m *MockCostComparer) CompareCosts(ctx context.Context, req services.CostComparisonRequest) (*entities.CostComparison, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CostComparison), args.Error(1)
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

const validFacilityBody = `{
	"name": "Mission Clinic",
	"facility_type": "clinic",
	"address": {"street": "100 Valencia St", "city": "San Francisco", "state": "CA", "zip_code": "94103"},
	"cost_level": 1,
	"payment_options": {"sliding_scale": true},
	"procedure_costs": [{"procedure_name": "Office Visit", "average_cost": 80, "min_cost": 40, "max_cost": 120}]
}`

func TestFacilityHandler_GetFacility(t *testing.T) {
	mockService := new(MockFacilityService)
	handler := handlers.NewFacilityHandler(mockService, new(MockCostComparer))

	facility := &entities.Facility{ID: "fac-1", Name: "Test Hospital", FacilityType: entities.FacilityTypeHospital}
	mockService.On("GetByID", mock.Anything, "fac-1").Return(facility, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/facilities/fac-1", nil)
	req.SetPathValue("id", "fac-1")
	rec := httptest.NewRecorder()

	handler.GetFacility(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	var got entities.Facility
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, "Test Hospital", got.Name)
	mockService.AssertExpectations(t)
}

func TestFacilityHandler_GetFacility_NotFound(t *testing.T) {
	mockService := new(MockFacilityService)
	handler := handlers.NewFacilityHandler(mockService, new(MockCostComparer))
	mockService.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NewNotFoundError("facility not found"))

	req := httptest.NewRequest(http.MethodGet, "/api/facilities/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()

	handler.GetFacility(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "facility not found", resp.Error)
}

func TestFacilityHandler_CreateFacility(t *testing.T) {
	mockService := new(MockFacilityService)
	handler := handlers.NewFacilityHandler(mockService, new(MockCostComparer))

	mockService.On("Create", mock.Anything, mock.MatchedBy(func(f *entities.Facility) bool {
		return f.Name == "Mission Clinic" &&
			f.FacilityType == entities.FacilityTypeClinic &&
			f.PaymentOptions.SlidingScale &&
			len(f.ProcedureCosts) == 1
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.Facility).ID = "generated-id"
	}).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/facilities", strings.NewReader(validFacilityBody))
	rec := httptest.NewRecorder()

	handler.CreateFacility(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	assert.Contains(t, string(resp.Data), `"id":"generated-id"`)
}

func TestFacilityHandler_CreateFacility_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"name":`},
		{"unknown field", `{"name":"x","bogus":1}`},
		{"missing name", strings.Replace(validFacilityBody, `"Mission Clinic"`, `""`, 1)},
		{"bad facility type", strings.Replace(validFacilityBody, `"clinic"`, `"spa"`, 1)},
		{"cost level too high", strings.Replace(validFacilityBody, `"cost_level": 1`, `"cost_level": 7`, 1)},
		{"min above average", strings.Replace(validFacilityBody, `"min_cost": 40`, `"min_cost": 90`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockFacilityService)
			handler := handlers.NewFacilityHandler(mockService, new(MockCostComparer))

			req := httptest.NewRequest(http.MethodPost, "/api/facilities", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.CreateFacility(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, decodeResponse(t, rec).Success)
			mockService.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestFacilityHandler_UpdateFacility(t *testing.T) {
	mockService := new(MockFacilityService)
	handler := handlers.NewFacilityHandler(mockService, new(MockCostComparer))

	updated := &entities.Facility{ID: "fac-1", Name: "Mission Clinic"}
	mockService.On("Update", mock.Anything, "fac-1", mock.AnythingOfType("*entities.Facility")).Return(updated, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/facilities/fac-1", strings.NewReader(validFacilityBody))
	req.SetPathValue("id", "fac-1")
	rec := httptest.NewRecorder()

	handler.UpdateFacility(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockService.AssertExpectations(t)
}

func TestFacilityHandler_DeleteFacility(t *testing.T) {
	mockService := new(MockFacilityService)
	handler := handlers.NewFacilityHandler(mockService, new(MockCostComparer))
	mockService.On("Delete", mock.Anything, "fac-1").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/facilities/fac-1", nil)
	req.SetPathValue("id", "fac-1")
	rec := httptest.NewRecorder()

	handler.DeleteFacility(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)
}

func TestFacilityHandler_ListFacilities(t *testing.T) {
	mockService := new(MockFacilityService)
	handler := handlers.NewFacilityHandler(mockService, new(MockCostComparer))

	filter := repositories.FacilityFilter{FacilityType: "hospital", Limit: 10, Offset: 20}
	mockService.On("List", mock.Anything, filter).Return([]*entities.Facility{{ID: "fac-1"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/facilities?type=hospital&limit=10&offset=20", nil)
	rec := httptest.NewRecorder()
	handler.ListFacilities(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decodeResponse(t, rec).Data), `"count":1`)

	req = httptest.NewRequest(http.MethodGet, "/api/facilities?limit=-1", nil)
	rec = httptest.NewRecorder()
	handler.ListFacilities(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFacilityHandler_SearchFacilities(t *testing.T) {
	mockService := new(MockFacilityService)
	handler := handlers.NewFacilityHandler(mockService, new(MockCostComparer))

	expected := services.NearbySearchRequest{
		Location:       "94110",
		RadiusKm:       8,
		FacilityType:   "clinic",
		PaymentOptions: []string{"slidingScale", "freeCare"},
	}
	mockService.On("SearchNearby", mock.Anything, expected).Return(&entities.NearbySearchResult{
		Location:  "94110",
		RadiusKm:  8,
		Providers: []entities.NearbyFacility{},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/facilities/search?location=94110&radius=8&type=clinic&payment=slidingScale,freeCare", nil)
	rec := httptest.NewRecorder()
	handler.SearchFacilities(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockService.AssertExpectations(t)
}

func TestFacilityHandler_SearchFacilities_BadRadius(t *testing.T) {
	mockService := new(MockFacilityService)
	handler := handlers.NewFacilityHandler(mockService, new(MockCostComparer))

	req := httptest.NewRequest(http.MethodGet, "/api/facilities/search?location=94110&radius=far", nil)
	rec := httptest.NewRecorder()
	handler.SearchFacilities(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockService.AssertNotCalled(t, "SearchNearby", mock.Anything, mock.Anything)
}

func TestFacilityHandler_CompareCosts(t *testing.T) {
	costs := new(MockCostComparer)
	handler := handlers.NewFacilityHandler(new(MockFacilityService), costs)

	costs.On("CompareCosts", mock.Anything, services.CostComparisonRequest{
		ProcedureName: "MRI",
		ZipCode:       "94110",
		InsuranceType: "medicare",
	}).Return(&entities.CostComparison{ProcedureName: "MRI", Insurance: entities.InsuranceMedicare}, nil)

	body := `{"procedure_name":"MRI","zip_code":"94110","insurance_type":"medicare"}`
	req := httptest.NewRequest(http.MethodPost, "/api/facilities/compare-costs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.CompareCosts(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decodeResponse(t, rec).Data), `"insurance_type":"medicare"`)
}

func TestFacilityHandler_CompareCosts_Radius(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"radius", `{"procedure_name":"MRI","zip_code":"94110","radius":8}`},
		{"radius_km alias", `{"procedure_name":"MRI","zip_code":"94110","radius_km":8}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			costs := new(MockCostComparer)
			handler := handlers.NewFacilityHandler(new(MockFacilityService), costs)
			costs.On("CompareCosts", mock.Anything, services.CostComparisonRequest{
				ProcedureName: "MRI",
				ZipCode:       "94110",
				RadiusKm:      8,
			}).Return(&entities.CostComparison{ProcedureName: "MRI", RadiusKm: 8}, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/facilities/compare-costs", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.CompareCosts(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			costs.AssertExpectations(t)
		})
	}
}

func TestFacilityHandler_CompareCosts_RejectsBothRadiusFields(t *testing.T) {
	costs := new(MockCostComparer)
	handler := handlers.NewFacilityHandler(new(MockFacilityService), costs)

	body := `{"procedure_name":"MRI","zip_code":"94110","radius":8,"radius_km":5}`
	req := httptest.NewRequest(http.MethodPost, "/api/facilities/compare-costs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.CompareCosts(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decodeResponse(t, rec).Success)
	costs.AssertNotCalled(t, "CompareCosts", mock.Anything, mock.Anything)
}

func TestFacilityHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"location not found", apperrors.NewLocationNotFoundError("Atlantis"), http.StatusBadRequest, ""},
		{"upstream", apperrors.NewUpstreamUnavailableError("nominatim returned 503", errors.New("secret detail")), http.StatusInternalServerError, "upstream service unavailable"},
		{"internal", apperrors.NewInternalError("failed to query", errors.New("pq: password auth failed")), http.StatusInternalServerError, "internal server error"},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			costs := new(MockCostComparer)
			handler := handlers.NewFacilityHandler(new(MockFacilityService), costs)
			costs.On("CompareCosts", mock.Anything, mock.Anything).Return(nil, tt.err)

			body := `{"procedure_name":"MRI","zip_code":"00000"}`
			req := httptest.NewRequest(http.MethodPost, "/api/facilities/compare-costs", strings.NewReader(body))
			rec := httptest.NewRecorder()
			handler.CompareCosts(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, resp.Error)
			}
			assert.NotContains(t, resp.Error, "secret")
			assert.NotContains(t, resp.Error, "password")
		})
	}
}
