package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/zatekoja/carefinder/internal/application/services"
	"github.com/zatekoja/carefinder/internal/domain/entities"
	"github.com/zatekoja/carefinder/internal/domain/repositories"
	apperrors "github.com/zatekoja/carefinder/pkg/errors"
)

// FacilityManager is the facility directory used by FacilityHandler
type FacilityManager interface {
	Create(ctx context.Context, facility *entities.Facility) error
	GetByID(ctx context.Context, id string) (*entities.Facility, error)
	Update(ctx context.Context, id string, changes *entities.Facility) (*entities.Facility, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error)
	SearchNearby(ctx context.Context, req services.NearbySearchRequest) (*entities.NearbySearchResult, error)
}

// CostComparer compares procedure costs across nearby facilities
type CostComparer interface {
	CompareCosts(ctx context.Context, req services.CostComparisonRequest) (*entities.CostComparison, error)
}

// FacilityHandler handles facility-related HTTP requests
type FacilityHandler struct {
	facilities FacilityManager
	costs      CostComparer
	validator  *requestValidator
}

// NewFacilityHandler creates a new facility handler
func NewFacilityHandler(facilities FacilityManager, costs CostComparer) *FacilityHandler {
	return &FacilityHandler{
		facilities: facilities,
		costs:      costs,
		validator:  newRequestValidator(),
	}
}

type addressRequest struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code" validate:"required"`
	Country string `json:"country"`
}

type procedureCostRequest struct {
	ProcedureName string  `json:"procedure_name" validate:"required"`
	AverageCost   float64 `json:"average_cost" validate:"gte=0"`
	MinCost       float64 `json:"min_cost" validate:"gte=0,ltefield=AverageCost"`
	MaxCost       float64 `json:"max_cost" validate:"gtefield=AverageCost"`
	Description   string  `json:"description"`
}

type facilityRequest struct {
	Name           string                  `json:"name" validate:"required,max=200"`
	FacilityType   string                  `json:"facility_type" validate:"required,oneof=hospital clinic urgent_care community_health_center doctors_office health_center"`
	Address        addressRequest          `json:"address" validate:"required"`
	PhoneNumber    string                  `json:"phone_number" validate:"omitempty,max=40"`
	Email          string                  `json:"email" validate:"omitempty,email"`
	Website        string                  `json:"website" validate:"omitempty,url"`
	Hours          map[string]string       `json:"hours"`
	Services       []string                `json:"services" validate:"dive,required"`
	CostLevel      int                     `json:"cost_level" validate:"gte=0,lte=3"`
	PaymentOptions entities.PaymentOptions `json:"payment_options"`
	ProcedureCosts []procedureCostRequest  `json:"procedure_costs" validate:"dive"`
	Accessibility  entities.Accessibility  `json:"accessibility"`
}

func (req facilityRequest) toEntity() *entities.Facility {
	costs := make([]entities.ProcedureCost, 0, len(req.ProcedureCosts))
	for _, pc := range req.ProcedureCosts {
		costs = append(costs, entities.ProcedureCost{
			ProcedureName: pc.ProcedureName,
			AverageCost:   pc.AverageCost,
			MinCost:       pc.MinCost,
			MaxCost:       pc.MaxCost,
			Description:   pc.Description,
		})
	}
	return &entities.Facility{
		Name:         req.Name,
		FacilityType: entities.FacilityType(req.FacilityType),
		Address: entities.Address{
			Street:  req.Address.Street,
			City:    req.Address.City,
			State:   req.Address.State,
			ZipCode: req.Address.ZipCode,
			Country: req.Address.Country,
		},
		PhoneNumber:    req.PhoneNumber,
		Email:          req.Email,
		Website:        req.Website,
		Hours:          req.Hours,
		Services:       req.Services,
		CostLevel:      entities.CostLevel(req.CostLevel),
		PaymentOptions: req.PaymentOptions,
		ProcedureCosts: costs,
		Accessibility:  req.Accessibility,
	}
}

// compareCostsRequest takes the radius in km as "radius"; "radius_km" is an
// accepted alias and the two may not both be set.
type compareCostsRequest struct {
	ProcedureName string  `json:"procedure_name" validate:"required"`
	ZipCode       string  `json:"zip_code" validate:"required"`
	InsuranceType string  `json:"insurance_type"`
	Radius        float64 `json:"radius" validate:"gte=0,excluded_with=RadiusKm"`
	RadiusKm      float64 `json:"radius_km" validate:"gte=0"`
}

func (r compareCostsRequest) radiusKm() float64 {
	if r.Radius != 0 {
		return r.Radius
	}
	return r.RadiusKm
}

// CreateFacility handles POST /api/facilities
func (h *FacilityHandler) CreateFacility(w http.ResponseWriter, r *http.Request) {
	var req facilityRequest
	if err := h.validator.decode(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	facility := req.toEntity()
	if err := h.facilities.Create(r.Context(), facility); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, facility)
}

// GetFacility handles GET /api/facilities/{id}
func (h *FacilityHandler) GetFacility(w http.ResponseWriter, r *http.Request) {
	facilityID := r.PathValue("id")
	if facilityID == "" {
		respondWithError(w, http.StatusBadRequest, "facility ID is required")
		return
	}

	facility, err := h.facilities.GetByID(r.Context(), facilityID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, facility)
}

// UpdateFacility handles PUT /api/facilities/{id}
func (h *FacilityHandler) UpdateFacility(w http.ResponseWriter, r *http.Request) {
	var req facilityRequest
	if err := h.validator.decode(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	facility, err := h.facilities.Update(r.Context(), r.PathValue("id"), req.toEntity())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, facility)
}

// DeleteFacility handles DELETE /api/facilities/{id}
func (h *FacilityHandler) DeleteFacility(w http.ResponseWriter, r *http.Request) {
	facilityID := r.PathValue("id")
	if err := h.facilities.Delete(r.Context(), facilityID); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"id":        facilityID,
		"is_active": false,
	})
}

// ListFacilities handles GET /api/facilities
func (h *FacilityHandler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repositories.FacilityFilter{FacilityType: query.Get("type")}

	var err error
	if filter.Limit, err = queryInt(query.Get("limit")); err != nil {
		respondWithError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = queryInt(query.Get("offset")); err != nil {
		respondWithError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	facilities, err := h.facilities.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"facilities": facilities,
		"count":      len(facilities),
	})
}

// SearchFacilities handles GET /api/facilities/search?location=&radius=&type=&payment=
func (h *FacilityHandler) SearchFacilities(w http.ResponseWriter, r *http.Request) {
	radius, err := queryRadius(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	query := r.URL.Query()
	result, err := h.facilities.SearchNearby(r.Context(), services.NearbySearchRequest{
		Location:       query.Get("location"),
		RadiusKm:       radius,
		FacilityType:   query.Get("type"),
		PaymentOptions: queryList(r, "payment"),
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// CompareCosts handles POST /api/facilities/compare-costs
func (h *FacilityHandler) CompareCosts(w http.ResponseWriter, r *http.Request) {
	var req compareCostsRequest
	if err := h.validator.decode(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	comparison, err := h.costs.CompareCosts(r.Context(), services.CostComparisonRequest{
		ProcedureName: req.ProcedureName,
		ZipCode:       req.ZipCode,
		InsuranceType: req.InsuranceType,
		RadiusKm:      req.radiusKm(),
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, comparison)
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.NewValidationError("expected a non-negative integer")
	}
	return v, nil
}
