package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/zatekoja/carefinder/internal/application/services"
	"github.com/zatekoja/carefinder/internal/domain/entities"
	apperrors "github.com/zatekoja/carefinder/pkg/errors"
	"github.com/zatekoja/carefinder/pkg/geo"
)

// ProviderSearcher is the live map search used by ProviderHandler
type ProviderSearcher interface {
	Search(ctx context.Context, req services.SearchRequest) (*entities.ProviderSearchResult, error)
	GetProviderDetail(ctx context.Context, elementType string, id int64, origin *geo.Coordinates) (*entities.NormalizedFacility, error)
}

// ProviderHandler handles live map provider requests
type ProviderHandler struct {
	searcher ProviderSearcher
}

// NewProviderHandler creates a new provider handler
func NewProviderHandler(searcher ProviderSearcher) *ProviderHandler {
	return &ProviderHandler{searcher: searcher}
}

// Search handles GET /api/providers/search?location=&radius=&type=&payment=
func (h *ProviderHandler) Search(w http.ResponseWriter, r *http.Request) {
	radius, err := queryRadius(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	query := r.URL.Query()
	result, err := h.searcher.Search(r.Context(), services.SearchRequest{
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

// GetProvider handles GET /api/providers/{type}/{id}?lat=&lon=
func (h *ProviderHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}

	origin, err := queryOrigin(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	facility, err := h.searcher.GetProviderDetail(r.Context(), r.PathValue("type"), id, origin)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, facility)
}

func queryOrigin(r *http.Request) (*geo.Coordinates, error) {
	latStr := strings.TrimSpace(r.URL.Query().Get("lat"))
	lonStr := strings.TrimSpace(r.URL.Query().Get("lon"))
	if latStr == "" && lonStr == "" {
		return nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, apperrors.NewValidationError("lat and lon must be given together")
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid lat parameter")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid lon parameter")
	}
	return &geo.Coordinates{Latitude: lat, Longitude: lon}, nil
}
