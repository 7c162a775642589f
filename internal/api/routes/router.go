package routes

import (
	"net/http"

	"github.com/justinas/alice"

	"github.com/zatekoja/carefinder/internal/api/handlers"
	"github.com/zatekoja/carefinder/internal/api/middleware"
	"github.com/zatekoja/carefinder/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	providerHandler    *handlers.ProviderHandler
	facilityHandler    *handlers.FacilityHandler
	geolocationHandler *handlers.GeolocationHandler

	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// NewRouter creates a new router. cacheMiddleware may be nil.
func NewRouter(
	providerHandler *handlers.ProviderHandler,
	facilityHandler *handlers.FacilityHandler,
	geolocationHandler *handlers.GeolocationHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		providerHandler:    providerHandler,
		facilityHandler:    facilityHandler,
		geolocationHandler: geolocationHandler,
		cacheMiddleware:    cacheMiddleware,
		allowedOrigins:     allowedOrigins,
		metrics:            metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Live map search
	r.mux.HandleFunc("GET /api/providers/search", r.providerHandler.Search)
	r.mux.HandleFunc("GET /api/providers/{type}/{id}", r.providerHandler.GetProvider)

	// Facility directory
	r.mux.HandleFunc("GET /api/facilities/search", r.facilityHandler.SearchFacilities)
	r.mux.HandleFunc("POST /api/facilities/compare-costs", r.facilityHandler.CompareCosts)
	r.mux.HandleFunc("POST /api/facilities", r.facilityHandler.CreateFacility)
	r.mux.HandleFunc("GET /api/facilities", r.facilityHandler.ListFacilities)
	r.mux.HandleFunc("GET /api/facilities/{id}", r.facilityHandler.GetFacility)
	r.mux.HandleFunc("PUT /api/facilities/{id}", r.facilityHandler.UpdateFacility)
	r.mux.HandleFunc("DELETE /api/facilities/{id}", r.facilityHandler.DeleteFacility)

	r.mux.HandleFunc("GET /api/geocode", r.geolocationHandler.Geocode)

	// CORS is outermost so cached responses also get CORS headers
	chain := alice.New(
		middleware.CORSMiddleware(r.allowedOrigins),
		middleware.ObservabilityMiddleware(r.metrics),
	)
	if r.cacheMiddleware != nil {
		chain = chain.Append(r.cacheMiddleware.Middleware)
	}
	return chain.Append(middleware.LoggingMiddleware).Then(r.mux)
}
