package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/carefinder/internal/adapters/cache"
	"github.com/zatekoja/carefinder/internal/adapters/database"
	"github.com/zatekoja/carefinder/internal/adapters/providers/geolocation"
	"github.com/zatekoja/carefinder/internal/adapters/providers/overpass"
	"github.com/zatekoja/carefinder/internal/adapters/search"
	"github.com/zatekoja/carefinder/internal/api/handlers"
	"github.com/zatekoja/carefinder/internal/api/middleware"
	"github.com/zatekoja/carefinder/internal/api/routes"
	"github.com/zatekoja/carefinder/internal/application/services"
	"github.com/zatekoja/carefinder/internal/domain/providers"
	"github.com/zatekoja/carefinder/internal/domain/repositories"
	"github.com/zatekoja/carefinder/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/carefinder/internal/infrastructure/clients/redis"
	"github.com/zatekoja/carefinder/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/carefinder/internal/infrastructure/observability"
	"github.com/zatekoja/carefinder/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	if err := pgClient.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}

	// Redis is optional; without it caches live in process memory
	var cacheProvider providers.CacheProvider
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, using in-memory cache")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient)
		}
	}
	if cacheProvider == nil {
		cacheProvider = cache.NewMemoryAdapter(cfg.Geolocation.CacheSize, 24*time.Hour)
	}

	var searchRepo repositories.FacilitySearchRepository
	if cfg.Typesense.Enabled {
		typesenseClient, err := typesense.NewClient(ctx, &cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable, radius search uses the database only")
		} else if err := typesenseClient.InitSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to init Typesense schema")
		} else {
			searchRepo = search.NewTypesenseAdapter(typesenseClient)
		}
	}

	facilityRepo := database.NewCachedFacilityAdapter(
		database.NewFacilityAdapter(pgClient, metrics),
		cacheProvider,
		metrics,
	)

	geocoder, err := geolocation.NewProvider(&cfg.Geolocation, cacheProvider, metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize geocoder")
	}

	poiProvider := overpass.NewClient(overpass.Options{
		BaseURL:       cfg.Overpass.URL,
		UserAgent:     cfg.Geolocation.UserAgent,
		Timeout:       cfg.Overpass.Timeout,
		RetryAttempts: cfg.Overpass.RetryAttempts,
		Metrics:       metrics,
	})

	limits := services.RadiusLimits{
		DefaultKm: cfg.Search.DefaultRadiusKm,
		MaxKm:     cfg.Search.MaxRadiusKm,
	}
	providerSearchService := services.NewProviderSearchService(geocoder, poiProvider, limits)
	facilityService := services.NewFacilityService(facilityRepo, searchRepo, geocoder, limits)
	costEstimator := services.NewCostEstimator(geocoder, facilityService, limits)

	if searchRepo != nil {
		go keepIndexInSync(ctx, facilityService, cfg.Typesense.ResyncInterval)
	}

	router := routes.NewRouter(
		handlers.NewProviderHandler(providerSearchService),
		handlers.NewFacilityHandler(facilityService, costEstimator),
		handlers.NewGeolocationHandler(geocoder),
		middleware.NewCacheMiddleware(cacheProvider, metrics),
		cfg.Server.AllowedOrigins,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Overpass.Timeout + cfg.Geolocation.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("Server stopped")
}

// keepIndexInSync rebuilds the search index at startup and again whenever a
// failed index write has left it stale.
func keepIndexInSync(ctx context.Context, svc *services.FacilityService, interval time.Duration) {
	resync := func() {
		if n, err := svc.SyncIndex(ctx); err != nil {
			log.Warn().Err(err).Int("indexed", n).Msg("Search index sync failed, radius search uses the database")
		}
	}

	resync()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if svc.IndexStale() {
				resync()
			}
		}
	}
}
