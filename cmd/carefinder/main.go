package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zatekoja/carefinder/internal/adapters/cache"
	"github.com/zatekoja/carefinder/internal/adapters/providers/geolocation"
	"github.com/zatekoja/carefinder/internal/adapters/providers/overpass"
	"github.com/zatekoja/carefinder/internal/application/services"
	"github.com/zatekoja/carefinder/internal/domain/providers"
	"github.com/zatekoja/carefinder/internal/infrastructure/observability"
	"github.com/zatekoja/carefinder/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "carefinder",
		Short:        "Find nearby healthcare facilities from OpenStreetMap data",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newGeocodeCmd())
	return rootCmd
}

func newSearchCmd() *cobra.Command {
	var (
		radiusKm       float64
		facilityType   string
		paymentOptions []string
	)

	cmd := &cobra.Command{
		Use:   "search <location>",
		Short: "Search live map data for healthcare providers near a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			geocoder, err := newGeocoder(cfg)
			if err != nil {
				return err
			}
			poi := overpass.NewClient(overpass.Options{
				BaseURL:       cfg.Overpass.URL,
				UserAgent:     cfg.Geolocation.UserAgent,
				Timeout:       cfg.Overpass.Timeout,
				RetryAttempts: cfg.Overpass.RetryAttempts,
			})
			svc := services.NewProviderSearchService(geocoder, poi, services.RadiusLimits{
				DefaultKm: cfg.Search.DefaultRadiusKm,
				MaxKm:     cfg.Search.MaxRadiusKm,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := svc.Search(ctx, services.SearchRequest{
				Location:       args[0],
				RadiusKm:       radiusKm,
				FacilityType:   facilityType,
				PaymentOptions: paymentOptions,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().Float64VarP(&radiusKm, "radius", "r", 0, "search radius in km (default from SEARCH_DEFAULT_RADIUS_KM)")
	cmd.Flags().StringVarP(&facilityType, "type", "t", "", "facility type substring, e.g. clinic")
	cmd.Flags().StringSliceVarP(&paymentOptions, "payment", "p", nil, "payment options: acceptsInsurance, slidingScale, freeCare")

	return cmd
}

func newGeocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode <address>",
		Short: "Resolve free-text location to coordinates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			geocoder, err := newGeocoder(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Geolocation.Timeout*time.Duration(cfg.Geolocation.RetryAttempts+1))
			defer cancel()

			location, err := geocoder.Geocode(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), location)
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	// Logs go to stderr so stdout stays valid JSON
	observability.InitLoggerWithWriter(cfg.OTEL.ServiceName, "development", cfg.LogLevel, os.Stderr)
	return cfg, nil
}

func newGeocoder(cfg *config.Config) (providers.GeolocationProvider, error) {
	memory := cache.NewMemoryAdapter(cfg.Geolocation.CacheSize, cfg.Geolocation.CacheTTL)
	return geolocation.NewProvider(&cfg.Geolocation, memory, nil)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
