package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/carefinder/internal/domain/providers"
	"github.com/zatekoja/carefinder/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carefinder/pkg/errors"
	"github.com/zatekoja/carefinder/pkg/geo"
	"github.com/zatekoja/carefinder/pkg/retry"
)

const (
	nominatimSearchURL = "https://nominatim.openstreetmap.org/search"
	defaultUserAgent   = "carefinder/1.0"
	defaultHTTPTimeout = 8 * time.Second
)

// NominatimGeolocationProvider implements the GeolocationProvider using the Nominatim search API.
type NominatimGeolocationProvider struct {
	httpClient    *http.Client
	baseURL       string
	userAgent     string
	retryAttempts int
	metrics       *observability.Metrics
}

// NominatimOptions configures a NominatimGeolocationProvider
type NominatimOptions struct {
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	RetryAttempts int
	HTTPClient    *http.Client
	Metrics       *observability.Metrics
}

// NewNominatimGeolocationProvider creates a provider against the public Nominatim instance.
func NewNominatimGeolocationProvider(userAgent string) providers.GeolocationProvider {
	return NewNominatimGeolocationProviderWithOptions(NominatimOptions{UserAgent: userAgent})
}

// NewNominatimGeolocationProviderWithOptions allows overriding base URL and HTTP client (used for tests).
func NewNominatimGeolocationProviderWithOptions(opts NominatimOptions) providers.GeolocationProvider {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = nominatimSearchURL
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.HTTPClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	return &NominatimGeolocationProvider{
		httpClient:    opts.HTTPClient,
		baseURL:       opts.BaseURL,
		userAgent:     opts.UserAgent,
		retryAttempts: opts.RetryAttempts,
		metrics:       opts.Metrics,
	}
}

// Geocode resolves free text to the first Nominatim match.
func (n *NominatimGeolocationProvider) Geocode(ctx context.Context, address string) (*providers.GeocodedLocation, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, apperrors.NewValidationError("location is required")
	}

	var places []nominatimPlace
	cfg := retry.OutboundConfig(n.retryAttempts, isUpstreamFailure)
	err := retry.DoWithLog(ctx, cfg, "nominatim", func() error {
		start := time.Now()
		var reqErr error
		places, reqErr = n.search(ctx, trimmed)
		observability.RecordOutboundMetric(ctx, n.metrics, "nominatim", reqErr, time.Since(start))
		return reqErr
	}, func(attempt int, err error, nextDelay time.Duration) {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("next_delay", nextDelay).
			Msg("Geocode request failed, retrying")
	})
	if err != nil {
		return nil, err
	}

	if len(places) == 0 {
		return nil, apperrors.NewLocationNotFoundError(trimmed)
	}

	place := places[0]
	lat, latErr := strconv.ParseFloat(place.Lat, 64)
	lon, lonErr := strconv.ParseFloat(place.Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, apperrors.NewUpstreamUnavailableError("geocoder returned invalid coordinates", fmt.Errorf("lat=%q lon=%q", place.Lat, place.Lon))
	}

	coords := geo.Coordinates{Latitude: lat, Longitude: lon}
	if !coords.Valid() {
		return nil, apperrors.NewUpstreamUnavailableError("geocoder returned out-of-range coordinates", nil)
	}

	return &providers.GeocodedLocation{
		Coordinates: coords,
		DisplayName: place.DisplayName,
	}, nil
}

func (n *NominatimGeolocationProvider) search(ctx context.Context, query string) ([]nominatimPlace, error) {
	params := url.Values{
		"q":      []string{query},
		"format": []string{"json"},
		"limit":  []string{"1"},
	}
	reqURL := fmt.Sprintf("%s?%s", n.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build geocode request", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("geocode request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewUpstreamUnavailableError(
			fmt.Sprintf("geocode request returned status %d", resp.StatusCode), nil)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("failed to decode geocode response", err)
	}
	return places, nil
}

func isUpstreamFailure(err error) bool {
	return apperrors.IsType(err, apperrors.ErrorTypeUpstreamUnavailable)
}

type nominatimPlace struct {
	PlaceID     int64  `json:"place_id"`
	OSMType     string `json:"osm_type"`
	OSMID       int64  `json:"osm_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Class       string `json:"class"`
	Type        string `json:"type"`
}
