package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/osm"

	"github.com/zatekoja/carefinder/internal/domain/entities"
	"github.com/zatekoja/carefinder/internal/domain/providers"
	"github.com/zatekoja/carefinder/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carefinder/pkg/errors"
	"github.com/zatekoja/carefinder/pkg/geo"
	"github.com/zatekoja/carefinder/pkg/retry"
)

const (
	defaultInterpreterURL = "https://overpass-api.de/api/interpreter"
	defaultHTTPTimeout    = 30 * time.Second
)

// healthcareSelectors are unioned for each element kind
var healthcareSelectors = []string{
	`["amenity"~"^(hospital|clinic|doctors)$"]`,
	`["healthcare"]`,
	`["social_facility"="healthcare"]`,
}

var elementKinds = []osm.Type{osm.TypeNode, osm.TypeWay, osm.TypeRelation}

// Client implements HealthcarePOIProvider against an Overpass API interpreter
type Client struct {
	httpClient    *http.Client
	baseURL       string
	userAgent     string
	timeout       time.Duration
	retryAttempts int
	metrics       *observability.Metrics
}

// Options configures a Client
type Options struct {
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	RetryAttempts int
	HTTPClient    *http.Client
	Metrics       *observability.Metrics
}

// NewClient creates an Overpass client
func NewClient(opts Options) providers.HealthcarePOIProvider {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = defaultInterpreterURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultHTTPTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	return &Client{
		httpClient:    opts.HTTPClient,
		baseURL:       opts.BaseURL,
		userAgent:     opts.UserAgent,
		timeout:       opts.Timeout,
		retryAttempts: opts.RetryAttempts,
		metrics:       opts.Metrics,
	}
}

// QueryHealthcare fetches healthcare elements around center plus the nodes of matched ways
func (c *Client) QueryHealthcare(ctx context.Context, center geo.Coordinates, radiusKm float64) (*entities.ElementBatch, error) {
	if !center.Valid() {
		return nil, apperrors.NewValidationError("search coordinates out of range")
	}
	if math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) || radiusKm <= 0 {
		return nil, apperrors.NewValidationError("radius must be a positive number")
	}
	return c.run(ctx, BuildHealthcareQuery(center, radiusKm, c.timeout))
}

// LookupElement fetches one element by kind and id
func (c *Client) LookupElement(ctx context.Context, elementType osm.Type, id int64) (*entities.ElementBatch, error) {
	switch elementType {
	case osm.TypeNode, osm.TypeWay, osm.TypeRelation:
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported element type %q", elementType))
	}
	if id <= 0 {
		return nil, apperrors.NewValidationError("element id must be positive")
	}

	batch, err := c.run(ctx, BuildElementQuery(elementType, id, c.timeout))
	if err != nil {
		return nil, err
	}
	for _, el := range batch.Elements {
		if el.Type == elementType && el.ID == id {
			return batch, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s %d not found", elementType, id))
}

// BuildHealthcareQuery renders the union query. Radius is sent in meters.
func BuildHealthcareQuery(center geo.Coordinates, radiusKm float64, timeout time.Duration) string {
	around := fmt.Sprintf("(around:%d,%f,%f)", int(radiusKm*1000), center.Latitude, center.Longitude)

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", timeoutSeconds(timeout))
	for _, selector := range healthcareSelectors {
		for _, kind := range elementKinds {
			fmt.Fprintf(&b, "  %s%s%s;\n", kind, selector, around)
		}
	}
	b.WriteString(");\nout body;\n>;\nout skel qt;\n")
	return b.String()
}

// BuildElementQuery renders a lookup for a single element and its child nodes
func BuildElementQuery(elementType osm.Type, id int64, timeout time.Duration) string {
	return fmt.Sprintf("[out:json][timeout:%d];\n%s(%d);\nout body;\n>;\nout skel qt;\n", timeoutSeconds(timeout), elementType, id)
}

func timeoutSeconds(d time.Duration) int {
	s := int(d.Seconds())
	if s < 1 {
		return 1
	}
	return s
}

func (c *Client) run(ctx context.Context, query string) (*entities.ElementBatch, error) {
	var resp *osm.OSM
	cfg := retry.OutboundConfig(c.retryAttempts, func(err error) bool {
		return apperrors.IsType(err, apperrors.ErrorTypeUpstreamUnavailable)
	})
	err := retry.DoWithLog(ctx, cfg, "overpass", func() error {
		start := time.Now()
		var reqErr error
		resp, reqErr = c.post(ctx, query)
		observability.RecordOutboundMetric(ctx, c.metrics, "overpass", reqErr, time.Since(start))
		return reqErr
	}, func(attempt int, err error, nextDelay time.Duration) {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("next_delay", nextDelay).
			Msg("Overpass request failed, retrying")
	})
	if err != nil {
		return nil, err
	}

	return entities.NewElementBatch(toRawElements(resp)), nil
}

func (c *Client) post(ctx context.Context, query string) (*osm.OSM, error) {
	form := url.Values{"data": []string{query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build overpass request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("overpass request failed", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, apperrors.NewUpstreamUnavailableError(
			fmt.Sprintf("overpass request returned status %d", httpResp.StatusCode), nil)
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("failed to read overpass response", err)
	}

	var status struct {
		Remark string `json:"remark"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("failed to decode overpass response", err)
	}

	// Overpass reports query timeouts and memory exhaustion as a 200 with a remark
	if strings.Contains(status.Remark, "runtime error") {
		return nil, apperrors.NewUpstreamUnavailableError("overpass query failed", errors.New(status.Remark))
	}

	data := &osm.OSM{}
	if err := json.Unmarshal(body, data); err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("failed to decode overpass elements", err)
	}

	return data, nil
}

// toRawElements flattens decoded data into nodes, ways, then relations.
// Relations carry no position of their own.
func toRawElements(data *osm.OSM) []entities.RawElement {
	out := make([]entities.RawElement, 0, len(data.Nodes)+len(data.Ways)+len(data.Relations))
	for _, n := range data.Nodes {
		lat, lon := n.Lat, n.Lon
		out = append(out, entities.RawElement{
			Type: osm.TypeNode,
			ID:   int64(n.ID),
			Lat:  &lat,
			Lon:  &lon,
			Tags: sortedTags(n.Tags),
		})
	}
	for _, w := range data.Ways {
		nodeIDs := make([]int64, 0, len(w.Nodes))
		for _, wn := range w.Nodes {
			nodeIDs = append(nodeIDs, int64(wn.ID))
		}
		out = append(out, entities.RawElement{
			Type:    osm.TypeWay,
			ID:      int64(w.ID),
			NodeIDs: nodeIDs,
			Tags:    sortedTags(w.Tags),
		})
	}
	for _, r := range data.Relations {
		out = append(out, entities.RawElement{
			Type: osm.TypeRelation,
			ID:   int64(r.ID),
			Tags: sortedTags(r.Tags),
		})
	}
	return out
}

func sortedTags(tags osm.Tags) osm.Tags {
	if len(tags) == 0 {
		return nil
	}
	tags.SortByKeyValue()
	return tags
}
