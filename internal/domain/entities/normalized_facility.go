package entities

import (
	"github.com/paulmach/osm"

	"github.com/zatekoja/carefinder/pkg/geo"
)

// TriState is an explicit yes/no tag value, or Unknown when the tag is absent
type TriState string

const (
	TriStateYes     TriState = "Yes"
	TriStateNo      TriState = "No"
	TriStateUnknown TriState = "Unknown"
)

// NotAvailable is the sentinel for missing contact fields
const NotAvailable = "Not available"

// AddressNotAvailable is the sentinel for a facility without address tags
const AddressNotAvailable = "Address not available"

// PaymentInfo is the payment data derived from map tags
type PaymentInfo struct {
	AcceptsInsurance TriState `json:"accepts_insurance"`
	SlidingScale     TriState `json:"sliding_scale"`
	FreeCare         TriState `json:"free_care"`
	PaymentMethods   []string `json:"payment_methods"`
}

// ProviderPaymentOptions are the request tokens accepted by the live-map payment filter
var ProviderPaymentOptions = []string{"acceptsInsurance", "slidingScale", "freeCare"}

// Satisfies reports whether the named option is explicitly Yes.
// Unknown and No both fail.
func (p PaymentInfo) Satisfies(option string) bool {
	switch option {
	case "acceptsInsurance":
		return p.AcceptsInsurance == TriStateYes
	case "slidingScale":
		return p.SlidingScale == TriStateYes
	case "freeCare":
		return p.FreeCare == TriStateYes
	}
	return false
}

// NormalizedFacility is a healthcare facility built from live map data.
// It is produced per search and never persisted.
type NormalizedFacility struct {
	ID           int64           `json:"id"`
	ElementType  string          `json:"element_type"`
	Name         string          `json:"name"`
	Location     geo.Coordinates `json:"location"`
	FacilityType string          `json:"facility_type"`
	Address      string          `json:"address"`
	Phone        string          `json:"phone"`
	Website      string          `json:"website"`
	DistanceKm   float64         `json:"distance_km"`
	Specialties  []string        `json:"specialties"`
	PaymentInfo  PaymentInfo     `json:"payment_info"`
}

// ProviderSearchResult is the response of a live-map search
type ProviderSearchResult struct {
	OriginDisplayName string               `json:"location"`
	Origin            geo.Coordinates      `json:"search_coordinates"`
	RadiusKm          float64              `json:"radius_km"`
	Providers         []NormalizedFacility `json:"providers"`
	Count             int                  `json:"count"`
}

// RawElement is one map element as returned by the points-of-interest provider.
// Nodes carry Lat/Lon, ways carry NodeIDs, relations carry neither.
type RawElement struct {
	Type    osm.Type
	ID      int64
	Lat     *float64
	Lon     *float64
	NodeIDs []int64
	Tags    osm.Tags
}

// Coordinates returns the element's own position when it has one
func (e RawElement) Coordinates() (geo.Coordinates, bool) {
	if e.Lat == nil || e.Lon == nil {
		return geo.Coordinates{}, false
	}
	return geo.Coordinates{Latitude: *e.Lat, Longitude: *e.Lon}, true
}

// ElementBatch is the full element set of one provider response
type ElementBatch struct {
	Elements []RawElement
	nodes    map[int64]geo.Coordinates
}

// NewElementBatch indexes node positions so ways can be resolved within the batch
func NewElementBatch(elements []RawElement) *ElementBatch {
	b := &ElementBatch{Elements: elements, nodes: make(map[int64]geo.Coordinates)}
	for _, el := range elements {
		if el.Type != osm.TypeNode {
			continue
		}
		if c, ok := el.Coordinates(); ok {
			b.nodes[el.ID] = c
		}
	}
	return b
}

// NodeCoordinates looks up a node position in the batch
func (b *ElementBatch) NodeCoordinates(id int64) (geo.Coordinates, bool) {
	if b == nil {
		return geo.Coordinates{}, false
	}
	c, ok := b.nodes[id]
	return c, ok
}
