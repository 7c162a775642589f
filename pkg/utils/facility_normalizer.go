package utils

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/paulmach/osm"

	"github.com/zatekoja/carefinder/internal/domain/entities"
	"github.com/zatekoja/carefinder/pkg/geo"
)

// Facility type labels produced from map tags
const (
	TypeHospital              = "Hospital"
	TypeClinic                = "Clinic"
	TypeDoctorsOffice         = "Doctor's Office"
	TypeHealthCenter          = "Health Center"
	TypeCommunityHealthCenter = "Community Health Center"
	TypeHealthcareFacility    = "Healthcare Facility"
)

const specialityPrefix = "healthcare:speciality:"

type typeRule struct {
	matches func(osm.Tags) bool
	label   func(osm.Tags) string
}

func tagEquals(key, value string) func(osm.Tags) bool {
	return func(tags osm.Tags) bool { return tags.Find(key) == value }
}

func fixedLabel(label string) func(osm.Tags) string {
	return func(osm.Tags) string { return label }
}

// facilityTypeRules are evaluated top to bottom; the first match wins
var facilityTypeRules = []typeRule{
	{tagEquals("amenity", "hospital"), fixedLabel(TypeHospital)},
	{tagEquals("amenity", "clinic"), fixedLabel(TypeClinic)},
	{tagEquals("amenity", "doctors"), fixedLabel(TypeDoctorsOffice)},
	{tagEquals("healthcare", "centre"), fixedLabel(TypeHealthCenter)},
	{tagEquals("healthcare", "clinic"), fixedLabel(TypeClinic)},
	{
		func(tags osm.Tags) bool { return tags.Find("healthcare") != "" },
		func(tags osm.Tags) string { return "Healthcare (" + tags.Find("healthcare") + ")" },
	},
	{tagEquals("social_facility", "healthcare"), fixedLabel(TypeCommunityHealthCenter)},
	{func(osm.Tags) bool { return true }, fixedLabel(TypeHealthcareFacility)},
}

// healthcareSpecialties maps a healthcare tag value to the specialty it implies
var healthcareSpecialties = []struct {
	healthcare string
	specialty  string
}{
	{"dentist", "Dentistry"},
	{"pharmacy", "Pharmacy"},
	{"optometrist", "Optometry"},
	{"rehabilitation", "Rehabilitation"},
	{"alternative", "Alternative Medicine"},
	{"laboratory", "Laboratory Services"},
	{"psychology", "Psychology"},
}

type specialtyFallbackRule struct {
	matches   func(facilityType string, tags osm.Tags) bool
	specialty func(tags osm.Tags) string
}

// specialtyFallbackRules supply the single default specialty when no tag yields one
var specialtyFallbackRules = []specialtyFallbackRule{
	{
		func(ft string, _ osm.Tags) bool { return ft == TypeHospital },
		fixedLabel("General Hospital Services"),
	},
	{
		func(ft string, _ osm.Tags) bool { return ft == TypeClinic },
		fixedLabel("General Clinic Services"),
	},
	{
		func(_ string, tags osm.Tags) bool { return tags.Find("healthcare") != "" },
		func(tags osm.Tags) string { return capitalize(tags.Find("healthcare")) + " Services" },
	},
	{
		func(string, osm.Tags) bool { return true },
		fixedLabel("General Healthcare"),
	},
}

// triStateSource reads one tag. Inverted sources report Yes for an explicit "no".
type triStateSource struct {
	key      string
	inverted bool
}

var (
	insuranceSources = []triStateSource{
		{key: "payment:insurance"},
		{key: "insurance"},
		{key: "insurance:health"},
	}
	slidingScaleSources = []triStateSource{
		{key: "payment:sliding_scale"},
		{key: "fee:sliding_scale"},
	}
	freeCareSources = []triStateSource{
		{key: "charge:free"},
		{key: "fee", inverted: true},
	}
)

// paymentMethodExclusions are payment:* keys reported through PaymentInfo flags instead
var paymentMethodExclusions = map[string]bool{
	"payment:sliding_scale": true,
	"payment:insurance":     true,
}

// FacilityNormalizer turns raw map elements into NormalizedFacility records
type FacilityNormalizer struct{}

// NewFacilityNormalizer creates a normalizer
func NewFacilityNormalizer() *FacilityNormalizer {
	return &FacilityNormalizer{}
}

// Normalize converts one element. It reports false when the element has no
// tags or its position cannot be resolved from the batch.
func (n *FacilityNormalizer) Normalize(el entities.RawElement, batch *entities.ElementBatch, origin geo.Coordinates) (entities.NormalizedFacility, bool) {
	if len(el.Tags) == 0 {
		return entities.NormalizedFacility{}, false
	}

	location, ok := ResolveCoordinates(el, batch)
	if !ok {
		return entities.NormalizedFacility{}, false
	}

	facilityType := FacilityType(el.Tags)

	return entities.NormalizedFacility{
		ID:           el.ID,
		ElementType:  string(el.Type),
		Name:         FacilityName(el.Tags, facilityType),
		Location:     location,
		FacilityType: facilityType,
		Address:      FormatAddress(el.Tags),
		Phone:        contact(el.Tags, "phone", "contact:phone"),
		Website:      contact(el.Tags, "website", "contact:website"),
		DistanceKm:   geo.DistanceKm(origin, location),
		Specialties:  Specialties(el.Tags, facilityType),
		PaymentInfo:  Payment(el.Tags),
	}, true
}

// ResolveCoordinates uses a node's own position, or a way's first node looked up in batch
func ResolveCoordinates(el entities.RawElement, batch *entities.ElementBatch) (geo.Coordinates, bool) {
	switch el.Type {
	case osm.TypeNode:
		return el.Coordinates()
	case osm.TypeWay:
		if len(el.NodeIDs) == 0 {
			return geo.Coordinates{}, false
		}
		return batch.NodeCoordinates(el.NodeIDs[0])
	}
	return geo.Coordinates{}, false
}

// FacilityType applies facilityTypeRules
func FacilityType(tags osm.Tags) string {
	for _, rule := range facilityTypeRules {
		if rule.matches(tags) {
			return rule.label(tags)
		}
	}
	return TypeHealthcareFacility
}

// FacilityName prefers the name tag, then "<operator> <type>", then "Unnamed <type>"
func FacilityName(tags osm.Tags, facilityType string) string {
	if name := strings.TrimSpace(tags.Find("name")); name != "" {
		return name
	}
	if operator := strings.TrimSpace(tags.Find("operator")); operator != "" {
		return operator + " " + facilityType
	}
	return "Unnamed " + facilityType
}

// Specialties collects speciality tags and fixed healthcare additions.
// The result is never empty.
func Specialties(tags osm.Tags, facilityType string) []string {
	var specialties []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			specialties = append(specialties, s)
		}
	}

	for _, tag := range tags {
		if strings.HasPrefix(tag.Key, specialityPrefix) && isYes(tag.Value) {
			add(strings.TrimPrefix(tag.Key, specialityPrefix))
		}
	}

	healthcare := tags.Find("healthcare")
	for _, hs := range healthcareSpecialties {
		if healthcare == hs.healthcare {
			add(hs.specialty)
		}
	}

	if len(specialties) > 0 {
		return specialties
	}

	for _, rule := range specialtyFallbackRules {
		if rule.matches(facilityType, tags) {
			return []string{rule.specialty(tags)}
		}
	}
	return []string{"General Healthcare"}
}

// Payment derives the tri-state payment flags and accepted payment methods
func Payment(tags osm.Tags) entities.PaymentInfo {
	methods := []string{}
	for _, tag := range tags {
		if !strings.HasPrefix(tag.Key, "payment:") || paymentMethodExclusions[tag.Key] || !isYes(tag.Value) {
			continue
		}
		methods = append(methods, strings.TrimPrefix(tag.Key, "payment:"))
	}
	sort.Strings(methods)

	return entities.PaymentInfo{
		AcceptsInsurance: triState(tags, insuranceSources),
		SlidingScale:     triState(tags, slidingScaleSources),
		FreeCare:         triState(tags, freeCareSources),
		PaymentMethods:   methods,
	}
}

// FormatAddress assembles "<housenumber> <street>, <city> <postcode> <state>"
// from whatever parts are present
func FormatAddress(tags osm.Tags) string {
	var components []string

	street := strings.TrimSpace(tags.Find("addr:street"))
	if street != "" {
		if number := strings.TrimSpace(tags.Find("addr:housenumber")); number != "" {
			street = number + " " + street
		}
		components = append(components, street)
	}

	var locality []string
	for _, key := range []string{"addr:city", "addr:postcode", "addr:state"} {
		if v := strings.TrimSpace(tags.Find(key)); v != "" {
			locality = append(locality, v)
		}
	}
	if len(locality) > 0 {
		components = append(components, strings.Join(locality, " "))
	}

	if len(components) == 0 {
		return entities.AddressNotAvailable
	}
	return strings.Join(components, ", ")
}

func triState(tags osm.Tags, sources []triStateSource) entities.TriState {
	for _, src := range sources {
		v := strings.ToLower(strings.TrimSpace(tags.Find(src.key)))
		switch {
		case v == "yes" && !src.inverted, v == "no" && src.inverted:
			return entities.TriStateYes
		case v == "no" && !src.inverted, v == "yes" && src.inverted:
			return entities.TriStateNo
		}
	}
	return entities.TriStateUnknown
}

func contact(tags osm.Tags, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(tags.Find(key)); v != "" {
			return v
		}
	}
	return entities.NotAvailable
}

func isYes(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "yes")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
