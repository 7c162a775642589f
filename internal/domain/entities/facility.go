package entities

import (
	"strings"
	"time"
)

// FacilityType is the closed set of categories a curated facility can carry
type FacilityType string

const (
	FacilityTypeHospital              FacilityType = "hospital"
	FacilityTypeClinic                FacilityType = "clinic"
	FacilityTypeUrgentCare            FacilityType = "urgent_care"
	FacilityTypeCommunityHealthCenter FacilityType = "community_health_center"
	FacilityTypeDoctorsOffice         FacilityType = "doctors_office"
	FacilityTypeHealthCenter          FacilityType = "health_center"
)

// FacilityTypes lists every valid FacilityType
var FacilityTypes = []FacilityType{
	FacilityTypeHospital,
	FacilityTypeClinic,
	FacilityTypeUrgentCare,
	FacilityTypeCommunityHealthCenter,
	FacilityTypeDoctorsOffice,
	FacilityTypeHealthCenter,
}

// Valid reports whether t is one of FacilityTypes
func (t FacilityType) Valid() bool {
	for _, known := range FacilityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// CostLevel is an ordinal price band, 0 (very low) through 3 (standard)
type CostLevel int

const (
	CostLevelVeryLow CostLevel = iota
	CostLevelLow
	CostLevelModerate
	CostLevelStandard
)

// Facility represents a curated healthcare facility in the directory
type Facility struct {
	ID             string            `json:"id" db:"id"`
	Name           string            `json:"name" db:"name"`
	FacilityType   FacilityType      `json:"facility_type" db:"facility_type"`
	Address        Address           `json:"address" db:"-"`
	Location       Location          `json:"location" db:"-"`
	PhoneNumber    string            `json:"phone_number" db:"phone_number"`
	Email          string            `json:"email" db:"email"`
	Website        string            `json:"website" db:"website"`
	Hours          map[string]string `json:"hours,omitempty" db:"hours"`
	Services       []string          `json:"services" db:"services"`
	CostLevel      CostLevel         `json:"cost_level" db:"cost_level"`
	PaymentOptions PaymentOptions    `json:"payment_options" db:"payment_options"`
	ProcedureCosts []ProcedureCost   `json:"procedure_costs" db:"procedure_costs"`
	Ratings        Ratings           `json:"ratings" db:"-"`
	Accessibility  Accessibility     `json:"accessibility" db:"accessibility"`
	IsActive       bool              `json:"is_active" db:"is_active"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// Address represents a physical address
type Address struct {
	Street  string `json:"street" db:"street"`
	City    string `json:"city" db:"city"`
	State   string `json:"state" db:"state"`
	ZipCode string `json:"zip_code" db:"zip_code"`
	Country string `json:"country" db:"country"`
}

// String joins the non-empty address parts for geocoding
func (a Address) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Street, a.City, a.State, a.ZipCode, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Location represents geographical coordinates
type Location struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// PaymentOptions is the fixed set of payment flags a curated facility advertises
type PaymentOptions struct {
	AcceptsPrivateInsurance bool `json:"accepts_private_insurance"`
	AcceptsMedicare         bool `json:"accepts_medicare"`
	AcceptsMedicaid         bool `json:"accepts_medicaid"`
	SlidingScale            bool `json:"sliding_scale"`
	FreeCare                bool `json:"free_care"`
	PaymentPlans            bool `json:"payment_plans"`
	CashDiscount            bool `json:"cash_discount"`
}

// PaymentOptionNames are the request tokens accepted by the persisted-path payment filter
var PaymentOptionNames = []string{
	"acceptsPrivateInsurance",
	"acceptsMedicare",
	"acceptsMedicaid",
	"slidingScale",
	"freeCare",
	"paymentPlans",
	"cashDiscount",
}

// Has reports whether the named flag is set. Unknown names report false.
func (p PaymentOptions) Has(name string) bool {
	switch name {
	case "acceptsPrivateInsurance":
		return p.AcceptsPrivateInsurance
	case "acceptsMedicare":
		return p.AcceptsMedicare
	case "acceptsMedicaid":
		return p.AcceptsMedicaid
	case "slidingScale":
		return p.SlidingScale
	case "freeCare":
		return p.FreeCare
	case "paymentPlans":
		return p.PaymentPlans
	case "cashDiscount":
		return p.CashDiscount
	}
	return false
}

// MatchesAny reports whether at least one of the named flags is set.
// An empty selection matches every facility.
func (p PaymentOptions) MatchesAny(names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, name := range names {
		if p.Has(name) {
			return true
		}
	}
	return false
}

// ProcedureCost is the stored price band for one procedure at a facility
type ProcedureCost struct {
	ProcedureName string  `json:"procedure_name"`
	AverageCost   float64 `json:"average_cost"`
	MinCost       float64 `json:"min_cost"`
	MaxCost       float64 `json:"max_cost"`
	Description   string  `json:"description,omitempty"`
}

// FindProcedure returns the procedure cost whose name matches case-insensitively
func (f *Facility) FindProcedure(name string) (ProcedureCost, bool) {
	target := strings.TrimSpace(name)
	for _, pc := range f.ProcedureCosts {
		if strings.EqualFold(strings.TrimSpace(pc.ProcedureName), target) {
			return pc, true
		}
	}
	return ProcedureCost{}, false
}

// Ratings is maintained by the review subsystem and is read-only here
type Ratings struct {
	Overall       float64 `json:"overall" db:"rating_overall"`
	CostValue     float64 `json:"cost_value" db:"rating_cost_value"`
	QualityOfCare float64 `json:"quality_of_care" db:"rating_quality_of_care"`
	ReviewCount   int     `json:"review_count" db:"review_count"`
}

// Accessibility flags
type Accessibility struct {
	WheelchairAccessible bool     `json:"wheelchair_accessible"`
	ParkingAvailable     bool     `json:"parking_available"`
	PublicTransit        bool     `json:"public_transit"`
	LanguagesSpoken      []string `json:"languages_spoken,omitempty"`
}

// NearbyFacility is the public view of a facility returned by radius searches
type NearbyFacility struct {
	*Facility
	DistanceKm float64 `json:"distance_km"`
}
