package entities

// InsuranceCategory selects the discount applied by the cost estimator
type InsuranceCategory string

const (
	InsuranceNone     InsuranceCategory = "none"
	InsurancePrivate  InsuranceCategory = "private"
	InsuranceMedicare InsuranceCategory = "medicare"
	InsuranceMedicaid InsuranceCategory = "medicaid"
)

// CostEstimate is a procedure cost after the insurance multiplier.
// The figures are a display simulation, not a benefits calculation.
type CostEstimate struct {
	ProcedureName string            `json:"procedure_name"`
	Insurance     InsuranceCategory `json:"insurance_type"`
	AverageCost   float64           `json:"average_cost"`
	MinCost       float64           `json:"min_cost"`
	MaxCost       float64           `json:"max_cost"`
	Simulated     bool              `json:"simulated"`
}

// CostComparisonEntry is one facility row of a cost comparison
type CostComparisonEntry struct {
	FacilityID     string         `json:"facility_id"`
	FacilityName   string         `json:"facility_name"`
	FacilityType   FacilityType   `json:"facility_type"`
	AverageCost    float64        `json:"average_cost"`
	MinCost        float64        `json:"min_cost"`
	MaxCost        float64        `json:"max_cost"`
	DistanceKm     float64        `json:"distance_km"`
	PaymentOptions PaymentOptions `json:"payment_options"`
}

// CostComparison is the response of a cost comparison
type CostComparison struct {
	ProcedureName string                `json:"procedure_name"`
	Location      string                `json:"location"`
	Insurance     InsuranceCategory     `json:"insurance_type"`
	RadiusKm      float64               `json:"radius_km"`
	Disclaimer    string                `json:"disclaimer"`
	Providers     []CostComparisonEntry `json:"providers"`
}

// NearbySearchResult is the response of a persisted-path radius search
type NearbySearchResult struct {
	Location          string           `json:"location"`
	SearchCoordinates Location         `json:"search_coordinates"`
	RadiusKm          float64          `json:"radius_km"`
	TotalProviders    int              `json:"total_providers"`
	Providers         []NearbyFacility `json:"providers"`
}
