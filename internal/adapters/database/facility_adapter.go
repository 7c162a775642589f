package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/zatekoja/carefinder/internal/domain/entities"
	"github.com/zatekoja/carefinder/internal/domain/repositories"
	"github.com/zatekoja/carefinder/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/carefinder/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carefinder/pkg/errors"
	"github.com/zatekoja/carefinder/pkg/geo"
)

const (
	facilitiesTable  = "facilities"
	defaultListLimit = 50
	maxListLimit     = 500
)

var facilityColumns = []interface{}{
	"id", "name", "facility_type",
	"street", "city", "state", "zip_code", "country",
	"latitude", "longitude",
	"phone_number", "email", "website",
	"hours", "services", "cost_level",
	"payment_options", "procedure_costs",
	"rating_overall", "rating_cost_value", "rating_quality_of_care", "review_count",
	"accessibility", "is_active", "created_at", "updated_at",
}

// FacilityAdapter implements the FacilityRepository interface
type FacilityAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

// NewFacilityAdapter creates a new facility adapter
func NewFacilityAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.FacilityRepository {
	return &FacilityAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

// Create creates a new facility
func (a *FacilityAdapter) Create(ctx context.Context, facility *entities.Facility) error {
	defer a.observe(ctx, "insert_facility", time.Now())

	record, err := facilityRecord(facility)
	if err != nil {
		return apperrors.NewInternalError("failed to encode facility", err)
	}
	record["id"] = facility.ID
	record["created_at"] = facility.CreatedAt

	query, args, err := a.db.Insert(facilitiesTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperrors.NewConflictError(fmt.Sprintf("facility with id %s already exists", facility.ID))
		}
		return apperrors.NewInternalError("failed to create facility", err)
	}

	return nil
}

// GetByID retrieves a facility by ID. Inactive facilities are returned as well.
func (a *FacilityAdapter) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	defer a.observe(ctx, "get_facility", time.Now())

	query, args, err := a.db.From(facilitiesTable).
		Select(facilityColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build select query", err)
	}

	facility, err := scanFacility(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get facility", err)
	}

	return facility, nil
}

// GetByIDs retrieves multiple facilities by their IDs
func (a *FacilityAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Facility, error) {
	if len(ids) == 0 {
		return []*entities.Facility{}, nil
	}
	defer a.observe(ctx, "get_facilities", time.Now())

	query, args, err := a.db.From(facilitiesTable).
		Select(facilityColumns...).
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build select query", err)
	}

	return a.queryFacilities(ctx, query, args)
}

// Update updates a facility
func (a *FacilityAdapter) Update(ctx context.Context, facility *entities.Facility) error {
	defer a.observe(ctx, "update_facility", time.Now())

	facility.UpdatedAt = time.Now().UTC()
	record, err := facilityRecord(facility)
	if err != nil {
		return apperrors.NewInternalError("failed to encode facility", err)
	}

	query, args, err := a.db.Update(facilitiesTable).
		Set(record).
		Where(goqu.Ex{"id": facility.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update facility", err)
	}

	return requireAffected(result, facility.ID)
}

// Delete marks a facility inactive
func (a *FacilityAdapter) Delete(ctx context.Context, id string) error {
	defer a.observe(ctx, "deactivate_facility", time.Now())

	query, args, err := a.db.Update(facilitiesTable).
		Set(goqu.Record{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete facility", err)
	}

	return requireAffected(result, id)
}

// List retrieves active facilities ordered by name
func (a *FacilityAdapter) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	defer a.observe(ctx, "list_facilities", time.Now())

	ds := a.db.From(facilitiesTable).
		Select(facilityColumns...).
		Where(goqu.Ex{"is_active": true})

	if filter.FacilityType != "" {
		ds = ds.Where(goqu.Ex{"facility_type": filter.FacilityType})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	ds = ds.Order(goqu.I("name").Asc(), goqu.I("id").Asc()).Limit(uint(limit))
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	return a.queryFacilities(ctx, query, args)
}

// FindNear prefilters with a bounding box in SQL, then applies the exact
// haversine radius, the payment filter and distance ordering.
func (a *FacilityAdapter) FindNear(ctx context.Context, center geo.Coordinates, radiusKm float64, filter repositories.NearFilter) ([]*entities.NearbyFacility, error) {
	defer a.observe(ctx, "find_near", time.Now())

	minLat, maxLat, minLon, maxLon := geo.BoundingBox(center, radiusKm)

	ds := a.db.From(facilitiesTable).
		Select(facilityColumns...).
		Where(
			goqu.Ex{"is_active": true},
			goqu.C("latitude").Between(goqu.Range(minLat, maxLat)),
			goqu.C("longitude").Between(goqu.Range(minLon, maxLon)),
		)

	if filter.FacilityType != "" {
		ds = ds.Where(goqu.Ex{"facility_type": filter.FacilityType})
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build nearby query", err)
	}

	candidates, err := a.queryFacilities(ctx, query, args)
	if err != nil {
		return nil, err
	}

	return entities.RankNearby(candidates, center, radiusKm, filter.PaymentOptions), nil
}

func (a *FacilityAdapter) queryFacilities(ctx context.Context, query string, args []interface{}) ([]*entities.Facility, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query facilities", err)
	}
	defer rows.Close()

	facilities := []*entities.Facility{}
	for rows.Next() {
		facility, err := scanFacility(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan facility", err)
		}
		facilities = append(facilities, facility)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate facilities", err)
	}

	return facilities, nil
}

func (a *FacilityAdapter) observe(ctx context.Context, operation string, start time.Time) {
	observability.RecordDBMetric(ctx, a.metrics, operation, time.Since(start))
}

// facilityRecord holds every mutable column. Ratings are owned by the review subsystem.
func facilityRecord(f *entities.Facility) (goqu.Record, error) {
	hours, err := json.Marshal(nonNilHours(f.Hours))
	if err != nil {
		return nil, err
	}
	payment, err := json.Marshal(f.PaymentOptions)
	if err != nil {
		return nil, err
	}
	procedures := f.ProcedureCosts
	if procedures == nil {
		procedures = []entities.ProcedureCost{}
	}
	costs, err := json.Marshal(procedures)
	if err != nil {
		return nil, err
	}
	accessibility, err := json.Marshal(f.Accessibility)
	if err != nil {
		return nil, err
	}
	services := f.Services
	if services == nil {
		services = []string{}
	}

	return goqu.Record{
		"name":            f.Name,
		"facility_type":   string(f.FacilityType),
		"street":          f.Address.Street,
		"city":            f.Address.City,
		"state":           f.Address.State,
		"zip_code":        f.Address.ZipCode,
		"country":         f.Address.Country,
		"latitude":        f.Location.Latitude,
		"longitude":       f.Location.Longitude,
		"phone_number":    f.PhoneNumber,
		"email":           f.Email,
		"website":         f.Website,
		"hours":           string(hours),
		"services":        pq.Array(services),
		"cost_level":      int(f.CostLevel),
		"payment_options": string(payment),
		"procedure_costs": string(costs),
		"accessibility":   string(accessibility),
		"is_active":       f.IsActive,
		"updated_at":      f.UpdatedAt,
	}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFacility(row rowScanner) (*entities.Facility, error) {
	var (
		f                                         entities.Facility
		facilityType                              string
		costLevel                                 int
		hours, payment, procedures, accessibility []byte
	)

	err := row.Scan(
		&f.ID, &f.Name, &facilityType,
		&f.Address.Street, &f.Address.City, &f.Address.State, &f.Address.ZipCode, &f.Address.Country,
		&f.Location.Latitude, &f.Location.Longitude,
		&f.PhoneNumber, &f.Email, &f.Website,
		&hours, pq.Array(&f.Services), &costLevel,
		&payment, &procedures,
		&f.Ratings.Overall, &f.Ratings.CostValue, &f.Ratings.QualityOfCare, &f.Ratings.ReviewCount,
		&accessibility, &f.IsActive, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.FacilityType = entities.FacilityType(facilityType)
	f.CostLevel = entities.CostLevel(costLevel)

	if err := unmarshalJSONB(hours, &f.Hours); err != nil {
		return nil, fmt.Errorf("hours: %w", err)
	}
	if err := unmarshalJSONB(payment, &f.PaymentOptions); err != nil {
		return nil, fmt.Errorf("payment_options: %w", err)
	}
	if err := unmarshalJSONB(procedures, &f.ProcedureCosts); err != nil {
		return nil, fmt.Errorf("procedure_costs: %w", err)
	}
	if err := unmarshalJSONB(accessibility, &f.Accessibility); err != nil {
		return nil, fmt.Errorf("accessibility: %w", err)
	}

	return &f, nil
}

func unmarshalJSONB(data []byte, dest interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

func nonNilHours(h map[string]string) map[string]string {
	if h == nil {
		return map[string]string{}
	}
	return h
}

func requireAffected(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to read affected rows", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	return nil
}
