package locations

import (
	"fmt"

	"fieldstock/internal/repository"
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type LocationRepository struct {
	Repository *repository.Repository
}

func NewLocationRepository(r *repository.Repository) *LocationRepository {
	return &LocationRepository{Repository: r}
}

func (r *LocationRepository) GetLocations() ([]models.Location, error) {
	var locations = []models.Location{}
	query := r.Repository.GoquDBWrapper.
		Select("id", "name", "type", "code", "is_active", "vehicle_ref").
		From("locations").
		Order(goqu.C("id").Asc())
	if err := query.Executor().ScanStructs(&locations); err != nil {
		return nil, fmt.Errorf("unable to execute SQL: %w", err)
	}

	return locations, nil
}

func (r *LocationRepository) GetLocation(locationID int) (*models.Location, error) {
	var location models.Location
	query := r.Repository.GoquDBWrapper.
		Select("id", "name", "type", "code", "is_active", "vehicle_ref").
		From("locations").
		Where(goqu.Ex{"id": locationID})

	found, err := query.Executor().ScanStruct(&location)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch location %d: %w", locationID, err)
	}
	if !found {
		return nil, &custom_error.NotFoundError{Resource: "location", ID: locationID}
	}

	return &location, nil
}

func (r *LocationRepository) GetActiveLocationByCode(code string) (*models.Location, error) {
	var location models.Location
	query := r.Repository.GoquDBWrapper.
		Select("id", "name", "type", "code", "is_active", "vehicle_ref").
		From("locations").
		Where(goqu.Ex{"code": code, "is_active": true})

	found, err := query.Executor().ScanStruct(&location)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch location by code %q: %w", code, err)
	}
	if !found {
		return nil, nil
	}

	return &location, nil
}

func (r *LocationRepository) PersistLocation(location *models.Location) error {
	query := r.Repository.GoquDBWrapper.Insert("locations").
		Rows(goqu.Record{
			"name":        location.Name,
			"type":        location.Type,
			"code":        location.Code,
			"is_active":   true,
			"vehicle_ref": location.VehicleRef,
		}).
		Returning("id")

	if _, err := query.Executor().ScanVal(&location.ID); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return &custom_error.DuplicateCodeError{Code: location.Code}
		}
		return fmt.Errorf("failed to insert location record: %w", err)
	}
	location.IsActive = true

	return nil
}

func (r *LocationRepository) DeactivateLocation(locationID int) error {
	result, err := r.Repository.GoquDBWrapper.
		Update("locations").
		Set(goqu.Record{"is_active": false}).
		Where(goqu.Ex{"id": locationID}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to deactivate location: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not retrieve rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &custom_error.NotFoundError{Resource: "location", ID: locationID}
	}

	return nil
}

type LocationStockRow struct {
	ItemID   int             `db:"item_id"`
	ItemName string          `db:"item_name"`
	SKU      *string         `db:"sku"`
	Quantity decimal.Decimal `db:"quantity"`
}

// GetLocationStock reads the materialized balances at a location. Read-only,
// the ledger package owns all writes to balances.
func (r *LocationRepository) GetLocationStock(locationID int) ([]LocationStockRow, error) {
	var stock []LocationStockRow
	query := r.Repository.GoquDBWrapper.
		From(goqu.T("balances").As("b")).
		Select(
			goqu.I("b.item_id").As("item_id"),
			goqu.I("i.name").As("item_name"),
			goqu.I("i.sku").As("sku"),
			goqu.I("b.quantity").As("quantity"),
		).
		LeftJoin(
			goqu.T("items").As("i"),
			goqu.On(goqu.Ex{"b.item_id": goqu.I("i.id")}),
		).
		Where(goqu.Ex{"b.location_id": locationID}).
		Order(goqu.I("i.name").Asc())

	if err := query.Executor().ScanStructs(&stock); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for location stock: %w", err)
	}

	return stock, nil
}

type codeCount struct {
	Code  string `db:"code"`
	Count int    `db:"cnt"`
}

func (r *LocationRepository) countActiveByCode(code string) (int, error) {
	var count int
	query := r.Repository.GoquDBWrapper.
		Select(goqu.COUNT("*")).
		From("locations").
		Where(goqu.Ex{"code": code, "is_active": true})

	if _, err := query.Executor().ScanVal(&count); err != nil {
		return 0, fmt.Errorf("unable to count active locations with code %q: %w", code, err)
	}

	return count, nil
}

func (r *LocationRepository) findDuplicateActiveCodes() ([]codeCount, error) {
	var duplicates []codeCount
	query := r.Repository.GoquDBWrapper.
		Select(goqu.C("code"), goqu.COUNT("*").As("cnt")).
		From("locations").
		Where(goqu.Ex{"is_active": true}).
		GroupBy("code").
		Having(goqu.COUNT("*").Gt(1))

	if err := query.Executor().ScanStructs(&duplicates); err != nil {
		return nil, fmt.Errorf("unable to scan duplicate active codes: %w", err)
	}

	return duplicates, nil
}

type vehicleRefCount struct {
	VehicleRef int `db:"vehicle_ref"`
	Count      int `db:"cnt"`
}

func (r *LocationRepository) findConflictingVehicleRefs() ([]vehicleRefCount, error) {
	var conflicts []vehicleRefCount
	query := r.Repository.GoquDBWrapper.
		Select(goqu.C("vehicle_ref"), goqu.COUNT("*").As("cnt")).
		From("locations").
		Where(goqu.Ex{"is_active": true, "type": models.LocationVehicle}).
		Where(goqu.C("vehicle_ref").IsNotNull()).
		GroupBy("vehicle_ref").
		Having(goqu.COUNT("*").Gt(1))

	if err := query.Executor().ScanStructs(&conflicts); err != nil {
		return nil, fmt.Errorf("unable to scan conflicting vehicle refs: %w", err)
	}

	return conflicts, nil
}

func (r *LocationRepository) findUnresolvedVehicleLocations() ([]models.Location, error) {
	var locations []models.Location
	query := r.Repository.GoquDBWrapper.
		Select("id", "name", "type", "code", "is_active", "vehicle_ref").
		From("locations").
		Where(goqu.Ex{"is_active": true, "type": models.LocationVehicle}).
		Where(goqu.C("vehicle_ref").IsNull())

	if err := query.Executor().ScanStructs(&locations); err != nil {
		return nil, fmt.Errorf("unable to scan unresolved vehicle locations: %w", err)
	}

	return locations, nil
}

type orphanedVehicleRef struct {
	UserID     int `db:"user_id"`
	VehicleRef int `db:"vehicle_ref"`
	Count      int `db:"cnt"`
}

// findOrphanedUserVehicles returns users whose vehicle resolves to zero
// active vehicle locations.
func (r *LocationRepository) findOrphanedUserVehicles() ([]orphanedVehicleRef, error) {
	var orphans []orphanedVehicleRef
	query := r.Repository.GoquDBWrapper.
		From(goqu.T("users").As("u")).
		Select(
			goqu.I("u.id").As("user_id"),
			goqu.I("u.vehicle_ref").As("vehicle_ref"),
			goqu.COUNT(goqu.I("l.id")).As("cnt"),
		).
		LeftJoin(
			goqu.T("locations").As("l"),
			goqu.On(
				goqu.Ex{"l.vehicle_ref": goqu.I("u.vehicle_ref")},
				goqu.Ex{"l.type": models.LocationVehicle},
				goqu.Ex{"l.is_active": true},
			),
		).
		Where(goqu.I("u.vehicle_ref").IsNotNull()).
		GroupBy(goqu.I("u.id"), goqu.I("u.vehicle_ref")).
		Having(goqu.COUNT(goqu.I("l.id")).Eq(0))

	if err := query.Executor().ScanStructs(&orphans); err != nil {
		return nil, fmt.Errorf("unable to scan orphaned user vehicles: %w", err)
	}

	return orphans, nil
}
