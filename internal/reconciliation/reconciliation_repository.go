package reconciliation

import (
	"fmt"
	"time"

	"fieldstock/internal/repository"
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
)

type ReconciliationRepository struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) *ReconciliationRepository {
	return &ReconciliationRepository{repository: r}
}

// FindInactiveReferencedLocations lists inactive locations still referenced
// by ledger entries, allocations, consumptions, or a user's vehicle.
func (r *ReconciliationRepository) FindInactiveReferencedLocations() ([]models.Location, error) {
	referenced := r.repository.GoquDBWrapper.
		Select(goqu.C("from_location_id").As("location_id")).
		From("movements").
		Where(goqu.C("from_location_id").IsNotNull()).
		Union(r.repository.GoquDBWrapper.
			Select(goqu.C("to_location_id").As("location_id")).
			From("movements").
			Where(goqu.C("to_location_id").IsNotNull())).
		Union(r.repository.GoquDBWrapper.
			Select(goqu.C("from_location_id").As("location_id")).
			From("allocations").
			Where(goqu.C("from_location_id").IsNotNull())).
		Union(r.repository.GoquDBWrapper.
			Select(goqu.C("consumed_from_location_id").As("location_id")).
			From("consumptions").
			Where(goqu.C("consumed_from_location_id").IsNotNull()))

	query := r.repository.GoquDBWrapper.
		Select(
			goqu.I("l.id"),
			goqu.I("l.name"),
			goqu.I("l.type"),
			goqu.I("l.code"),
			goqu.I("l.is_active"),
			goqu.I("l.vehicle_ref"),
		).
		From(goqu.T("locations").As("l")).
		Join(
			referenced.As("ref"),
			goqu.On(goqu.Ex{"l.id": goqu.I("ref.location_id")}),
		).
		Where(goqu.Ex{"l.is_active": false}).
		Order(goqu.I("l.id").Asc())

	var locations []models.Location
	if err := query.Executor().ScanStructs(&locations); err != nil {
		return nil, fmt.Errorf("unable to scan inactive referenced locations: %w", err)
	}

	return locations, nil
}

type MovementLocationFinding struct {
	MovementID int    `db:"movement_id"`
	LocationID int    `db:"location_id"`
	Code       string `db:"code"`
	Side       string `db:"side"`
}

// FindMovementsWithInactiveLocations cross-checks recent ledger entries
// against the active-location set.
func (r *ReconciliationRepository) FindMovementsWithInactiveLocations(since time.Time) ([]MovementLocationFinding, error) {
	var findings []MovementLocationFinding

	for _, side := range []string{"from_location_id", "to_location_id"} {
		query := r.repository.GoquDBWrapper.
			Select(
				goqu.I("m.id").As("movement_id"),
				goqu.I("l.id").As("location_id"),
				goqu.I("l.code").As("code"),
				goqu.V(side).As("side"),
			).
			From(goqu.T("movements").As("m")).
			Join(
				goqu.T("locations").As("l"),
				goqu.On(goqu.Ex{"l.id": goqu.I("m." + side)}),
			).
			Where(goqu.Ex{"l.is_active": false}).
			Where(goqu.I("m.performed_at").Gte(since))

		var sideFindings []MovementLocationFinding
		if err := query.Executor().ScanStructs(&sideFindings); err != nil {
			return nil, fmt.Errorf("unable to cross-check movements against locations: %w", err)
		}
		findings = append(findings, sideFindings...)
	}

	return findings, nil
}

// ReactivateLocation flips the location back on and patches its topology
// metadata in one statement.
func (r *ReconciliationRepository) ReactivateLocation(locationID int, code string, locationType models.LocationType) error {
	_, err := r.repository.GoquDBWrapper.
		Update("locations").
		Set(goqu.Record{
			"is_active": true,
			"code":      code,
			"type":      locationType,
		}).
		Where(goqu.Ex{"id": locationID}).
		Executor().
		Exec()
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errDuplicateOnReactivate
		}
		return fmt.Errorf("failed to reactivate location %d: %w", locationID, err)
	}

	return nil
}

var errDuplicateOnReactivate = fmt.Errorf("code already held by an active location")

type BaselineRun struct {
	ID             int       `json:"id" db:"id"`
	RunAt          time.Time `json:"run_at" db:"run_at"`
	RunBy          int       `json:"run_by" db:"run_by"`
	OverrideReason *string   `json:"override_reason" db:"override_reason"`
}

func (r *ReconciliationRepository) GetLatestBaselineRun() (*BaselineRun, error) {
	var run BaselineRun
	query := r.repository.GoquDBWrapper.
		Select("id", "run_at", "run_by", "override_reason").
		From("baseline_runs").
		Order(goqu.C("run_at").Desc()).
		Limit(1)

	found, err := query.Executor().ScanStruct(&run)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch baseline run marker: %w", err)
	}
	if !found {
		return nil, nil
	}

	return &run, nil
}

// BaselineMarkerConstraint is the partial unique index allowing at most one
// baseline run without an override reason.
const BaselineMarkerConstraint = "baseline_runs_single_run_idx"

func (r *ReconciliationRepository) InsertBaselineRun(runBy int, overrideReason *string) (int, error) {
	query := r.repository.GoquDBWrapper.
		Insert("baseline_runs").
		Rows(goqu.Record{
			"run_at":          time.Now().UTC(),
			"run_by":          runBy,
			"override_reason": overrideReason,
		}).
		Returning("id")

	var runID int
	if _, err := query.Executor().ScanVal(&runID); err != nil {
		if repository.IsUniqueViolation(err, BaselineMarkerConstraint) {
			runAt := time.Now().UTC().Format(time.RFC3339)
			if prior, lookupErr := r.GetLatestBaselineRun(); lookupErr == nil && prior != nil {
				runAt = prior.RunAt.Format(time.RFC3339)
			}
			return 0, &custom_error.BaselineAlreadyRunError{RunAt: runAt}
		}
		return 0, fmt.Errorf("failed to insert baseline run marker: %w", err)
	}

	return runID, nil
}
