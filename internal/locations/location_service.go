package locations

import (
	"fmt"

	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"
)

// LocationStore is the persistence surface of the registry. The topology
// queries are package-private, so only the in-package repository satisfies it
// in production.
type LocationStore interface {
	GetLocation(locationID int) (*models.Location, error)
	GetActiveLocationByCode(code string) (*models.Location, error)
	PersistLocation(location *models.Location) error
	DeactivateLocation(locationID int) error
	countActiveByCode(code string) (int, error)
	findDuplicateActiveCodes() ([]codeCount, error)
	findConflictingVehicleRefs() ([]vehicleRefCount, error)
	findUnresolvedVehicleLocations() ([]models.Location, error)
	findOrphanedUserVehicles() ([]orphanedVehicleRef, error)
}

type LocationService struct {
	repo LocationStore
}

func NewLocationService(repo LocationStore) *LocationService {
	return &LocationService{repo: repo}
}

type CreateLocationRequest struct {
	Name       string              `json:"name" binding:"required"`
	Type       models.LocationType `json:"type" binding:"required"`
	Code       string              `json:"code" binding:"required"`
	VehicleRef *int                `json:"vehicle_ref"`
}

// CreateLocation registers a new active location. The active-code uniqueness
// is backed by a partial unique index, the singleton sink rule is checked
// here before the insert.
func (s *LocationService) CreateLocation(req CreateLocationRequest) (*models.Location, error) {
	switch req.Type {
	case models.LocationWarehouse, models.LocationVehicle, models.LocationLoadingBay, models.LocationVirtual:
	default:
		return nil, fmt.Errorf("unknown location type %q", req.Type)
	}

	if req.Type == models.LocationVehicle && req.VehicleRef == nil {
		return nil, fmt.Errorf("vehicle locations require a vehicle_ref")
	}
	if req.Type != models.LocationVehicle && req.VehicleRef != nil {
		return nil, fmt.Errorf("vehicle_ref is only valid for vehicle locations")
	}

	location := models.Location{
		Name:       req.Name,
		Type:       req.Type,
		Code:       req.Code,
		VehicleRef: req.VehicleRef,
	}

	if location.IsSingletonSink() {
		existing, err := s.repo.GetActiveLocationByCode(location.Code)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, &custom_error.SingletonViolationError{Code: location.Code}
		}
	}

	if err := s.repo.PersistLocation(&location); err != nil {
		return nil, err
	}

	return &location, nil
}

func (s *LocationService) Deactivate(locationID int) error {
	if _, err := s.repo.GetLocation(locationID); err != nil {
		return err
	}
	return s.repo.DeactivateLocation(locationID)
}

type TopologyViolation struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

type TopologyReport struct {
	OK         bool                `json:"ok"`
	Violations []TopologyViolation `json:"violations"`
}

// ValidateTopology is a pure read over the registry. It never mutates state;
// the reconciliation tools use it to gate bulk operations.
func (s *LocationService) ValidateTopology() (*TopologyReport, error) {
	report := TopologyReport{Violations: []TopologyViolation{}}

	for _, code := range []string{models.LoadingBaySinkCode, models.ConsumedSinkCode} {
		count, err := s.repo.countActiveByCode(code)
		if err != nil {
			return nil, err
		}
		switch {
		case count == 0:
			report.Violations = append(report.Violations, TopologyViolation{
				Kind:   "missing_singleton",
				Detail: fmt.Sprintf("system location %q has no active instance", code),
			})
		case count > 1:
			report.Violations = append(report.Violations, TopologyViolation{
				Kind:   "duplicate_singleton",
				Detail: fmt.Sprintf("system location %q has %d active instances", code, count),
			})
		}
	}

	duplicates, err := s.repo.findDuplicateActiveCodes()
	if err != nil {
		return nil, err
	}
	for _, dup := range duplicates {
		report.Violations = append(report.Violations, TopologyViolation{
			Kind:   "duplicate_code",
			Detail: fmt.Sprintf("code %q is held by %d active locations", dup.Code, dup.Count),
		})
	}

	conflicts, err := s.repo.findConflictingVehicleRefs()
	if err != nil {
		return nil, err
	}
	for _, conflict := range conflicts {
		report.Violations = append(report.Violations, TopologyViolation{
			Kind:   "vehicle_conflict",
			Detail: fmt.Sprintf("vehicle %d has %d active locations", conflict.VehicleRef, conflict.Count),
		})
	}

	unresolved, err := s.repo.findUnresolvedVehicleLocations()
	if err != nil {
		return nil, err
	}
	for _, loc := range unresolved {
		report.Violations = append(report.Violations, TopologyViolation{
			Kind:   "vehicle_ref_unresolved",
			Detail: fmt.Sprintf("vehicle location %d (%s) has no vehicle_ref", loc.ID, loc.Code),
		})
	}

	orphans, err := s.repo.findOrphanedUserVehicles()
	if err != nil {
		return nil, err
	}
	for _, orphan := range orphans {
		report.Violations = append(report.Violations, TopologyViolation{
			Kind:   "vehicle_unassigned",
			Detail: fmt.Sprintf("user %d references vehicle %d with no active location", orphan.UserID, orphan.VehicleRef),
		})
	}

	report.OK = len(report.Violations) == 0
	return &report, nil
}
