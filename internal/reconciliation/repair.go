package reconciliation

import (
	"errors"
	"fmt"

	"fieldstock/pkg/auditlog"
	"fieldstock/pkg/models"

	"go.uber.org/zap"
)

type RepairedLocation struct {
	LocationID int                 `json:"location_id"`
	OldCode    string              `json:"old_code"`
	NewCode    string              `json:"new_code"`
	NewType    models.LocationType `json:"new_type"`
}

type RepairReport struct {
	DryRun   bool               `json:"dry_run"`
	Repaired []RepairedLocation `json:"repaired"`
}

type RepairService struct {
	repo  *ReconciliationRepository
	audit *auditlog.Auditlog
	log   *zap.Logger
}

func NewRepairService(repo *ReconciliationRepository, audit *auditlog.Auditlog, log *zap.Logger) *RepairService {
	return &RepairService{repo: repo, audit: audit, log: log}
}

// RepairInactiveLocations reactivates every inactive location the ledger or a
// dependent record still points at, patching missing topology metadata as it
// goes. Dry-run reports the intended changes without writing.
func (s *RepairService) RepairInactiveLocations(dryRun bool) (*RepairReport, error) {
	orphans, err := s.repo.FindInactiveReferencedLocations()
	if err != nil {
		return nil, err
	}

	report := RepairReport{DryRun: dryRun, Repaired: []RepairedLocation{}}

	for _, loc := range orphans {
		planned := RepairedLocation{
			LocationID: loc.ID,
			OldCode:    loc.Code,
			NewCode:    loc.Code,
			NewType:    loc.Type,
		}
		if planned.NewCode == "" {
			planned.NewCode = syntheticCode(loc.ID)
		}
		if planned.NewType == "" {
			planned.NewType = models.LocationVirtual
		}

		if !dryRun {
			err := s.repo.ReactivateLocation(loc.ID, planned.NewCode, planned.NewType)
			if errors.Is(err, errDuplicateOnReactivate) {
				// The retired code was reused by an active location; fall
				// back to a synthetic one.
				planned.NewCode = syntheticCode(loc.ID)
				err = s.repo.ReactivateLocation(loc.ID, planned.NewCode, planned.NewType)
			}
			if err != nil {
				return nil, err
			}

			repairedLoc := loc
			go s.audit.Log("auto_repair", map[string]interface{}{
				"old_code": planned.OldCode,
				"new_code": planned.NewCode,
				"new_type": planned.NewType,
				"msg":      "inactive referenced location reactivated",
			}, &repairedLoc)

			s.log.Info("reactivated referenced location",
				zap.Int("location_id", loc.ID),
				zap.String("code", planned.NewCode),
			)
		}

		report.Repaired = append(report.Repaired, planned)
	}

	return &report, nil
}

func syntheticCode(locationID int) string {
	return fmt.Sprintf("RECOVERED-%d", locationID)
}
