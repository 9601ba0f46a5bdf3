package reconciliation

import (
	"fmt"
	"time"

	"fieldstock/internal/items"
	"fieldstock/internal/ledger"
	"fieldstock/internal/locations"
	"fieldstock/pkg/models"
)

// How far back the movement/location cross-check reaches.
const integrityLookback = 90 * 24 * time.Hour

type Finding struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

type IntegrityReport struct {
	Pass     bool                      `json:"pass"`
	Topology *locations.TopologyReport `json:"topology"`
	Findings []Finding                 `json:"findings"`
}

type IntegrityService struct {
	locations *locations.LocationService
	items     *items.ItemRepository
	movements *ledger.MovementRepository
	repo      *ReconciliationRepository
}

func NewIntegrityService(locationService *locations.LocationService, itemRepo *items.ItemRepository, movementRepo *ledger.MovementRepository, repo *ReconciliationRepository) *IntegrityService {
	return &IntegrityService{
		locations: locationService,
		items:     itemRepo,
		movements: movementRepo,
		repo:      repo,
	}
}

// CheckIntegrity is strictly read-only: topology validation, ledger/location
// cross-checks, SKU resolvability, and a live-vs-derived balance comparison.
func (s *IntegrityService) CheckIntegrity() (*IntegrityReport, error) {
	report := IntegrityReport{Findings: []Finding{}}

	topology, err := s.locations.ValidateTopology()
	if err != nil {
		return nil, err
	}
	report.Topology = topology

	inactive, err := s.repo.FindInactiveReferencedLocations()
	if err != nil {
		return nil, err
	}
	for _, loc := range inactive {
		report.Findings = append(report.Findings, Finding{
			Kind:   "inactive_referenced_location",
			Detail: fmt.Sprintf("location %d (%s) is inactive but still referenced", loc.ID, loc.Code),
		})
	}

	crossChecks, err := s.repo.FindMovementsWithInactiveLocations(time.Now().Add(-integrityLookback))
	if err != nil {
		return nil, err
	}
	for _, finding := range crossChecks {
		report.Findings = append(report.Findings, Finding{
			Kind:   "movement_inactive_location",
			Detail: fmt.Sprintf("movement %d touches inactive location %d (%s) via %s", finding.MovementID, finding.LocationID, finding.Code, finding.Side),
		})
	}

	unresolvable, err := s.items.FindUntrackableSKUs()
	if err != nil {
		return nil, err
	}
	for _, item := range unresolvable {
		sku := "<none>"
		if item.SKU != nil {
			sku = *item.SKU
		}
		report.Findings = append(report.Findings, Finding{
			Kind:   "unresolvable_sku",
			Detail: fmt.Sprintf("item %d (%s) has no unique SKU mapping (sku=%s)", item.ID, item.Name, sku),
		})
	}

	drift, err := s.findBalanceDrift()
	if err != nil {
		return nil, err
	}
	report.Findings = append(report.Findings, drift...)

	report.Pass = topology.OK && len(report.Findings) == 0
	return &report, nil
}

// findBalanceDrift compares live balances against the ledger-derived values.
// Any mismatch means something wrote balances outside the single writer.
func (s *IntegrityService) findBalanceDrift() ([]Finding, error) {
	movements, err := s.movements.GetMovements(nil, nil, 0)
	if err != nil {
		return nil, err
	}
	// GetMovements returns newest first; aggregation is order-insensitive.
	derived := ledger.AggregateLedger(movements)

	live, err := s.movements.GetAllBalances()
	if err != nil {
		return nil, err
	}

	var findings []Finding
	seen := make(map[models.BalanceKey]bool, len(live))
	for _, balance := range live {
		key := balance.Key()
		seen[key] = true
		if !derived[key].Equal(balance.Quantity) {
			findings = append(findings, Finding{
				Kind:   "balance_drift",
				Detail: fmt.Sprintf("balance of item %d at location %d is %s, ledger says %s", key.ItemID, key.LocationID, balance.Quantity, derived[key]),
			})
		}
	}
	for key, quantity := range derived {
		if !seen[key] && !quantity.IsZero() {
			findings = append(findings, Finding{
				Kind:   "balance_drift",
				Detail: fmt.Sprintf("ledger derives %s for item %d at location %d but no balance row exists", quantity, key.ItemID, key.LocationID),
			})
		}
	}

	return findings, nil
}
