package reconciliation

import (
	"errors"
	"fmt"
	"time"

	"fieldstock/internal/items"
	"fieldstock/internal/ledger"
	"fieldstock/internal/locations"
	"fieldstock/internal/routing"
	"fieldstock/pkg/auditlog"
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Pause between baseline writes so a big stock-take does not saturate the
// storage layer's sustained write rate.
const defaultWriteInterval = 50 * time.Millisecond

type BaselineCount struct {
	ItemID     int             `json:"item_id" binding:"required"`
	LocationID int             `json:"location_id" binding:"required"`
	Counted    decimal.Decimal `json:"counted"`
}

type BaselineError struct {
	ItemID     int    `json:"item_id"`
	LocationID int    `json:"location_id"`
	Reason     string `json:"reason"`
}

type BaselineSummary struct {
	RunID     int             `json:"run_id"`
	Corrected int             `json:"corrected"`
	Skipped   int             `json:"skipped"`
	Errors    []BaselineError `json:"errors"`
}

// baselineMarkerStore persists the single-use run marker.
type baselineMarkerStore interface {
	GetLatestBaselineRun() (*BaselineRun, error)
	InsertBaselineRun(runBy int, overrideReason *string) (int, error)
}

type balanceReader interface {
	GetBalance(itemID, locationID int) (decimal.Decimal, error)
}

type itemReader interface {
	GetItem(itemID int) (*models.Item, error)
}

type topologyValidator interface {
	ValidateTopology() (*locations.TopologyReport, error)
}

type BaselineService struct {
	repo      baselineMarkerStore
	ledger    *ledger.LedgerService
	movements balanceReader
	items     itemReader
	locations topologyValidator
	audit     *auditlog.Auditlog
	log       *zap.Logger

	writeInterval time.Duration
}

func NewBaselineService(repo *ReconciliationRepository, ledgerService *ledger.LedgerService, movementRepo *ledger.MovementRepository, itemRepo *items.ItemRepository, locationService *locations.LocationService, audit *auditlog.Auditlog, log *zap.Logger) *BaselineService {
	return &BaselineService{
		repo:          repo,
		ledger:        ledgerService,
		movements:     movementRepo,
		items:         itemRepo,
		locations:     locationService,
		audit:         audit,
		log:           log,
		writeInterval: defaultWriteInterval,
	}
}

// SeedBaseline corrects balances toward counted quantities, one ledger entry
// per nonzero delta. A single-use marker refuses a second run unless the
// caller supplies an override reason; the topology must be clean before any
// bulk correction. Pairs fail individually and the batch resumes with the
// next one.
func (s *BaselineService) SeedBaseline(actor routing.Actor, counts []BaselineCount, overrideReason string) (*BaselineSummary, error) {
	prior, err := s.repo.GetLatestBaselineRun()
	if err != nil {
		return nil, err
	}
	if prior != nil && overrideReason == "" {
		return nil, &custom_error.BaselineAlreadyRunError{RunAt: prior.RunAt.Format(time.RFC3339)}
	}

	topology, err := s.locations.ValidateTopology()
	if err != nil {
		return nil, err
	}
	if !topology.OK {
		return nil, fmt.Errorf("refusing baseline correction: topology has %d violations, run the integrity check", len(topology.Violations))
	}

	var override *string
	if overrideReason != "" {
		override = &overrideReason
	}
	runID, err := s.repo.InsertBaselineRun(actor.UserID, override)
	if err != nil {
		return nil, err
	}

	summary := BaselineSummary{RunID: runID, Errors: []BaselineError{}}

	for i, count := range counts {
		if i > 0 {
			time.Sleep(s.writeInterval)
		}

		if err := s.correctPair(actor, runID, count); err != nil {
			var skip *zeroDeltaSkip
			if errors.As(err, &skip) {
				summary.Skipped++
				continue
			}
			summary.Errors = append(summary.Errors, BaselineError{
				ItemID:     count.ItemID,
				LocationID: count.LocationID,
				Reason:     err.Error(),
			})
			continue
		}
		summary.Corrected++
	}

	s.log.Info("baseline correction finished",
		zap.Int("run_id", runID),
		zap.Int("corrected", summary.Corrected),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", len(summary.Errors)),
	)

	return &summary, nil
}

type zeroDeltaSkip struct{}

func (*zeroDeltaSkip) Error() string { return "counted quantity matches the current balance" }

func (s *BaselineService) correctPair(actor routing.Actor, runID int, count BaselineCount) error {
	item, err := s.items.GetItem(count.ItemID)
	if err != nil {
		return err
	}
	if item == nil || !item.IsInventoryTracked {
		noopItem := models.Item{ID: count.ItemID}
		s.audit.LogNoop("item is not inventory tracked", map[string]interface{}{
			"location_id": count.LocationID,
			"counted":     count.Counted,
			"run_id":      runID,
		}, &noopItem)
		return fmt.Errorf("item is not inventory tracked")
	}

	current, err := s.movements.GetBalance(count.ItemID, count.LocationID)
	if err != nil {
		return err
	}

	delta := count.Counted.Sub(current)
	if delta.IsZero() {
		return &zeroDeltaSkip{}
	}

	key := fmt.Sprintf("baseline:%d:%d:%d", runID, count.ItemID, count.LocationID)
	note := fmt.Sprintf("baseline correction from %s to %s", current, count.Counted)

	entry := models.Movement{
		ItemID:         count.ItemID,
		Quantity:       delta.Abs(),
		Source:         models.SourceBaselineSeed,
		IdempotencyKey: &key,
		PerformedBy:    &actor.UserID,
		Notes:          &note,
	}
	if delta.IsPositive() {
		entry.ToLocationID = &count.LocationID
	} else {
		entry.FromLocationID = &count.LocationID
	}

	// ApplyMovement retries transient conflicts with backoff; the upsert
	// drives the balance to exactly the counted quantity.
	if _, err := s.ledger.ApplyMovement(entry); err != nil {
		return err
	}

	return nil
}
