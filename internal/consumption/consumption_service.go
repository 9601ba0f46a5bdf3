package consumption

import (
	"fmt"

	"fieldstock/internal/items"
	"fieldstock/internal/ledger"
	"fieldstock/internal/locations"
	"fieldstock/internal/repository"
	"fieldstock/internal/routing"
	"fieldstock/pkg/auditlog"
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
)

const (
	referenceConsumption = "consumption"
	maxConsumeAttempts   = 3
)

// ConsumptionStore is the persistence surface of the consumption tracker.
type ConsumptionStore interface {
	GetConsumption(consumptionID int) (*models.Consumption, error)
	GetAllocation(allocationID int) (*models.Allocation, error)
	SumPriorConsumptions(tx *goqu.TxDatabase, allocationID int, before *models.Consumption) (decimal.Decimal, error)
	MarkAllocationConsumed(tx *goqu.TxDatabase, allocationID int) (bool, error)
	LinkMovement(tx *goqu.TxDatabase, consumptionID, movementID int) error
}

type itemLookup interface {
	GetItem(itemID int) (*models.Item, error)
}

type locationLookup interface {
	GetLocation(locationID int) (*models.Location, error)
	GetActiveLocationByCode(code string) (*models.Location, error)
}

type ConsumptionService struct {
	repo      ConsumptionStore
	items     itemLookup
	locations locationLookup
	ledger    *ledger.LedgerService
	policy    *SourcePolicy
	audit     *auditlog.Auditlog

	runTx func(fn func(tx *goqu.TxDatabase) error) error
}

func NewConsumptionService(r *repository.Repository, repo *ConsumptionRepository, itemRepo *items.ItemRepository, locationRepo *locations.LocationRepository, ledgerService *ledger.LedgerService, audit *auditlog.Auditlog) *ConsumptionService {
	policy := NewSourcePolicy(
		locationRepo.GetLocation,
		func() (*models.Location, error) {
			return locationRepo.GetActiveLocationByCode(models.MainWarehouseCode)
		},
	)

	s := &ConsumptionService{
		repo:      repo,
		items:     itemRepo,
		locations: locationRepo,
		ledger:    ledgerService,
		policy:    policy,
		audit:     audit,
	}
	s.runTx = func(fn func(tx *goqu.TxDatabase) error) error {
		return repository.WithRetry(r.GoquDBWrapper, maxConsumeAttempts, fn)
	}
	return s
}

type ConsumeResult struct {
	Applied          bool   `json:"applied"`
	Noop             bool   `json:"noop,omitempty"`
	Reason           string `json:"reason,omitempty"`
	MovementID       int    `json:"movement_id,omitempty"`
	AllocationStatus string `json:"allocation_status,omitempty"`
}

// Consume draws the consumption's quantity into the terminal consumed sink.
// The idempotency key is derived from (consumption, allocation), so repeated
// invocations are safe; the allocation cap check runs inside the same
// transaction as the ledger write.
func (s *ConsumptionService) Consume(actor routing.Actor, consumptionID int) (*ConsumeResult, error) {
	consumption, err := s.repo.GetConsumption(consumptionID)
	if err != nil {
		return nil, err
	}

	var allocation *models.Allocation
	if consumption.AllocationID != nil {
		allocation, err = s.repo.GetAllocation(*consumption.AllocationID)
		if err != nil {
			return nil, err
		}
	}

	sink, err := s.locations.GetActiveLocationByCode(models.ConsumedSinkCode)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, fmt.Errorf("terminal consumed sink %q is missing; run the integrity check", models.ConsumedSinkCode)
	}

	source, err := s.resolveSource(consumption, allocation, actor)
	if err != nil {
		return nil, err
	}

	allocationID := 0
	itemID := 0
	if allocation != nil {
		allocationID = allocation.ID
		itemID = allocation.ItemID
	} else if consumption.ItemID != nil {
		itemID = *consumption.ItemID
	}
	if itemID == 0 {
		return nil, fmt.Errorf("consumption %d does not resolve to an item", consumptionID)
	}

	item, err := s.items.GetItem(itemID)
	if err != nil {
		return nil, err
	}
	if item == nil || !item.IsInventoryTracked {
		s.audit.LogNoop("item is not inventory tracked", map[string]interface{}{
			"item_id":          itemID,
			"allocation_id":    consumption.AllocationID,
			"from_location_id": source.ID,
			"quantity":         consumption.QtyConsumed,
		}, consumption)
		return &ConsumeResult{Applied: false, Noop: true, Reason: "item is not inventory tracked"}, nil
	}

	idempotencyKey := fmt.Sprintf("consume:%d:%d", consumptionID, allocationID)
	referenceType := referenceConsumption

	result := ConsumeResult{}
	err = s.runTx(func(tx *goqu.TxDatabase) error {
		var priorSum decimal.Decimal
		if allocation != nil {
			var err error
			priorSum, err = s.repo.SumPriorConsumptions(tx, allocation.ID, consumption)
			if err != nil {
				return err
			}
			if priorSum.Add(consumption.QtyConsumed).GreaterThan(allocation.QtyAllocated) {
				return &custom_error.InsufficientAllocationError{
					AllocationID: allocation.ID,
					Requested:    consumption.QtyConsumed.String(),
					Remaining:    allocation.QtyAllocated.Sub(priorSum).String(),
				}
			}
		}

		entry := models.Movement{
			ItemID:         itemID,
			Quantity:       consumption.QtyConsumed,
			FromLocationID: &source.ID,
			ToLocationID:   &sink.ID,
			Source:         models.SourceConsume,
			ReferenceType:  &referenceType,
			ReferenceID:    &consumption.ID,
			IdempotencyKey: &idempotencyKey,
			PerformedBy:    &actor.UserID,
		}

		applied, err := s.ledger.ApplyMovementTx(tx, entry)
		if err != nil {
			return err
		}
		result.Applied = applied.Applied
		result.MovementID = applied.Movement.ID

		if !applied.Applied {
			// Replay: the prior run already linked the movement and settled
			// the allocation status.
			if allocation != nil {
				result.AllocationStatus = allocation.Status
			}
			return nil
		}

		if err := s.repo.LinkMovement(tx, consumption.ID, applied.Movement.ID); err != nil {
			return err
		}

		if allocation != nil {
			result.AllocationStatus = allocation.Status
			if priorSum.Add(consumption.QtyConsumed).Equal(allocation.QtyAllocated) {
				if _, err := s.repo.MarkAllocationConsumed(tx, allocation.ID); err != nil {
					return err
				}
				result.AllocationStatus = models.AllocationConsumed
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	go s.audit.Log("consume", map[string]interface{}{
		"consumption_id":   consumption.ID,
		"allocation_id":    consumption.AllocationID,
		"from_location_id": source.ID,
		"quantity":         consumption.QtyConsumed,
		"performed_by":     actor.UserID,
	}, consumption)

	return &result, nil
}

func (s *ConsumptionService) resolveSource(consumption *models.Consumption, allocation *models.Allocation, actor routing.Actor) (*models.Location, error) {
	// Ad-hoc consumption uses the caller-supplied location, no fallback.
	if allocation == nil {
		if consumption.ConsumedFromLocationID == nil {
			return nil, fmt.Errorf("ad-hoc consumption %d carries no source location", consumption.ID)
		}
		return s.locations.GetLocation(*consumption.ConsumedFromLocationID)
	}

	return s.policy.ResolveSource(allocation, actor)
}
