package consumption

import (
	"fmt"

	"fieldstock/internal/repository"
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
)

type ConsumptionRepository struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) *ConsumptionRepository {
	return &ConsumptionRepository{repository: r}
}

func (r *ConsumptionRepository) GetConsumption(consumptionID int) (*models.Consumption, error) {
	var consumption models.Consumption
	query := r.repository.GoquDBWrapper.
		Select("id", "allocation_id", "item_id", "qty_consumed", "consumed_at", "consumed_from_location_id", "movement_id").
		From("consumptions").
		Where(goqu.Ex{"id": consumptionID})

	found, err := query.Executor().ScanStruct(&consumption)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch consumption %d: %w", consumptionID, err)
	}
	if !found {
		return nil, &custom_error.NotFoundError{Resource: "consumption", ID: consumptionID}
	}

	return &consumption, nil
}

func (r *ConsumptionRepository) GetAllocation(allocationID int) (*models.Allocation, error) {
	var allocation models.Allocation
	query := r.repository.GoquDBWrapper.
		Select("id", "item_id", "qty_allocated", "from_location_id", "status").
		From("allocations").
		Where(goqu.Ex{"id": allocationID})

	found, err := query.Executor().ScanStruct(&allocation)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch allocation %d: %w", allocationID, err)
	}
	if !found {
		return nil, &custom_error.NotFoundError{Resource: "allocation", ID: allocationID}
	}

	return &allocation, nil
}

// SumPriorConsumptions totals every consumption of the allocation created
// strictly before the given one, in (consumed_at, id) order.
func (r *ConsumptionRepository) SumPriorConsumptions(tx *goqu.TxDatabase, allocationID int, before *models.Consumption) (decimal.Decimal, error) {
	query := tx.
		Select(goqu.COALESCE(goqu.SUM("qty_consumed"), 0)).
		From("consumptions").
		Where(goqu.Ex{"allocation_id": allocationID}).
		Where(goqu.Or(
			goqu.C("consumed_at").Lt(before.ConsumedAt),
			goqu.And(
				goqu.C("consumed_at").Eq(before.ConsumedAt),
				goqu.C("id").Lt(before.ID),
			),
		))

	var sum decimal.Decimal
	if _, err := query.Executor().ScanVal(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("unable to sum prior consumptions of allocation %d: %w", allocationID, err)
	}

	return sum, nil
}

// MarkAllocationConsumed flips an active allocation to consumed. The guarded
// update makes the flip happen exactly once.
func (r *ConsumptionRepository) MarkAllocationConsumed(tx *goqu.TxDatabase, allocationID int) (bool, error) {
	result, err := tx.Update("allocations").
		Set(goqu.Record{"status": models.AllocationConsumed}).
		Where(goqu.Ex{"id": allocationID, "status": models.AllocationActive}).
		Executor().
		Exec()
	if err != nil {
		return false, fmt.Errorf("failed to mark allocation %d consumed: %w", allocationID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected for allocation %d: %w", allocationID, err)
	}

	return rowsAffected > 0, nil
}

func (r *ConsumptionRepository) LinkMovement(tx *goqu.TxDatabase, consumptionID, movementID int) error {
	_, err := tx.Update("consumptions").
		Set(goqu.Record{"movement_id": movementID}).
		Where(goqu.Ex{"id": consumptionID}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to link movement %d to consumption %d: %w", movementID, consumptionID, err)
	}

	return nil
}
