package receiving

import (
	"fmt"

	"fieldstock/internal/repository"
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
)

type OrderRepository struct {
	repository *repository.Repository
}

func NewOrderRepository(r *repository.Repository) *OrderRepository {
	return &OrderRepository{repository: r}
}

func (r *OrderRepository) GetOrder(orderID int) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	query := r.repository.GoquDBWrapper.
		Select("id", "status", "job_ref").
		From("purchase_orders").
		Where(goqu.Ex{"id": orderID})

	found, err := query.Executor().ScanStruct(&order)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch purchase order %d: %w", orderID, err)
	}
	if !found {
		return nil, &custom_error.NotFoundError{Resource: "purchase order", ID: orderID}
	}

	return &order, nil
}

func (r *OrderRepository) GetOrderLines(orderID int) ([]models.PurchaseOrderLine, error) {
	var lines []models.PurchaseOrderLine
	query := r.repository.GoquDBWrapper.
		Select("id", "purchase_order_id", "item_id", "project_part_id", "description", "qty_ordered", "qty_received").
		From("purchase_order_lines").
		Where(goqu.Ex{"purchase_order_id": orderID}).
		Order(goqu.C("id").Asc())

	if err := query.Executor().ScanStructs(&lines); err != nil {
		return nil, fmt.Errorf("unable to fetch lines for purchase order %d: %w", orderID, err)
	}

	return lines, nil
}

// IncrementReceived bumps qty_received by qty, guarded so the update can only
// move the line monotonically toward qty_ordered. Zero rows affected means
// the increment would overshoot the ordered quantity.
func (r *OrderRepository) IncrementReceived(tx *goqu.TxDatabase, lineID int, qty decimal.Decimal) error {
	result, err := tx.Update("purchase_order_lines").
		Set(goqu.Record{
			"qty_received": goqu.L("qty_received + ?", qty),
		}).
		Where(goqu.Ex{"id": lineID}).
		Where(goqu.L("qty_received + ? <= qty_ordered", qty)).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update received quantity for line %d: %w", lineID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for line %d: %w", lineID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("receiving %s would exceed the ordered quantity on line %d", qty, lineID)
	}

	return nil
}

func (r *OrderRepository) UpdateOrderStatus(orderID int, status string) error {
	_, err := r.repository.GoquDBWrapper.
		Update("purchase_orders").
		Set(goqu.Record{"status": status}).
		Where(goqu.Ex{"id": orderID}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update status of purchase order %d: %w", orderID, err)
	}

	return nil
}

// UpdateProjectPart advances the linked-custom record instead of a balance:
// status plus drop-off location metadata only.
func (r *OrderRepository) UpdateProjectPart(tx *goqu.TxDatabase, partID int, status string, locationID int) error {
	result, err := tx.Update("project_parts").
		Set(goqu.Record{
			"status":      status,
			"location_id": locationID,
		}).
		Where(goqu.Ex{"id": partID}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update project part %d: %w", partID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for project part %d: %w", partID, err)
	}
	if rowsAffected == 0 {
		return &custom_error.NotFoundError{Resource: "project part", ID: partID}
	}

	return nil
}

func (r *OrderRepository) UpdateJobStatus(jobRef int, status string) error {
	_, err := r.repository.GoquDBWrapper.
		Update("jobs").
		Set(goqu.Record{"status": status}).
		Where(goqu.Ex{"id": jobRef}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update status of job %d: %w", jobRef, err)
	}

	return nil
}
