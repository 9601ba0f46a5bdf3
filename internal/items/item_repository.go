package items

import (
	"fmt"

	"fieldstock/internal/repository"
	"fieldstock/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

type ItemRepository struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) *ItemRepository {
	return &ItemRepository{repository: r}
}

func (r *ItemRepository) GetItem(itemID int) (*models.Item, error) {
	var item models.Item

	query := r.repository.GoquDBWrapper.
		Select("id", "name", "sku", "is_inventory_tracked").
		From("items").
		Where(goqu.Ex{"id": itemID})

	found, err := query.Executor().ScanStruct(&item)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch item %d: %w", itemID, err)
	}
	if !found {
		return nil, nil
	}

	return &item, nil
}

func (r *ItemRepository) GetItemBySKU(sku string) (*models.Item, error) {
	var item models.Item

	query := r.repository.GoquDBWrapper.
		Select("id", "name", "sku", "is_inventory_tracked").
		From("items").
		Where(goqu.Ex{"sku": sku})

	found, err := query.Executor().ScanStruct(&item)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch item by sku %q: %w", sku, err)
	}
	if !found {
		return nil, nil
	}

	return &item, nil
}

// IsTracked resolves the classification rule for the movement ledger: only
// items that exist and are inventory tracked may produce movements.
func (r *ItemRepository) IsTracked(itemID int) (bool, error) {
	item, err := r.GetItem(itemID)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	return item.IsInventoryTracked, nil
}

// FindUntrackableSKUs lists tracked items whose SKU is missing or shared with
// another item, used by the integrity check.
func (r *ItemRepository) FindUntrackableSKUs() ([]models.Item, error) {
	var missing []models.Item
	query := r.repository.GoquDBWrapper.
		Select("id", "name", "sku", "is_inventory_tracked").
		From("items").
		Where(goqu.Ex{"is_inventory_tracked": true}).
		Where(goqu.C("sku").IsNull())

	if err := query.Executor().ScanStructs(&missing); err != nil {
		return nil, fmt.Errorf("unable to scan items with missing sku: %w", err)
	}

	var duplicated []models.Item
	dupQuery := r.repository.GoquDBWrapper.
		Select(
			goqu.I("i.id"),
			goqu.I("i.name"),
			goqu.I("i.sku"),
			goqu.I("i.is_inventory_tracked"),
		).
		From(goqu.T("items").As("i")).
		Join(
			r.repository.GoquDBWrapper.
				Select("sku").
				From("items").
				Where(goqu.C("sku").IsNotNull()).
				GroupBy("sku").
				Having(goqu.COUNT("*").Gt(1)).
				As("d"),
			goqu.On(goqu.Ex{"i.sku": goqu.I("d.sku")}),
		)

	if err := dupQuery.Executor().ScanStructs(&duplicated); err != nil {
		return nil, fmt.Errorf("unable to scan items with duplicated sku: %w", err)
	}

	return append(missing, duplicated...), nil
}
