package ledger

import (
	"errors"
	"fmt"
	"time"

	"fieldstock/internal/repository"
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const movementColumns = "id, item_id, quantity, from_location_id, to_location_id, source, reference_type, reference_id, idempotency_key, performed_by, performed_at, notes"

// IdempotencyKeyConstraint is the partial unique index backing at-most-once
// application; the storage layer, not application logic, is the arbiter.
const IdempotencyKeyConstraint = "movements_idempotency_key_idx"

type MovementRepository struct {
	repository *repository.Repository
}

func NewMovementRepository(r *repository.Repository) *MovementRepository {
	return &MovementRepository{repository: r}
}

func (r *MovementRepository) InsertMovement(tx *goqu.TxDatabase, entry *models.Movement) error {
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = time.Now().UTC()
	}

	query := tx.Insert("movements").
		Rows(goqu.Record{
			"item_id":          entry.ItemID,
			"quantity":         entry.Quantity,
			"from_location_id": entry.FromLocationID,
			"to_location_id":   entry.ToLocationID,
			"source":           entry.Source,
			"reference_type":   entry.ReferenceType,
			"reference_id":     entry.ReferenceID,
			"idempotency_key":  entry.IdempotencyKey,
			"performed_by":     entry.PerformedBy,
			"performed_at":     entry.PerformedAt,
			"notes":            entry.Notes,
		}).
		Returning("id")

	if _, err := query.Executor().ScanVal(&entry.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return custom_error.WrapDBError("movement references a missing item or location", string(pqErr.Code))
		}
		return fmt.Errorf("failed to insert movement record: %w", err)
	}

	return nil
}

func (r *MovementRepository) GetByIdempotencyKey(tx *goqu.TxDatabase, key string) (*models.Movement, error) {
	var movement models.Movement
	query := tx.
		Select(goqu.L(movementColumns)).
		From("movements").
		Where(goqu.Ex{"idempotency_key": key})

	found, err := query.Executor().ScanStruct(&movement)
	if err != nil {
		return nil, fmt.Errorf("unable to look up movement by idempotency key: %w", err)
	}
	if !found {
		return nil, nil
	}

	return &movement, nil
}

func (r *MovementRepository) FindByIdempotencyKey(key string) (*models.Movement, error) {
	var movement models.Movement
	query := r.repository.GoquDBWrapper.
		Select(goqu.L(movementColumns)).
		From("movements").
		Where(goqu.Ex{"idempotency_key": key})

	found, err := query.Executor().ScanStruct(&movement)
	if err != nil {
		return nil, fmt.Errorf("unable to look up movement by idempotency key: %w", err)
	}
	if !found {
		return nil, nil
	}

	return &movement, nil
}

// AdjustBalance applies a signed delta to one (item, location) balance inside
// the transaction, creating the row when absent, and returns the resulting
// quantity. The upsert is a single atomic statement so two concurrent
// movements cannot lose an update.
func (r *MovementRepository) AdjustBalance(tx *goqu.TxDatabase, itemID, locationID int, delta decimal.Decimal) (decimal.Decimal, error) {
	query := tx.Insert("balances").
		Rows(goqu.Record{
			"item_id":     itemID,
			"location_id": locationID,
			"quantity":    delta,
		}).
		OnConflict(
			goqu.DoUpdate(
				"item_id, location_id",
				goqu.Record{
					"quantity": goqu.L("balances.quantity + EXCLUDED.quantity"),
				},
			),
		).
		Returning("quantity")

	var resulting decimal.Decimal
	if _, err := query.Executor().ScanVal(&resulting); err != nil {
		return decimal.Zero, fmt.Errorf("failed to adjust balance for item %d at location %d: %w", itemID, locationID, err)
	}

	return resulting, nil
}

func (r *MovementRepository) GetBalanceTx(tx *goqu.TxDatabase, itemID, locationID int) (decimal.Decimal, error) {
	var quantity decimal.Decimal
	query := tx.
		Select("quantity").
		From("balances").
		Where(goqu.Ex{"item_id": itemID, "location_id": locationID})

	found, err := query.Executor().ScanVal(&quantity)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to fetch balance for item %d at location %d: %w", itemID, locationID, err)
	}
	if !found {
		return decimal.Zero, nil
	}

	return quantity, nil
}

func (r *MovementRepository) GetBalance(itemID, locationID int) (decimal.Decimal, error) {
	var quantity decimal.Decimal
	query := r.repository.GoquDBWrapper.
		Select("quantity").
		From("balances").
		Where(goqu.Ex{"item_id": itemID, "location_id": locationID})

	found, err := query.Executor().ScanVal(&quantity)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to fetch balance for item %d at location %d: %w", itemID, locationID, err)
	}
	if !found {
		return decimal.Zero, nil
	}

	return quantity, nil
}

func (r *MovementRepository) GetMovements(itemID, locationID *int, limit uint) ([]models.Movement, error) {
	query := r.repository.GoquDBWrapper.
		Select(goqu.L(movementColumns)).
		From("movements").
		Order(goqu.C("performed_at").Desc(), goqu.C("id").Desc())

	if itemID != nil {
		query = query.Where(goqu.Ex{"item_id": *itemID})
	}
	if locationID != nil {
		query = query.Where(goqu.Or(
			goqu.Ex{"from_location_id": *locationID},
			goqu.Ex{"to_location_id": *locationID},
		))
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var movements []models.Movement
	if err := query.Executor().ScanStructs(&movements); err != nil {
		return nil, fmt.Errorf("unable to list movements: %w", err)
	}

	return movements, nil
}

// GetLedgerOrdered returns the full ledger in replay order. Used only by
// reconciliation and rebuild, never in the request hot path.
func (r *MovementRepository) GetLedgerOrdered(tx *goqu.TxDatabase) ([]models.Movement, error) {
	query := tx.
		Select(goqu.L(movementColumns)).
		From("movements").
		Order(goqu.C("performed_at").Asc(), goqu.C("id").Asc())

	var movements []models.Movement
	if err := query.Executor().ScanStructs(&movements); err != nil {
		return nil, fmt.Errorf("unable to read ledger: %w", err)
	}

	return movements, nil
}

func (r *MovementRepository) ReplaceBalances(tx *goqu.TxDatabase, balances map[models.BalanceKey]decimal.Decimal) error {
	if _, err := tx.Delete("balances").Executor().Exec(); err != nil {
		return fmt.Errorf("failed to clear balances: %w", err)
	}

	if len(balances) == 0 {
		return nil
	}

	rows := make([]interface{}, 0, len(balances))
	for key, quantity := range balances {
		rows = append(rows, goqu.Record{
			"item_id":     key.ItemID,
			"location_id": key.LocationID,
			"quantity":    quantity,
		})
	}

	if _, err := tx.Insert("balances").Rows(rows...).Executor().Exec(); err != nil {
		return fmt.Errorf("failed to rewrite balances: %w", err)
	}

	return nil
}

func (r *MovementRepository) GetAllBalances() ([]models.Balance, error) {
	var balances []models.Balance
	query := r.repository.GoquDBWrapper.
		Select("item_id", "location_id", "quantity").
		From("balances")

	if err := query.Executor().ScanStructs(&balances); err != nil {
		return nil, fmt.Errorf("unable to list balances: %w", err)
	}

	return balances, nil
}
