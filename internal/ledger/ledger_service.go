package ledger

import (
	"fmt"

	"fieldstock/internal/repository"
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxApplyAttempts = 3

// MovementStore is the persistence surface of the ledger. Balances are only
// ever written through it, and only by LedgerService.
type MovementStore interface {
	InsertMovement(tx *goqu.TxDatabase, entry *models.Movement) error
	GetByIdempotencyKey(tx *goqu.TxDatabase, key string) (*models.Movement, error)
	FindByIdempotencyKey(key string) (*models.Movement, error)
	AdjustBalance(tx *goqu.TxDatabase, itemID, locationID int, delta decimal.Decimal) (decimal.Decimal, error)
	GetBalanceTx(tx *goqu.TxDatabase, itemID, locationID int) (decimal.Decimal, error)
	GetBalance(itemID, locationID int) (decimal.Decimal, error)
	GetLedgerOrdered(tx *goqu.TxDatabase) ([]models.Movement, error)
	ReplaceBalances(tx *goqu.TxDatabase, balances map[models.BalanceKey]decimal.Decimal) error
}

type MovementResult struct {
	Applied     bool             `json:"applied"`
	Movement    models.Movement  `json:"movement"`
	FromBalance *decimal.Decimal `json:"from_balance,omitempty"`
	ToBalance   *decimal.Decimal `json:"to_balance,omitempty"`
}

type LedgerService struct {
	r     *repository.Repository
	store MovementStore
	log   *zap.Logger

	runTx func(fn func(tx *goqu.TxDatabase) error) error
}

func NewLedgerService(r *repository.Repository, store MovementStore, log *zap.Logger) *LedgerService {
	s := &LedgerService{r: r, store: store, log: log}
	s.runTx = func(fn func(tx *goqu.TxDatabase) error) error {
		return repository.WithRetry(r.GoquDBWrapper, maxApplyAttempts, fn)
	}
	return s
}

func validateEntry(entry *models.Movement) error {
	if entry.ItemID == 0 {
		return fmt.Errorf("movement requires an item")
	}
	if !entry.Quantity.IsPositive() {
		return &custom_error.InvalidQuantityError{Quantity: entry.Quantity.String()}
	}
	if entry.FromLocationID == nil && entry.ToLocationID == nil {
		return fmt.Errorf("movement requires at least one endpoint")
	}
	return nil
}

// ApplyMovement appends one ledger entry and upserts the touched balances in
// a single transaction. Entries carrying an already-seen idempotency key are
// not re-applied; the prior entry and the current balances come back with
// Applied=false. The ledger does not reject negative resulting balances,
// callers that need that guarantee use ApplyMovementNonNegative.
func (s *LedgerService) ApplyMovement(entry models.Movement) (*MovementResult, error) {
	return s.applyMovement(entry, false)
}

// ApplyMovementNonNegative behaves like ApplyMovement but rolls the whole
// transaction back when the source balance would end up negative, so a racing
// withdrawal cannot oversell a location.
func (s *LedgerService) ApplyMovementNonNegative(entry models.Movement) (*MovementResult, error) {
	return s.applyMovement(entry, true)
}

func (s *LedgerService) applyMovement(entry models.Movement, guardNegative bool) (*MovementResult, error) {
	if err := validateEntry(&entry); err != nil {
		return nil, err
	}

	var result *MovementResult
	err := s.runTx(func(tx *goqu.TxDatabase) error {
		var txErr error
		result, txErr = s.ApplyMovementTx(tx, entry)
		if txErr != nil {
			return txErr
		}
		if guardNegative && result.Applied && result.FromBalance != nil && result.FromBalance.IsNegative() {
			return &custom_error.InsufficientStockError{
				ItemID:     entry.ItemID,
				LocationID: *entry.FromLocationID,
			}
		}
		return nil
	})

	if err != nil {
		// Two concurrent retries of the same logical operation: the unique
		// index let exactly one through, this one reads the prior result.
		if entry.IdempotencyKey != nil && repository.IsUniqueViolation(err, IdempotencyKeyConstraint) {
			return s.replayResult(entry)
		}
		return nil, err
	}

	return result, nil
}

// ApplyMovementTx is the transaction-scoped apply used by callers that
// compose the ledger write with their own statements. The entry must already
// be validated when called directly.
func (s *LedgerService) ApplyMovementTx(tx *goqu.TxDatabase, entry models.Movement) (*MovementResult, error) {
	if err := validateEntry(&entry); err != nil {
		return nil, err
	}

	if entry.IdempotencyKey != nil {
		prior, err := s.store.GetByIdempotencyKey(tx, *entry.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			return s.replayResultTx(tx, prior)
		}
	}

	result := MovementResult{Applied: true}

	if entry.MutatesBalances() {
		if entry.FromLocationID != nil {
			fromBalance, err := s.store.AdjustBalance(tx, entry.ItemID, *entry.FromLocationID, entry.Quantity.Neg())
			if err != nil {
				return nil, err
			}
			result.FromBalance = &fromBalance
		}
		if entry.ToLocationID != nil {
			toBalance, err := s.store.AdjustBalance(tx, entry.ItemID, *entry.ToLocationID, entry.Quantity)
			if err != nil {
				return nil, err
			}
			result.ToBalance = &toBalance
		}
	}

	if err := s.store.InsertMovement(tx, &entry); err != nil {
		return nil, err
	}
	result.Movement = entry

	return &result, nil
}

func (s *LedgerService) replayResultTx(tx *goqu.TxDatabase, prior *models.Movement) (*MovementResult, error) {
	result := MovementResult{Applied: false, Movement: *prior}

	if prior.FromLocationID != nil {
		balance, err := s.store.GetBalanceTx(tx, prior.ItemID, *prior.FromLocationID)
		if err != nil {
			return nil, err
		}
		result.FromBalance = &balance
	}
	if prior.ToLocationID != nil {
		balance, err := s.store.GetBalanceTx(tx, prior.ItemID, *prior.ToLocationID)
		if err != nil {
			return nil, err
		}
		result.ToBalance = &balance
	}

	return &result, nil
}

func (s *LedgerService) replayResult(entry models.Movement) (*MovementResult, error) {
	prior, err := s.store.FindByIdempotencyKey(*entry.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, fmt.Errorf("idempotency conflict for key %q but no prior movement found", *entry.IdempotencyKey)
	}

	s.log.Info("movement replay detected",
		zap.String("idempotency_key", *entry.IdempotencyKey),
		zap.Int("prior_movement_id", prior.ID),
	)

	result := MovementResult{Applied: false, Movement: *prior}
	if prior.FromLocationID != nil {
		balance, err := s.store.GetBalance(prior.ItemID, *prior.FromLocationID)
		if err != nil {
			return nil, err
		}
		result.FromBalance = &balance
	}
	if prior.ToLocationID != nil {
		balance, err := s.store.GetBalance(prior.ItemID, *prior.ToLocationID)
		if err != nil {
			return nil, err
		}
		result.ToBalance = &balance
	}

	return &result, nil
}

// AggregateLedger folds movements into (item, location) quantities, skipping
// audit_only rows. The input must already be in performed_at order.
func AggregateLedger(movements []models.Movement) map[models.BalanceKey]decimal.Decimal {
	balances := make(map[models.BalanceKey]decimal.Decimal)

	for _, m := range movements {
		if !m.MutatesBalances() {
			continue
		}
		if m.FromLocationID != nil {
			key := models.BalanceKey{ItemID: m.ItemID, LocationID: *m.FromLocationID}
			balances[key] = balances[key].Sub(m.Quantity)
		}
		if m.ToLocationID != nil {
			key := models.BalanceKey{ItemID: m.ItemID, LocationID: *m.ToLocationID}
			balances[key] = balances[key].Add(m.Quantity)
		}
	}

	return balances
}

// RebuildBalances recomputes every balance row by replaying the full ledger.
// Reconciliation only; never called in the request hot path.
func (s *LedgerService) RebuildBalances() (int, error) {
	var rebuilt int
	err := s.runTx(func(tx *goqu.TxDatabase) error {
		movements, err := s.store.GetLedgerOrdered(tx)
		if err != nil {
			return err
		}

		balances := AggregateLedger(movements)
		if err := s.store.ReplaceBalances(tx, balances); err != nil {
			return err
		}
		rebuilt = len(balances)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("balances rebuilt from ledger", zap.Int("rows", rebuilt))
	return rebuilt, nil
}
