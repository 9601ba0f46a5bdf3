package ledger

import (
	"testing"

	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockMovementStore struct {
	mock.Mock
}

func (m *MockMovementStore) InsertMovement(tx *goqu.TxDatabase, entry *models.Movement) error {
	args := m.Called(tx, entry)
	return args.Error(0)
}

func (m *MockMovementStore) GetByIdempotencyKey(tx *goqu.TxDatabase, key string) (*models.Movement, error) {
	args := m.Called(tx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Movement), args.Error(1)
}

func (m *MockMovementStore) FindByIdempotencyKey(key string) (*models.Movement, error) {
	args := m.Called(key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Movement), args.Error(1)
}

func (m *MockMovementStore) AdjustBalance(tx *goqu.TxDatabase, itemID, locationID int, delta decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(tx, itemID, locationID, delta)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockMovementStore) GetBalanceTx(tx *goqu.TxDatabase, itemID, locationID int) (decimal.Decimal, error) {
	args := m.Called(tx, itemID, locationID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockMovementStore) GetBalance(itemID, locationID int) (decimal.Decimal, error) {
	args := m.Called(itemID, locationID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockMovementStore) GetLedgerOrdered(tx *goqu.TxDatabase) ([]models.Movement, error) {
	args := m.Called(tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Movement), args.Error(1)
}

func (m *MockMovementStore) ReplaceBalances(tx *goqu.TxDatabase, balances map[models.BalanceKey]decimal.Decimal) error {
	args := m.Called(tx, balances)
	return args.Error(0)
}

func newTestService(store MovementStore) *LedgerService {
	return &LedgerService{
		store: store,
		log:   zap.NewNop(),
		runTx: func(fn func(tx *goqu.TxDatabase) error) error {
			return fn(nil)
		},
	}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestApplyMovementValidation(t *testing.T) {
	service := newTestService(new(MockMovementStore))

	tests := []struct {
		name  string
		entry models.Movement
	}{
		{
			name:  "missing item",
			entry: models.Movement{Quantity: decimal.NewFromInt(1), ToLocationID: intPtr(1)},
		},
		{
			name:  "zero quantity",
			entry: models.Movement{ItemID: 5, Quantity: decimal.Zero, ToLocationID: intPtr(1)},
		},
		{
			name:  "negative quantity",
			entry: models.Movement{ItemID: 5, Quantity: decimal.NewFromInt(-3), ToLocationID: intPtr(1)},
		},
		{
			name:  "no endpoints",
			entry: models.Movement{ItemID: 5, Quantity: decimal.NewFromInt(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.ApplyMovement(tt.entry)
			assert.Error(t, err)
			assert.Nil(t, result)
		})
	}
}

func TestApplyMovementAdjustsBothEndpoints(t *testing.T) {
	store := new(MockMovementStore)
	service := newTestService(store)

	qty := decimal.NewFromInt(4)
	entry := models.Movement{
		ItemID:         5,
		Quantity:       qty,
		FromLocationID: intPtr(1),
		ToLocationID:   intPtr(2),
		Source:         models.SourceTransfer,
		IdempotencyKey: strPtr("transfer:abc"),
	}

	store.On("GetByIdempotencyKey", mock.Anything, "transfer:abc").Return(nil, nil).Once()
	store.On("AdjustBalance", mock.Anything, 5, 1, qty.Neg()).Return(decimal.NewFromInt(6), nil).Once()
	store.On("AdjustBalance", mock.Anything, 5, 2, qty).Return(decimal.NewFromInt(4), nil).Once()
	store.On("InsertMovement", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := service.ApplyMovement(entry)

	assert.NoError(t, err)
	assert.True(t, result.Applied)
	assert.True(t, result.FromBalance.Equal(decimal.NewFromInt(6)))
	assert.True(t, result.ToBalance.Equal(decimal.NewFromInt(4)))
	store.AssertExpectations(t)
}

func TestApplyMovementOneSidedEntry(t *testing.T) {
	store := new(MockMovementStore)
	service := newTestService(store)

	qty := decimal.NewFromInt(10)
	entry := models.Movement{
		ItemID:       5,
		Quantity:     qty,
		ToLocationID: intPtr(3),
		Source:       models.SourcePOReceipt,
	}

	store.On("AdjustBalance", mock.Anything, 5, 3, qty).Return(qty, nil).Once()
	store.On("InsertMovement", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := service.ApplyMovement(entry)

	assert.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Nil(t, result.FromBalance)
	assert.True(t, result.ToBalance.Equal(qty))
	store.AssertExpectations(t)
}

func TestApplyMovementAuditOnlySkipsBalances(t *testing.T) {
	store := new(MockMovementStore)
	service := newTestService(store)

	entry := models.Movement{
		ItemID:         5,
		Quantity:       decimal.NewFromInt(2),
		FromLocationID: intPtr(1),
		ToLocationID:   intPtr(2),
		Source:         models.SourceAuditOnly,
	}

	store.On("InsertMovement", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := service.ApplyMovement(entry)

	assert.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Nil(t, result.FromBalance)
	assert.Nil(t, result.ToBalance)
	store.AssertNotCalled(t, "AdjustBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestApplyMovementReplaysPriorEntry(t *testing.T) {
	store := new(MockMovementStore)
	service := newTestService(store)

	prior := &models.Movement{
		ID:             77,
		ItemID:         5,
		Quantity:       decimal.NewFromInt(4),
		FromLocationID: intPtr(1),
		ToLocationID:   intPtr(2),
		Source:         models.SourceTransfer,
		IdempotencyKey: strPtr("transfer:abc"),
	}

	store.On("GetByIdempotencyKey", mock.Anything, "transfer:abc").Return(prior, nil).Once()
	store.On("GetBalanceTx", mock.Anything, 5, 1).Return(decimal.NewFromInt(6), nil).Once()
	store.On("GetBalanceTx", mock.Anything, 5, 2).Return(decimal.NewFromInt(4), nil).Once()

	entry := models.Movement{
		ItemID:         5,
		Quantity:       decimal.NewFromInt(4),
		FromLocationID: intPtr(1),
		ToLocationID:   intPtr(2),
		Source:         models.SourceTransfer,
		IdempotencyKey: strPtr("transfer:abc"),
	}

	result, err := service.ApplyMovement(entry)

	assert.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, 77, result.Movement.ID)
	store.AssertNotCalled(t, "InsertMovement", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "AdjustBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyMovementRecoversFromUniqueViolation(t *testing.T) {
	store := new(MockMovementStore)
	service := newTestService(store)
	service.runTx = func(fn func(tx *goqu.TxDatabase) error) error {
		return &pq.Error{Code: "23505", Constraint: IdempotencyKeyConstraint}
	}

	prior := &models.Movement{
		ID:             91,
		ItemID:         5,
		Quantity:       decimal.NewFromInt(4),
		ToLocationID:   intPtr(2),
		Source:         models.SourcePOReceipt,
		IdempotencyKey: strPtr("po:1:2"),
	}

	store.On("FindByIdempotencyKey", "po:1:2").Return(prior, nil).Once()
	store.On("GetBalance", 5, 2).Return(decimal.NewFromInt(4), nil).Once()

	entry := models.Movement{
		ItemID:         5,
		Quantity:       decimal.NewFromInt(4),
		ToLocationID:   intPtr(2),
		Source:         models.SourcePOReceipt,
		IdempotencyKey: strPtr("po:1:2"),
	}

	result, err := service.ApplyMovement(entry)

	assert.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, 91, result.Movement.ID)
	store.AssertExpectations(t)
}

func TestApplyMovementNonNegativeRejectsOverdraw(t *testing.T) {
	store := new(MockMovementStore)
	service := newTestService(store)

	qty := decimal.NewFromInt(10)
	entry := models.Movement{
		ItemID:         5,
		Quantity:       qty,
		FromLocationID: intPtr(1),
		ToLocationID:   intPtr(2),
		Source:         models.SourceTransfer,
	}

	store.On("AdjustBalance", mock.Anything, 5, 1, qty.Neg()).Return(decimal.NewFromInt(-3), nil).Once()
	store.On("AdjustBalance", mock.Anything, 5, 2, qty).Return(qty, nil).Once()
	store.On("InsertMovement", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := service.ApplyMovementNonNegative(entry)

	var stockErr *custom_error.InsufficientStockError
	assert.ErrorAs(t, err, &stockErr)
	assert.Nil(t, result)
	assert.Equal(t, 5, stockErr.ItemID)
	assert.Equal(t, 1, stockErr.LocationID)
}

func TestAggregateLedger(t *testing.T) {
	movements := []models.Movement{
		{ItemID: 1, Quantity: decimal.NewFromInt(10), ToLocationID: intPtr(1), Source: models.SourcePOReceipt},
		{ItemID: 1, Quantity: decimal.NewFromInt(4), FromLocationID: intPtr(1), ToLocationID: intPtr(2), Source: models.SourceTransfer},
		{ItemID: 1, Quantity: decimal.NewFromInt(1), FromLocationID: intPtr(2), ToLocationID: intPtr(3), Source: models.SourceConsume},
		{ItemID: 2, Quantity: decimal.NewFromInt(5), ToLocationID: intPtr(1), Source: models.SourceBaselineSeed},
		// audit_only entries never count
		{ItemID: 1, Quantity: decimal.NewFromInt(99), FromLocationID: intPtr(1), ToLocationID: intPtr(2), Source: models.SourceAuditOnly},
	}

	balances := AggregateLedger(movements)

	assert.True(t, balances[models.BalanceKey{ItemID: 1, LocationID: 1}].Equal(decimal.NewFromInt(6)))
	assert.True(t, balances[models.BalanceKey{ItemID: 1, LocationID: 2}].Equal(decimal.NewFromInt(3)))
	assert.True(t, balances[models.BalanceKey{ItemID: 1, LocationID: 3}].Equal(decimal.NewFromInt(1)))
	assert.True(t, balances[models.BalanceKey{ItemID: 2, LocationID: 1}].Equal(decimal.NewFromInt(5)))
}

func TestRebuildBalances(t *testing.T) {
	store := new(MockMovementStore)
	service := newTestService(store)

	movements := []models.Movement{
		{ItemID: 1, Quantity: decimal.NewFromInt(10), ToLocationID: intPtr(1), Source: models.SourcePOReceipt},
		{ItemID: 1, Quantity: decimal.NewFromInt(4), FromLocationID: intPtr(1), ToLocationID: intPtr(2), Source: models.SourceTransfer},
	}

	store.On("GetLedgerOrdered", mock.Anything).Return(movements, nil).Once()
	store.On("ReplaceBalances", mock.Anything, mock.MatchedBy(func(balances map[models.BalanceKey]decimal.Decimal) bool {
		return len(balances) == 2 &&
			balances[models.BalanceKey{ItemID: 1, LocationID: 1}].Equal(decimal.NewFromInt(6)) &&
			balances[models.BalanceKey{ItemID: 1, LocationID: 2}].Equal(decimal.NewFromInt(4))
	})).Return(nil).Once()

	rebuilt, err := service.RebuildBalances()

	assert.NoError(t, err)
	assert.Equal(t, 2, rebuilt)
	store.AssertExpectations(t)
}
