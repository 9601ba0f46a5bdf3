package consumption

import (
	"sync"
	"testing"

	"fieldstock/internal/ledger"
	"fieldstock/internal/routing"
	"fieldstock/pkg/auditlog"
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockConsumptionStore struct {
	mock.Mock
}

func (m *MockConsumptionStore) GetConsumption(consumptionID int) (*models.Consumption, error) {
	args := m.Called(consumptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Consumption), args.Error(1)
}

func (m *MockConsumptionStore) GetAllocation(allocationID int) (*models.Allocation, error) {
	args := m.Called(allocationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Allocation), args.Error(1)
}

func (m *MockConsumptionStore) SumPriorConsumptions(tx *goqu.TxDatabase, allocationID int, before *models.Consumption) (decimal.Decimal, error) {
	args := m.Called(tx, allocationID, before)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockConsumptionStore) MarkAllocationConsumed(tx *goqu.TxDatabase, allocationID int) (bool, error) {
	args := m.Called(tx, allocationID)
	return args.Bool(0), args.Error(1)
}

func (m *MockConsumptionStore) LinkMovement(tx *goqu.TxDatabase, consumptionID, movementID int) error {
	args := m.Called(tx, consumptionID, movementID)
	return args.Error(0)
}

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

type stubItemLookup struct {
	item *models.Item
}

func (s *stubItemLookup) GetItem(itemID int) (*models.Item, error) {
	return s.item, nil
}

type stubLocationLookup struct {
	byID   map[int]*models.Location
	byCode map[string]*models.Location
}

func (s *stubLocationLookup) GetLocation(locationID int) (*models.Location, error) {
	return s.byID[locationID], nil
}

func (s *stubLocationLookup) GetActiveLocationByCode(code string) (*models.Location, error) {
	return s.byCode[code], nil
}

type recordingLogRepo struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordingLogRepo) PersistLog(entry models.AuditLog, data interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, entry.Action)
	return nil
}

func (r *recordingLogRepo) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.actions...)
}

func newConsumeTestService(store *MockConsumptionStore, movements *MockMovementStore, item *models.Item, locs *stubLocationLookup, logs *recordingLogRepo) *ConsumptionService {
	s := &ConsumptionService{
		repo:      store,
		items:     &stubItemLookup{item: item},
		locations: locs,
		ledger:    ledger.NewLedgerService(nil, movements, zap.NewNop()),
		audit:     auditlog.NewAuditLog(logs),
	}
	s.policy = NewSourcePolicy(locs.GetLocation, func() (*models.Location, error) {
		return locs.GetActiveLocationByCode(models.MainWarehouseCode)
	})
	s.runTx = func(fn func(tx *goqu.TxDatabase) error) error {
		return fn(nil)
	}
	return s
}

func actorWithVehicle() routing.Actor {
	return routing.Actor{UserID: 3, VehicleLocations: []models.Location{{ID: 12, Type: models.LocationVehicle, IsActive: true}}}
}

func trackedItem() *models.Item {
	return &models.Item{ID: 5, Name: "Hex bolt", IsInventoryTracked: true}
}

func consumeLocations() *stubLocationLookup {
	shelf := &models.Location{ID: 7, Code: "SHELF-7", Type: models.LocationWarehouse, IsActive: true}
	sink := &models.Location{ID: 99, Code: models.ConsumedSinkCode, Type: models.LocationVirtual, IsActive: true}
	return &stubLocationLookup{
		byID:   map[int]*models.Location{7: shelf},
		byCode: map[string]*models.Location{models.ConsumedSinkCode: sink},
	}
}

func TestConsumeRejectsQuantityOverAllocationCap(t *testing.T) {
	store := new(MockConsumptionStore)
	movements := new(MockMovementStore)

	consumption := &models.Consumption{ID: 1, AllocationID: intPtr(10), QtyConsumed: decimal.NewFromInt(3)}
	allocation := &models.Allocation{ID: 10, ItemID: 5, QtyAllocated: decimal.NewFromInt(10), FromLocationID: intPtr(7), Status: models.AllocationActive}

	store.On("GetConsumption", 1).Return(consumption, nil)
	store.On("GetAllocation", 10).Return(allocation, nil)
	store.On("SumPriorConsumptions", mock.Anything, 10, consumption).Return(decimal.NewFromInt(8), nil)

	service := newConsumeTestService(store, movements, trackedItem(), consumeLocations(), &recordingLogRepo{})

	_, err := service.Consume(actorWithVehicle(), 1)

	var allocationErr *custom_error.InsufficientAllocationError
	assert.ErrorAs(t, err, &allocationErr)
	assert.Equal(t, 10, allocationErr.AllocationID)
	assert.Equal(t, "2", allocationErr.Remaining)
	movements.AssertNotCalled(t, "InsertMovement", mock.Anything, mock.Anything)
	movements.AssertNotCalled(t, "AdjustBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConsumeFlipsAllocationOnExactDepletion(t *testing.T) {
	store := new(MockConsumptionStore)
	movements := new(MockMovementStore)
	qty := decimal.NewFromInt(4)

	consumption := &models.Consumption{ID: 1, AllocationID: intPtr(10), QtyConsumed: qty}
	allocation := &models.Allocation{ID: 10, ItemID: 5, QtyAllocated: decimal.NewFromInt(10), FromLocationID: intPtr(7), Status: models.AllocationActive}

	store.On("GetConsumption", 1).Return(consumption, nil)
	store.On("GetAllocation", 10).Return(allocation, nil)
	store.On("SumPriorConsumptions", mock.Anything, 10, consumption).Return(decimal.NewFromInt(6), nil)
	store.On("LinkMovement", mock.Anything, 1, 77).Return(nil).Once()
	store.On("MarkAllocationConsumed", mock.Anything, 10).Return(true, nil).Once()

	movements.On("GetByIdempotencyKey", mock.Anything, "consume:1:10").Return(nil, nil)
	movements.On("AdjustBalance", mock.Anything, 5, 7, qty.Neg()).Return(decimal.NewFromInt(2), nil).Once()
	movements.On("AdjustBalance", mock.Anything, 5, 99, qty).Return(qty, nil).Once()
	movements.On("InsertMovement", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Movement).ID = 77
	}).Return(nil).Once()

	service := newConsumeTestService(store, movements, trackedItem(), consumeLocations(), &recordingLogRepo{})

	result, err := service.Consume(actorWithVehicle(), 1)

	assert.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, models.AllocationConsumed, result.AllocationStatus)
	store.AssertNumberOfCalls(t, "MarkAllocationConsumed", 1)
}

func TestConsumeKeepsAllocationActiveBelowCap(t *testing.T) {
	store := new(MockConsumptionStore)
	movements := new(MockMovementStore)
	qty := decimal.NewFromInt(4)

	consumption := &models.Consumption{ID: 1, AllocationID: intPtr(10), QtyConsumed: qty}
	allocation := &models.Allocation{ID: 10, ItemID: 5, QtyAllocated: decimal.NewFromInt(10), FromLocationID: intPtr(7), Status: models.AllocationActive}

	store.On("GetConsumption", 1).Return(consumption, nil)
	store.On("GetAllocation", 10).Return(allocation, nil)
	store.On("SumPriorConsumptions", mock.Anything, 10, consumption).Return(decimal.NewFromInt(2), nil)
	store.On("LinkMovement", mock.Anything, 1, 0).Return(nil).Once()

	movements.On("GetByIdempotencyKey", mock.Anything, "consume:1:10").Return(nil, nil)
	movements.On("AdjustBalance", mock.Anything, 5, 7, qty.Neg()).Return(decimal.NewFromInt(6), nil).Once()
	movements.On("AdjustBalance", mock.Anything, 5, 99, qty).Return(qty, nil).Once()
	movements.On("InsertMovement", mock.Anything, mock.Anything).Return(nil).Once()

	service := newConsumeTestService(store, movements, trackedItem(), consumeLocations(), &recordingLogRepo{})

	result, err := service.Consume(actorWithVehicle(), 1)

	assert.NoError(t, err)
	assert.Equal(t, models.AllocationActive, result.AllocationStatus)
	store.AssertNotCalled(t, "MarkAllocationConsumed", mock.Anything, mock.Anything)
}

func TestConsumeUntrackedItemRecordsActivityOnly(t *testing.T) {
	store := new(MockConsumptionStore)
	movements := new(MockMovementStore)
	logs := &recordingLogRepo{}

	consumption := &models.Consumption{ID: 1, ItemID: intPtr(5), QtyConsumed: decimal.NewFromInt(2), ConsumedFromLocationID: intPtr(7)}
	store.On("GetConsumption", 1).Return(consumption, nil)

	untracked := &models.Item{ID: 5, Name: "Shop rag", IsInventoryTracked: false}
	service := newConsumeTestService(store, movements, untracked, consumeLocations(), logs)

	result, err := service.Consume(actorWithVehicle(), 1)

	assert.NoError(t, err)
	assert.False(t, result.Applied)
	assert.True(t, result.Noop)
	assert.Equal(t, []string{"noop"}, logs.recorded())
	movements.AssertNotCalled(t, "InsertMovement", mock.Anything, mock.Anything)
	movements.AssertNotCalled(t, "AdjustBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "LinkMovement", mock.Anything, mock.Anything, mock.Anything)
}
