package reconciliation

import (
	"testing"
	"time"

	"fieldstock/internal/ledger"
	"fieldstock/internal/locations"
	"fieldstock/internal/routing"
	"fieldstock/pkg/auditlog"
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockBaselineMarkerStore struct {
	mock.Mock
}

func (m *MockBaselineMarkerStore) GetLatestBaselineRun() (*BaselineRun, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BaselineRun), args.Error(1)
}

func (m *MockBaselineMarkerStore) InsertBaselineRun(runBy int, overrideReason *string) (int, error) {
	args := m.Called(runBy, overrideReason)
	return args.Int(0), args.Error(1)
}

type MockBalanceReader struct {
	mock.Mock
}

func (m *MockBalanceReader) GetBalance(itemID, locationID int) (decimal.Decimal, error) {
	args := m.Called(itemID, locationID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type stubItemReader struct {
	items map[int]*models.Item
}

func (s *stubItemReader) GetItem(itemID int) (*models.Item, error) {
	return s.items[itemID], nil
}

type cleanTopology struct{}

func (cleanTopology) ValidateTopology() (*locations.TopologyReport, error) {
	return &locations.TopologyReport{OK: true, Violations: []locations.TopologyViolation{}}, nil
}

type recordingLogRepo struct {
	actions []string
}

func (r *recordingLogRepo) PersistLog(entry models.AuditLog, data interface{}) error {
	r.actions = append(r.actions, entry.Action)
	return nil
}

func newBaselineTestService(repo *MockBaselineMarkerStore, balances *MockBalanceReader, items map[int]*models.Item, logs *recordingLogRepo) *BaselineService {
	return &BaselineService{
		repo:          repo,
		ledger:        ledger.NewLedgerService(nil, nil, zap.NewNop()),
		movements:     balances,
		items:         &stubItemReader{items: items},
		locations:     cleanTopology{},
		audit:         auditlog.NewAuditLog(logs),
		log:           zap.NewNop(),
		writeInterval: time.Millisecond,
	}
}

func baselineActor() routing.Actor {
	return routing.Actor{UserID: 9}
}

func TestSeedBaselineRefusesSecondRunWithoutOverride(t *testing.T) {
	repo := new(MockBaselineMarkerStore)
	repo.On("GetLatestBaselineRun").Return(&BaselineRun{ID: 1, RunAt: time.Now(), RunBy: 2}, nil)

	service := newBaselineTestService(repo, new(MockBalanceReader), nil, &recordingLogRepo{})

	_, err := service.SeedBaseline(baselineActor(), []BaselineCount{{ItemID: 5, LocationID: 1, Counted: decimal.NewFromInt(3)}}, "")

	var runErr *custom_error.BaselineAlreadyRunError
	assert.ErrorAs(t, err, &runErr)
	repo.AssertNotCalled(t, "InsertBaselineRun", mock.Anything, mock.Anything)
}

func TestSeedBaselineSurfacesMarkerConflict(t *testing.T) {
	repo := new(MockBaselineMarkerStore)
	repo.On("GetLatestBaselineRun").Return(nil, nil)
	conflict := &custom_error.BaselineAlreadyRunError{RunAt: "2026-08-29T10:00:00Z"}
	repo.On("InsertBaselineRun", 9, (*string)(nil)).Return(0, conflict)

	balances := new(MockBalanceReader)
	service := newBaselineTestService(repo, balances, nil, &recordingLogRepo{})

	_, err := service.SeedBaseline(baselineActor(), []BaselineCount{{ItemID: 5, LocationID: 1, Counted: decimal.NewFromInt(3)}}, "")

	var runErr *custom_error.BaselineAlreadyRunError
	assert.ErrorAs(t, err, &runErr)
	balances.AssertNotCalled(t, "GetBalance", mock.Anything, mock.Anything)
}

func TestSeedBaselineUntrackedItemRecordsActivityOnly(t *testing.T) {
	repo := new(MockBaselineMarkerStore)
	repo.On("GetLatestBaselineRun").Return(nil, nil)
	repo.On("InsertBaselineRun", 9, (*string)(nil)).Return(1, nil)

	balances := new(MockBalanceReader)
	logs := &recordingLogRepo{}
	items := map[int]*models.Item{
		5: {ID: 5, Name: "Shop rag", IsInventoryTracked: false},
	}

	service := newBaselineTestService(repo, balances, items, logs)

	summary, err := service.SeedBaseline(baselineActor(), []BaselineCount{{ItemID: 5, LocationID: 1, Counted: decimal.NewFromInt(3)}}, "")

	assert.NoError(t, err)
	assert.Equal(t, 0, summary.Corrected)
	assert.Len(t, summary.Errors, 1)
	assert.Equal(t, "item is not inventory tracked", summary.Errors[0].Reason)
	assert.Equal(t, []string{"noop"}, logs.actions)
	balances.AssertNotCalled(t, "GetBalance", mock.Anything, mock.Anything)
}

func TestSeedBaselineSkipsZeroDeltaPairs(t *testing.T) {
	repo := new(MockBaselineMarkerStore)
	repo.On("GetLatestBaselineRun").Return(nil, nil)
	repo.On("InsertBaselineRun", 9, (*string)(nil)).Return(1, nil)

	balances := new(MockBalanceReader)
	balances.On("GetBalance", 5, 1).Return(decimal.NewFromInt(3), nil)
	items := map[int]*models.Item{
		5: {ID: 5, Name: "Hex bolt", IsInventoryTracked: true},
	}

	service := newBaselineTestService(repo, balances, items, &recordingLogRepo{})

	summary, err := service.SeedBaseline(baselineActor(), []BaselineCount{{ItemID: 5, LocationID: 1, Counted: decimal.NewFromInt(3)}}, "")

	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Corrected)
	assert.Empty(t, summary.Errors)
}
