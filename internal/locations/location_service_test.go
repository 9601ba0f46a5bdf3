package locations

import (
	"testing"

	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func intPtr(v int) *int { return &v }

type MockLocationStore struct {
	mock.Mock
}

func (m *MockLocationStore) GetLocation(locationID int) (*models.Location, error) {
	args := m.Called(locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Location), args.Error(1)
}

func (m *MockLocationStore) GetActiveLocationByCode(code string) (*models.Location, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Location), args.Error(1)
}

func (m *MockLocationStore) PersistLocation(location *models.Location) error {
	args := m.Called(location)
	return args.Error(0)
}

func (m *MockLocationStore) DeactivateLocation(locationID int) error {
	args := m.Called(locationID)
	return args.Error(0)
}

func (m *MockLocationStore) countActiveByCode(code string) (int, error) {
	args := m.Called(code)
	return args.Int(0), args.Error(1)
}

func (m *MockLocationStore) findDuplicateActiveCodes() ([]codeCount, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]codeCount), args.Error(1)
}

func (m *MockLocationStore) findConflictingVehicleRefs() ([]vehicleRefCount, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vehicleRefCount), args.Error(1)
}

func (m *MockLocationStore) findUnresolvedVehicleLocations() ([]models.Location, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Location), args.Error(1)
}

func (m *MockLocationStore) findOrphanedUserVehicles() ([]orphanedVehicleRef, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]orphanedVehicleRef), args.Error(1)
}

func TestCreateLocationValidation(t *testing.T) {
	service := NewLocationService(nil)

	tests := []struct {
		name string
		req  CreateLocationRequest
	}{
		{
			name: "unknown type",
			req:  CreateLocationRequest{Name: "Depot", Type: "hangar", Code: "DEPOT"},
		},
		{
			name: "vehicle without vehicle_ref",
			req:  CreateLocationRequest{Name: "Van 7", Type: models.LocationVehicle, Code: "VAN-7"},
		},
		{
			name: "vehicle_ref on a warehouse",
			req:  CreateLocationRequest{Name: "Depot", Type: models.LocationWarehouse, Code: "DEPOT", VehicleRef: intPtr(3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			location, err := service.CreateLocation(tt.req)
			assert.Error(t, err)
			assert.Nil(t, location)
		})
	}
}

func TestCreateLocationRejectsSecondSingletonSink(t *testing.T) {
	store := new(MockLocationStore)
	existing := &models.Location{ID: 2, Code: models.ConsumedSinkCode, Type: models.LocationVirtual, IsActive: true}
	store.On("GetActiveLocationByCode", models.ConsumedSinkCode).Return(existing, nil)

	service := NewLocationService(store)

	location, err := service.CreateLocation(CreateLocationRequest{
		Name: "Consumed",
		Type: models.LocationVirtual,
		Code: models.ConsumedSinkCode,
	})

	var singletonErr *custom_error.SingletonViolationError
	assert.ErrorAs(t, err, &singletonErr)
	assert.Equal(t, models.ConsumedSinkCode, singletonErr.Code)
	assert.Nil(t, location)
	store.AssertNotCalled(t, "PersistLocation", mock.Anything)
}

func TestCreateLocationAllowsFirstSingletonSink(t *testing.T) {
	store := new(MockLocationStore)
	store.On("GetActiveLocationByCode", models.LoadingBaySinkCode).Return(nil, nil)
	store.On("PersistLocation", mock.Anything).Return(nil).Once()

	service := NewLocationService(store)

	location, err := service.CreateLocation(CreateLocationRequest{
		Name: "Loading bay",
		Type: models.LocationLoadingBay,
		Code: models.LoadingBaySinkCode,
	})

	assert.NoError(t, err)
	assert.Equal(t, models.LoadingBaySinkCode, location.Code)
	store.AssertNumberOfCalls(t, "PersistLocation", 1)
}

func TestIsSingletonSink(t *testing.T) {
	assert.True(t, (&models.Location{Code: models.LoadingBaySinkCode}).IsSingletonSink())
	assert.True(t, (&models.Location{Code: models.ConsumedSinkCode}).IsSingletonSink())
	assert.False(t, (&models.Location{Code: models.MainWarehouseCode}).IsSingletonSink())
	assert.False(t, (&models.Location{Code: "VAN-7"}).IsSingletonSink())
}
