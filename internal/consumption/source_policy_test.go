package consumption

import (
	"testing"

	"fieldstock/internal/routing"
	"fieldstock/pkg/models"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestResolveSourcePrefersAllocationLocation(t *testing.T) {
	allocated := models.Location{ID: 4, Code: "SHELF-4", Type: models.LocationWarehouse, IsActive: true}

	policy := NewSourcePolicy(
		func(id int) (*models.Location, error) {
			assert.Equal(t, 4, id)
			return &allocated, nil
		},
		func() (*models.Location, error) {
			t.Fatal("warehouse fallback should not be consulted")
			return nil, nil
		},
	)

	allocation := &models.Allocation{ID: 1, FromLocationID: intPtr(4)}
	actor := routing.Actor{VehicleLocations: []models.Location{{ID: 10}}}

	source, err := policy.ResolveSource(allocation, actor)

	assert.NoError(t, err)
	assert.Equal(t, 4, source.ID)
}

func TestResolveSourceFallsBackToSingleVehicle(t *testing.T) {
	vehicle := models.Location{ID: 10, Code: "VAN-7", Type: models.LocationVehicle, IsActive: true}

	policy := NewSourcePolicy(
		func(int) (*models.Location, error) {
			t.Fatal("no allocation location to look up")
			return nil, nil
		},
		func() (*models.Location, error) {
			t.Fatal("warehouse fallback should not be consulted")
			return nil, nil
		},
	)

	actor := routing.Actor{VehicleLocations: []models.Location{vehicle}}

	source, err := policy.ResolveSource(nil, actor)

	assert.NoError(t, err)
	assert.Equal(t, 10, source.ID)
}

func TestResolveSourceSkipsInactiveAllocationLocation(t *testing.T) {
	retired := models.Location{ID: 4, Code: "OLD", Type: models.LocationWarehouse, IsActive: false}
	vehicle := models.Location{ID: 10, Code: "VAN-7", Type: models.LocationVehicle, IsActive: true}

	policy := NewSourcePolicy(
		func(int) (*models.Location, error) { return &retired, nil },
		func() (*models.Location, error) {
			t.Fatal("warehouse fallback should not be consulted")
			return nil, nil
		},
	)

	allocation := &models.Allocation{ID: 1, FromLocationID: intPtr(4)}
	actor := routing.Actor{VehicleLocations: []models.Location{vehicle}}

	source, err := policy.ResolveSource(allocation, actor)

	assert.NoError(t, err)
	assert.Equal(t, 10, source.ID)
}

func TestResolveSourceFallsBackToMainWarehouse(t *testing.T) {
	warehouse := models.Location{ID: 1, Code: models.MainWarehouseCode, Type: models.LocationWarehouse, IsActive: true}

	policy := NewSourcePolicy(
		func(int) (*models.Location, error) {
			t.Fatal("no allocation location to look up")
			return nil, nil
		},
		func() (*models.Location, error) { return &warehouse, nil },
	)

	tests := []struct {
		name  string
		actor routing.Actor
	}{
		{name: "no vehicles", actor: routing.Actor{}},
		{
			name: "two vehicles",
			actor: routing.Actor{VehicleLocations: []models.Location{
				{ID: 10}, {ID: 11},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, err := policy.ResolveSource(nil, tt.actor)
			assert.NoError(t, err)
			assert.Equal(t, 1, source.ID)
		})
	}
}

func TestResolveSourceFailsWithoutAnyCandidate(t *testing.T) {
	policy := NewSourcePolicy(
		func(int) (*models.Location, error) {
			t.Fatal("no allocation location to look up")
			return nil, nil
		},
		func() (*models.Location, error) { return nil, nil },
	)

	source, err := policy.ResolveSource(nil, routing.Actor{})

	assert.Error(t, err)
	assert.Nil(t, source)
}
