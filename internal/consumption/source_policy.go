package consumption

import (
	"fmt"

	"fieldstock/internal/routing"
	"fieldstock/pkg/models"
)

// SourcePolicy is the explicit fallback chain for where consumed stock is
// drawn from when the allocation does not pin a location: the allocation's
// own location, then the actor's single vehicle, then the main warehouse.
type SourcePolicy struct {
	lookupLocation  func(locationID int) (*models.Location, error)
	lookupWarehouse func() (*models.Location, error)
}

func NewSourcePolicy(lookupLocation func(int) (*models.Location, error), lookupWarehouse func() (*models.Location, error)) *SourcePolicy {
	return &SourcePolicy{
		lookupLocation:  lookupLocation,
		lookupWarehouse: lookupWarehouse,
	}
}

func (p *SourcePolicy) ResolveSource(allocation *models.Allocation, actor routing.Actor) (*models.Location, error) {
	if allocation != nil && allocation.FromLocationID != nil {
		location, err := p.lookupLocation(*allocation.FromLocationID)
		if err != nil {
			return nil, err
		}
		if location.IsActive {
			return location, nil
		}
	}

	if len(actor.VehicleLocations) == 1 {
		return &actor.VehicleLocations[0], nil
	}

	warehouse, err := p.lookupWarehouse()
	if err != nil {
		return nil, err
	}
	if warehouse == nil {
		return nil, fmt.Errorf("no source location could be resolved: allocation has none, actor has no single vehicle, and the main warehouse is missing")
	}

	return warehouse, nil
}
