package routing

import (
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"
	"fieldstock/pkg/roles"
)

type Mode string

const (
	ModeReceive  Mode = "receive"
	ModeTransfer Mode = "transfer"
)

// Actor carries everything the guard needs about the caller. It is assembled
// by the handlers from the identity reader so the guard itself stays pure.
type Actor struct {
	UserID           int
	Role             roles.Role
	VehicleLocations []models.Location
}

func (a Actor) singleVehicle() (*models.Location, error) {
	if len(a.VehicleLocations) != 1 {
		return nil, &custom_error.NoSingleVehicleError{Count: len(a.VehicleLocations)}
	}
	return &a.VehicleLocations[0], nil
}

// AuthorizeMovement decides whether the actor may move stock between the
// given locations. Elevated roles are unrestricted. A technician must have
// exactly one active vehicle location; receiving may target only that vehicle
// or the main warehouse, and transfers must run between the warehouse and the
// technician's own vehicle.
func AuthorizeMovement(actor Actor, mode Mode, from, to *models.Location) error {
	if actor.Role.IsElevated() {
		return nil
	}

	vehicle, err := actor.singleVehicle()
	if err != nil {
		return err
	}

	switch mode {
	case ModeReceive:
		if to == nil {
			return &custom_error.RouteNotAllowedError{Reason: "receive requires a destination"}
		}
		if to.ID == vehicle.ID || isMainWarehouse(to) {
			return nil
		}
		return &custom_error.RouteNotAllowedError{
			Reason: "technicians may receive only into their vehicle or the main warehouse",
		}

	case ModeTransfer:
		if from == nil || to == nil {
			return &custom_error.RouteNotAllowedError{Reason: "transfer requires both endpoints"}
		}
		warehouseToVehicle := isMainWarehouse(from) && to.ID == vehicle.ID
		vehicleToWarehouse := from.ID == vehicle.ID && isMainWarehouse(to)
		if warehouseToVehicle || vehicleToWarehouse {
			return nil
		}
		return &custom_error.RouteNotAllowedError{
			Reason: "technicians may transfer only between the main warehouse and their own vehicle",
		}

	default:
		return &custom_error.RouteNotAllowedError{Reason: "unknown movement mode"}
	}
}

func isMainWarehouse(loc *models.Location) bool {
	return loc.Type == models.LocationWarehouse && loc.Code == models.MainWarehouseCode
}
