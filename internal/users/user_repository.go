package users

import (
	"fmt"

	"fieldstock/internal/repository"
	"fieldstock/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

// UserRepository is the narrow reader this core keeps for the external
// identity service: role and vehicle assignment lookups only.
type UserRepository struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) *UserRepository {
	return &UserRepository{repository: r}
}

func (r *UserRepository) GetUser(userID int) (*models.User, error) {
	var user models.User

	query := r.repository.GoquDBWrapper.
		Select("id", "username", "fullname", "role", "vehicle_ref").
		From("users").
		Where(goqu.Ex{"id": userID})

	found, err := query.Executor().ScanStruct(&user)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch user %d: %w", userID, err)
	}
	if !found {
		return nil, fmt.Errorf("user %d not found", userID)
	}

	return &user, nil
}

// GetVehicleLocations resolves the active vehicle locations registered for
// the user's vehicle. The routing guard expects exactly one.
func (r *UserRepository) GetVehicleLocations(user *models.User) ([]models.Location, error) {
	if user.VehicleRef == nil {
		return nil, nil
	}

	var locations []models.Location
	query := r.repository.GoquDBWrapper.
		Select("id", "name", "type", "code", "is_active", "vehicle_ref").
		From("locations").
		Where(goqu.Ex{
			"type":        models.LocationVehicle,
			"vehicle_ref": *user.VehicleRef,
			"is_active":   true,
		})

	if err := query.Executor().ScanStructs(&locations); err != nil {
		return nil, fmt.Errorf("unable to fetch vehicle locations for user %d: %w", user.ID, err)
	}

	return locations, nil
}
