package routing

import (
	"fmt"

	"fieldstock/internal/users"
	"fieldstock/pkg/roles"
	"fieldstock/pkg/security"

	"github.com/gin-gonic/gin"
)

// ActorLoader assembles a guard Actor from the authenticated request: role
// from the identity reader, vehicle locations from the registry.
type ActorLoader struct {
	users *users.UserRepository
}

func NewActorLoader(userRepo *users.UserRepository) *ActorLoader {
	return &ActorLoader{users: userRepo}
}

func (l *ActorLoader) FromContext(c *gin.Context) (Actor, error) {
	userID, err := security.GetUserIDFromToken(c)
	if err != nil {
		return Actor{}, fmt.Errorf("unable to resolve actor: %w", err)
	}

	user, err := l.users.GetUser(userID)
	if err != nil {
		return Actor{}, err
	}

	vehicles, err := l.users.GetVehicleLocations(user)
	if err != nil {
		return Actor{}, err
	}

	return Actor{
		UserID:           user.ID,
		Role:             roles.Role(user.Role),
		VehicleLocations: vehicles,
	}, nil
}
