package models

// User is the narrow read surface this core needs from the identity service:
// who the actor is, their role, and which vehicle they drive. The vehicle ref
// resolves to an active vehicle-type location in the registry.
type User struct {
	ID           int    `json:"id" db:"id"`
	Username     string `json:"username" db:"username"`
	Fullname     string `json:"fullname" db:"fullname"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         string `json:"role" db:"role"`
	VehicleRef   *int   `json:"vehicle_ref" db:"vehicle_ref"`
}
