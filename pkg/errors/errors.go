package custom_error

import "fmt"

type CustomError interface {
	Error() string
}

// DuplicateCodeError - an active location already holds the requested code.
type DuplicateCodeError struct {
	Code string
}

func (e *DuplicateCodeError) Error() string {
	return fmt.Sprintf("location code %q is already used by an active location", e.Code)
}

// SingletonViolationError - a second active copy of a system sink was requested.
type SingletonViolationError struct {
	Code string
}

func (e *SingletonViolationError) Error() string {
	return fmt.Sprintf("system location %q already exists and must stay singleton", e.Code)
}

type InvalidQuantityError struct {
	Quantity string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be a positive number, got %s", e.Quantity)
}

type InsufficientStockError struct {
	ItemID     int
	LocationID int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock of item %d at location %d", e.ItemID, e.LocationID)
}

type InsufficientAllocationError struct {
	AllocationID int
	Requested    string
	Remaining    string
}

func (e *InsufficientAllocationError) Error() string {
	return fmt.Sprintf("allocation %d has %s remaining, cannot consume %s", e.AllocationID, e.Remaining, e.Requested)
}

type InvalidDestinationError struct {
	LocationID int
	Reason     string
}

func (e *InvalidDestinationError) Error() string {
	return fmt.Sprintf("destination location %d rejected: %s", e.LocationID, e.Reason)
}

type RouteNotAllowedError struct {
	Reason string
}

func (e *RouteNotAllowedError) Error() string {
	return "movement not allowed: " + e.Reason
}

// NoSingleVehicleError - a restricted actor must resolve to exactly one
// active vehicle location.
type NoSingleVehicleError struct {
	Count int
}

func (e *NoSingleVehicleError) Error() string {
	return fmt.Sprintf("actor resolves to %d active vehicle locations, expected exactly 1", e.Count)
}

type BaselineAlreadyRunError struct {
	RunAt string
}

func (e *BaselineAlreadyRunError) Error() string {
	return fmt.Sprintf("baseline correction already ran at %s, supply an override reason to run again", e.RunAt)
}

type NotFoundError struct {
	Resource string
	ID       int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

type UniqueViolationError struct {
	message string
	code    string // PostgreSQL error code (e.g., "23505")
}

type ForeignKeyViolationError struct {
	message string
	code    string // PostgreSQL error code (e.g., "23503")
}

func (f *ForeignKeyViolationError) Error() string {
	return fmt.Sprintf("%s (code: %s)", f.message, f.code)
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("%s (code: %s)", e.message, e.code)
}

func WrapDBError(message, code string) CustomError {
	switch code {
	case "23505":
		return &UniqueViolationError{
			message: message,
			code:    code,
		}
	case "23503":
		return &ForeignKeyViolationError{
			message: "Value is already used by other resources " + message,
			code:    code,
		}
	default:
		return fmt.Errorf("uncategorized error occurred with code %s: %s", code, message)
	}
}
