package models

type LocationType string

const (
	LocationWarehouse  LocationType = "warehouse"
	LocationVehicle    LocationType = "vehicle"
	LocationLoadingBay LocationType = "loading_bay"
	LocationVirtual    LocationType = "virtual"
)

// System locations that must exist exactly once among active locations.
const (
	LoadingBaySinkCode = "LOADING_BAY"
	ConsumedSinkCode   = "CONSUMED"
	MainWarehouseCode  = "MAIN"
)

type Location struct {
	ID         int          `json:"id" db:"id"`
	Name       string       `json:"name" db:"name"`
	Type       LocationType `json:"type" db:"type"`
	Code       string       `json:"code" db:"code"`
	IsActive   bool         `json:"is_active" db:"is_active"`
	VehicleRef *int         `json:"vehicle_ref" db:"vehicle_ref"`
}

func (l *Location) IsSingletonSink() bool {
	return l.Code == LoadingBaySinkCode || l.Code == ConsumedSinkCode
}

func (l *Location) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   l.ID,
		ResourceType: "location",
	}
}
