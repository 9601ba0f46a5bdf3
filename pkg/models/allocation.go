package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AllocationActive   = "active"
	AllocationConsumed = "consumed"
)

// Allocation reserves quantity for a future use. It is not a movement by
// itself; depletion happens through Consumption rows.
type Allocation struct {
	ID             int             `json:"id" db:"id"`
	ItemID         int             `json:"item_id" db:"item_id"`
	QtyAllocated   decimal.Decimal `json:"qty_allocated" db:"qty_allocated"`
	FromLocationID *int            `json:"from_location_id" db:"from_location_id"`
	Status         string          `json:"status" db:"status"`
}

// Consumption draws down an allocation, or stands alone for ad-hoc usage.
// ItemID is only set on ad-hoc rows; allocated rows take the item from their
// allocation.
type Consumption struct {
	ID                     int             `json:"id" db:"id"`
	AllocationID           *int            `json:"allocation_id" db:"allocation_id"`
	ItemID                 *int            `json:"item_id" db:"item_id"`
	QtyConsumed            decimal.Decimal `json:"qty_consumed" db:"qty_consumed"`
	ConsumedAt             time.Time       `json:"consumed_at" db:"consumed_at"`
	ConsumedFromLocationID *int            `json:"consumed_from_location_id" db:"consumed_from_location_id"`
	MovementID             *int            `json:"movement_id" db:"movement_id"`
}

func (c *Consumption) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   c.ID,
		ResourceType: "consumption",
	}
}

func (a *Allocation) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   a.ID,
		ResourceType: "allocation",
	}
}
