package models

import "github.com/shopspring/decimal"

// Purchase order statuses owned by the receiving flow. Everything else about
// an order (supplier, documents, pricing) belongs to the ordering service.
const (
	OrderStatusOrdered      = "ordered"
	OrderStatusInLoadingBay = "in_loading_bay"
	OrderStatusInVehicle    = "in_vehicle"
	OrderStatusInStorage    = "in_storage"
)

const JobStatusPartsReceived = "parts_received"

type PurchaseOrder struct {
	ID     int    `json:"id" db:"id"`
	Status string `json:"status" db:"status"`
	JobRef *int   `json:"job_ref" db:"job_ref"`
}

type PurchaseOrderLine struct {
	ID              int             `json:"id" db:"id"`
	PurchaseOrderID int             `json:"purchase_order_id" db:"purchase_order_id"`
	ItemID          *int            `json:"item_id" db:"item_id"`
	ProjectPartID   *int            `json:"project_part_id" db:"project_part_id"`
	Description     string          `json:"description" db:"description"`
	QtyOrdered      decimal.Decimal `json:"qty_ordered" db:"qty_ordered"`
	QtyReceived     decimal.Decimal `json:"qty_received" db:"qty_received"`
}

func (l *PurchaseOrderLine) FullyReceived() bool {
	return l.QtyReceived.GreaterThanOrEqual(l.QtyOrdered)
}

// ProjectPart is the linked-custom target of a non-catalog order line. The
// receiving flow only advances its status and drop-off location.
type ProjectPart struct {
	ID         int    `json:"id" db:"id"`
	Status     string `json:"status" db:"status"`
	LocationID *int   `json:"location_id" db:"location_id"`
}

func (o *PurchaseOrder) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   o.ID,
		ResourceType: "purchase_order",
	}
}
