package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MovementSource string

const (
	SourcePOReceipt    MovementSource = "po_receipt"
	SourceTransfer     MovementSource = "transfer"
	SourceConsume      MovementSource = "consume"
	SourceAdjustment   MovementSource = "adjustment"
	SourceBaselineSeed MovementSource = "baseline_seed"
	SourceAuditOnly    MovementSource = "audit_only"
)

// Movement is one immutable ledger row. A nil FromLocationID means external
// inflow, a nil ToLocationID means outflow with no destination. Rows with
// source audit_only never touch balances.
type Movement struct {
	ID             int             `json:"id" db:"id"`
	ItemID         int             `json:"item_id" db:"item_id"`
	Quantity       decimal.Decimal `json:"quantity" db:"quantity"`
	FromLocationID *int            `json:"from_location_id" db:"from_location_id"`
	ToLocationID   *int            `json:"to_location_id" db:"to_location_id"`
	Source         MovementSource  `json:"source" db:"source"`
	ReferenceType  *string         `json:"reference_type" db:"reference_type"`
	ReferenceID    *int            `json:"reference_id" db:"reference_id"`
	IdempotencyKey *string         `json:"idempotency_key" db:"idempotency_key"`
	PerformedBy    *int            `json:"performed_by" db:"performed_by"`
	PerformedAt    time.Time       `json:"performed_at" db:"performed_at"`
	Notes          *string         `json:"notes" db:"notes"`
}

func (m *Movement) MutatesBalances() bool {
	return m.Source != SourceAuditOnly
}

func (m *Movement) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   m.ID,
		ResourceType: "movement",
	}
}
