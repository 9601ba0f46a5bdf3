package ledger

import (
	"fmt"

	"fieldstock/internal/items"
	"fieldstock/internal/locations"
	"fieldstock/internal/routing"
	"fieldstock/pkg/auditlog"
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"

	"github.com/shopspring/decimal"
)

type TransferService struct {
	ledger    *LedgerService
	items     *items.ItemRepository
	locations *locations.LocationRepository
	audit     *auditlog.Auditlog
}

func NewTransferService(ledger *LedgerService, itemRepo *items.ItemRepository, locationRepo *locations.LocationRepository, audit *auditlog.Auditlog) *TransferService {
	return &TransferService{
		ledger:    ledger,
		items:     itemRepo,
		locations: locationRepo,
		audit:     audit,
	}
}

type TransferRequest struct {
	ItemID         int             `json:"item_id" binding:"required"`
	FromLocationID int             `json:"from_location_id" binding:"required"`
	ToLocationID   int             `json:"to_location_id" binding:"required"`
	Quantity       decimal.Decimal `json:"quantity" binding:"required"`
	Notes          *string         `json:"notes"`
}

type TransferResult struct {
	Applied    bool   `json:"applied"`
	Noop       bool   `json:"noop"`
	MovementID int    `json:"movement_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Transfer moves quantity between two active locations. The routing guard
// runs before any ledger mutation; untracked items short-circuit to a no-op
// activity record and never reach the ledger.
func (s *TransferService) Transfer(actor routing.Actor, req TransferRequest) (*TransferResult, error) {
	from, err := s.locations.GetLocation(req.FromLocationID)
	if err != nil {
		return nil, err
	}
	to, err := s.locations.GetLocation(req.ToLocationID)
	if err != nil {
		return nil, err
	}
	if !from.IsActive || !to.IsActive {
		return nil, fmt.Errorf("transfers require active locations on both ends")
	}

	if err := routing.AuthorizeMovement(actor, routing.ModeTransfer, from, to); err != nil {
		return nil, err
	}

	item, err := s.items.GetItem(req.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil || !item.IsInventoryTracked {
		noopItem := models.Item{ID: req.ItemID}
		s.audit.LogNoop("item is not inventory tracked", map[string]interface{}{
			"from_location_id": req.FromLocationID,
			"to_location_id":   req.ToLocationID,
			"quantity":         req.Quantity,
		}, &noopItem)
		return &TransferResult{Applied: false, Noop: true, Reason: "item is not inventory tracked"}, nil
	}

	available, err := s.ledger.store.GetBalance(req.ItemID, req.FromLocationID)
	if err != nil {
		return nil, err
	}
	if available.LessThan(req.Quantity) {
		return nil, &custom_error.InsufficientStockError{ItemID: req.ItemID, LocationID: req.FromLocationID}
	}

	entry := models.Movement{
		ItemID:         req.ItemID,
		Quantity:       req.Quantity,
		FromLocationID: &req.FromLocationID,
		ToLocationID:   &req.ToLocationID,
		Source:         models.SourceTransfer,
		PerformedBy:    &actor.UserID,
		Notes:          req.Notes,
	}

	result, err := s.ledger.ApplyMovementNonNegative(entry)
	if err != nil {
		return nil, err
	}

	go s.audit.Log("transfer", map[string]interface{}{
		"from_location_id": req.FromLocationID,
		"to_location_id":   req.ToLocationID,
		"quantity":         req.Quantity,
		"performed_by":     actor.UserID,
	}, &result.Movement)

	return &TransferResult{Applied: result.Applied, MovementID: result.Movement.ID}, nil
}

type AdjustRequest struct {
	ItemID     int             `json:"item_id" binding:"required"`
	LocationID int             `json:"location_id" binding:"required"`
	Delta      decimal.Decimal `json:"delta" binding:"required"`
	Note       string          `json:"note" binding:"required"`
	AuditOnly  bool            `json:"audit_only"`
}

// Adjust records a manual correction. The signed delta picks the entry's
// direction; audit-only adjustments append a ledger row without touching any
// balance.
func (s *TransferService) Adjust(actor routing.Actor, req AdjustRequest) (*MovementResult, error) {
	if req.Delta.IsZero() {
		return nil, &custom_error.InvalidQuantityError{Quantity: req.Delta.String()}
	}

	item, err := s.items.GetItem(req.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil || !item.IsInventoryTracked {
		noopItem := models.Item{ID: req.ItemID}
		s.audit.LogNoop("item is not inventory tracked", map[string]interface{}{
			"location_id": req.LocationID,
			"delta":       req.Delta,
			"note":        req.Note,
		}, &noopItem)
		return nil, &custom_error.NotFoundError{Resource: "tracked item", ID: req.ItemID}
	}

	entry := models.Movement{
		ItemID:      req.ItemID,
		Quantity:    req.Delta.Abs(),
		Source:      models.SourceAdjustment,
		PerformedBy: &actor.UserID,
		Notes:       &req.Note,
	}
	if req.AuditOnly {
		entry.Source = models.SourceAuditOnly
	}
	if req.Delta.IsPositive() {
		entry.ToLocationID = &req.LocationID
	} else {
		entry.FromLocationID = &req.LocationID
	}

	result, err := s.ledger.ApplyMovement(entry)
	if err != nil {
		return nil, err
	}

	go s.audit.Log("adjustment", map[string]interface{}{
		"location_id": req.LocationID,
		"delta":       req.Delta,
		"note":        req.Note,
		"audit_only":  req.AuditOnly,
	}, &result.Movement)

	return result, nil
}
