package receiving

import (
	"fmt"

	"fieldstock/internal/items"
	"fieldstock/internal/ledger"
	"fieldstock/internal/locations"
	"fieldstock/internal/repository"
	"fieldstock/internal/routing"
	"fieldstock/pkg/auditlog"
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	referencePurchaseOrder = "purchase_order"
	partStatusReceived     = "received"
)

type ReceiveService struct {
	r         *repository.Repository
	orders    *OrderRepository
	items     *items.ItemRepository
	locations *locations.LocationRepository
	ledger    *ledger.LedgerService
	audit     *auditlog.Auditlog
	log       *zap.Logger
}

func NewReceiveService(r *repository.Repository, orders *OrderRepository, itemRepo *items.ItemRepository, locationRepo *locations.LocationRepository, ledgerService *ledger.LedgerService, audit *auditlog.Auditlog, log *zap.Logger) *ReceiveService {
	return &ReceiveService{
		r:         r,
		orders:    orders,
		items:     itemRepo,
		locations: locationRepo,
		ledger:    ledgerService,
		audit:     audit,
		log:       log,
	}
}

type ReceiveLineRequest struct {
	LineID   int             `json:"line_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
}

type ReceiveRequest struct {
	OrderID       int                  `json:"-"`
	DestinationID int                  `json:"destination_location_id" binding:"required"`
	Lines         []ReceiveLineRequest `json:"lines" binding:"required"`
}

type SkippedLine struct {
	LineID int    `json:"line_id"`
	Reason string `json:"reason"`
}

type ReceiveResult struct {
	ItemsReceived int           `json:"items_received"`
	SkippedLines  []SkippedLine `json:"skipped_lines"`
	OrderStatus   string        `json:"order_status"`
}

// Receive processes a batch of (line, quantity) pairs against one purchase
// order. Lines fail individually, never the batch: a technician still gets
// credit for the items that did arrive correctly.
func (s *ReceiveService) Receive(actor routing.Actor, req ReceiveRequest) (*ReceiveResult, error) {
	order, err := s.orders.GetOrder(req.OrderID)
	if err != nil {
		return nil, err
	}

	destination, err := s.locations.GetLocation(req.DestinationID)
	if err != nil {
		return nil, err
	}
	if !destination.IsActive {
		return nil, &custom_error.InvalidDestinationError{LocationID: destination.ID, Reason: "location is not active"}
	}

	if err := routing.AuthorizeMovement(actor, routing.ModeReceive, nil, destination); err != nil {
		return nil, err
	}

	lines, err := s.orders.GetOrderLines(order.ID)
	if err != nil {
		return nil, err
	}
	lineByID := make(map[int]models.PurchaseOrderLine, len(lines))
	for _, line := range lines {
		lineByID[line.ID] = line
	}

	result := ReceiveResult{SkippedLines: []SkippedLine{}}

	for _, pair := range req.Lines {
		line, ok := lineByID[pair.LineID]
		if !ok {
			result.SkippedLines = append(result.SkippedLines, SkippedLine{
				LineID: pair.LineID,
				Reason: fmt.Sprintf("line does not belong to purchase order %d", order.ID),
			})
			continue
		}
		if !pair.Quantity.IsPositive() {
			result.SkippedLines = append(result.SkippedLines, SkippedLine{
				LineID: pair.LineID,
				Reason: "quantity must be positive",
			})
			continue
		}

		if err := s.receiveLine(actor, order, line, pair.Quantity, destination); err != nil {
			result.SkippedLines = append(result.SkippedLines, SkippedLine{
				LineID: pair.LineID,
				Reason: err.Error(),
			})
			continue
		}
		result.ItemsReceived++
	}

	status, err := s.recomputeOrderStatus(order, destination)
	if err != nil {
		return nil, err
	}
	result.OrderStatus = status

	go s.audit.Log("receive", map[string]interface{}{
		"destination_location_id": destination.ID,
		"items_received":          result.ItemsReceived,
		"skipped":                 len(result.SkippedLines),
		"order_status":            status,
		"performed_by":            actor.UserID,
	}, order)

	return &result, nil
}

// receiveLine is one unit of work: the qty_received bump and whatever the
// line kind requires commit or roll back together.
func (s *ReceiveService) receiveLine(actor routing.Actor, order *models.PurchaseOrder, line models.PurchaseOrderLine, qty decimal.Decimal, destination *models.Location) error {
	var item *models.Item
	var err error
	if line.ItemID != nil {
		item, err = s.items.GetItem(*line.ItemID)
		if err != nil {
			return err
		}
	}
	classified := ClassifyLine(line, item)

	err = repository.WithRetry(s.r.GoquDBWrapper, 3, func(tx *goqu.TxDatabase) error {
		if err := s.orders.IncrementReceived(tx, line.ID, qty); err != nil {
			return err
		}

		switch classified.Kind {
		case LineTracked:
			referenceType := referencePurchaseOrder
			entry := models.Movement{
				ItemID:        classified.ItemID,
				Quantity:      qty,
				ToLocationID:  &destination.ID,
				Source:        models.SourcePOReceipt,
				ReferenceType: &referenceType,
				ReferenceID:   &order.ID,
				PerformedBy:   &actor.UserID,
			}
			if _, err := s.ledger.ApplyMovementTx(tx, entry); err != nil {
				return err
			}

		case LineLinkedCustom:
			if err := s.orders.UpdateProjectPart(tx, classified.PartID, partStatusReceived, destination.ID); err != nil {
				return err
			}

		case LineNonStock:
			// qty_received already moved, nothing else to write
		}

		return nil
	})
	if err != nil {
		return err
	}

	if classified.Kind == LineNonStock {
		s.audit.LogNoop("non-stock line, no balance mutation", map[string]interface{}{
			"purchase_order_id": order.ID,
			"line_id":           line.ID,
			"quantity":          qty,
		}, order)
	}

	return nil
}

func (s *ReceiveService) recomputeOrderStatus(order *models.PurchaseOrder, destination *models.Location) (string, error) {
	lines, err := s.orders.GetOrderLines(order.ID)
	if err != nil {
		return "", err
	}

	status := AggregateStatus(lines, destination.Type)

	if err := s.orders.UpdateOrderStatus(order.ID, status); err != nil {
		return "", err
	}

	if status != models.OrderStatusInLoadingBay && order.JobRef != nil {
		if err := s.orders.UpdateJobStatus(*order.JobRef, models.JobStatusPartsReceived); err != nil {
			// Job status lives in the external job service's table; a failed
			// advance is logged, not rolled into the receive outcome.
			s.log.Warn("could not advance linked job status",
				zap.Int("job_ref", *order.JobRef),
				zap.Error(err),
			)
		}
	}

	return status, nil
}

// AggregateStatus derives the order status from its lines: fully received
// orders land by destination type, anything short stays in the loading bay.
func AggregateStatus(lines []models.PurchaseOrderLine, destinationType models.LocationType) string {
	for _, line := range lines {
		if !line.FullyReceived() {
			return models.OrderStatusInLoadingBay
		}
	}

	if destinationType == models.LocationVehicle {
		return models.OrderStatusInVehicle
	}
	return models.OrderStatusInStorage
}
