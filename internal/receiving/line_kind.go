package receiving

import "fieldstock/pkg/models"

// LineKind is the explicit classification of an order line, resolved once at
// the start of receiving instead of re-derived from field presence at every
// check.
type LineKind int

const (
	// LineTracked resolves to an inventory-tracked item and produces a
	// movement on receipt.
	LineTracked LineKind = iota
	// LineNonStock has no item, or an item that is not inventory tracked:
	// labor, services, one-off materials. Only qty_received moves.
	LineNonStock
	// LineLinkedCustom is tied to a project part; receipt advances that
	// record's status and location metadata instead of any balance.
	LineLinkedCustom
)

type ClassifiedLine struct {
	Kind   LineKind
	Line   models.PurchaseOrderLine
	ItemID int
	PartID int
}

// ClassifyLine resolves the tagged variant for one order line. The item, when
// the line names one, must already be loaded by the caller (nil when
// unresolvable).
func ClassifyLine(line models.PurchaseOrderLine, item *models.Item) ClassifiedLine {
	if line.ProjectPartID != nil {
		return ClassifiedLine{Kind: LineLinkedCustom, Line: line, PartID: *line.ProjectPartID}
	}

	if line.ItemID == nil || item == nil || !item.IsInventoryTracked {
		return ClassifiedLine{Kind: LineNonStock, Line: line}
	}

	return ClassifiedLine{Kind: LineTracked, Line: line, ItemID: *line.ItemID}
}
