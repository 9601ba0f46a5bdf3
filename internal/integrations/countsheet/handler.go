package countsheet

import (
	"errors"
	"fmt"
	"net/http"

	"fieldstock/internal/items"
	"fieldstock/internal/locations"
	"fieldstock/internal/reconciliation"
	"fieldstock/internal/routing"
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/roles"
	"fieldstock/pkg/security"

	"github.com/gin-gonic/gin"
)

type CountSheetHandler struct {
	Sheets    *CountSheetService
	Baseline  *reconciliation.BaselineService
	Items     *items.ItemRepository
	Locations *locations.LocationRepository
	Actors    *routing.ActorLoader
}

func NewCountSheetHandler(sheetsService *CountSheetService, baseline *reconciliation.BaselineService, itemRepo *items.ItemRepository, locationRepo *locations.LocationRepository, actors *routing.ActorLoader) *CountSheetHandler {
	return &CountSheetHandler{
		Sheets:    sheetsService,
		Baseline:  baseline,
		Items:     itemRepo,
		Locations: locationRepo,
		Actors:    actors,
	}
}

func (h *CountSheetHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/reconciliation/baseline/import-sheet", security.Authorize(roles.Admin), h.ImportSheet)
}

type importSheetRequest struct {
	SpreadsheetID  string `json:"spreadsheet_id" binding:"required"`
	Range          string `json:"range"`
	OverrideReason string `json:"override_reason"`
}

type resolveIssue struct {
	SKU          string `json:"sku,omitempty"`
	LocationCode string `json:"location_code,omitempty"`
	Reason       string `json:"reason"`
}

// ImportSheet pulls a stock-take sheet, resolves SKUs and location codes to
// internal IDs and feeds the result into the baseline correction run.
// Unresolvable rows are reported back but do not abort the import.
func (h *CountSheetHandler) ImportSheet(c *gin.Context) {
	var req importSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if req.Range == "" {
		req.Range = "A:C"
	}

	actor, err := h.Actors.FromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	rows, parseIssues, err := h.Sheets.ReadCounts(req.SpreadsheetID, req.Range)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Cannot read count sheet", "details": err.Error()})
		return
	}
	if len(rows) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Count sheet contains no usable rows", "parse_issues": parseIssues})
		return
	}

	counts, issues := h.resolveRows(rows)
	if len(counts) == 0 {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "No count row could be resolved", "unresolved": issues, "parse_issues": parseIssues})
		return
	}

	summary, err := h.Baseline.SeedBaseline(actor, counts, req.OverrideReason)
	if err != nil {
		var alreadyRun *custom_error.BaselineAlreadyRunError
		if errors.As(err, &alreadyRun) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Baseline already run", "details": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Baseline correction failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary":      summary,
		"unresolved":   issues,
		"parse_issues": parseIssues,
	})
}

func (h *CountSheetHandler) resolveRows(rows []CountRow) ([]reconciliation.BaselineCount, []resolveIssue) {
	var counts []reconciliation.BaselineCount
	var issues []resolveIssue

	locationIDs := make(map[string]int)

	for _, row := range rows {
		item, err := h.Items.GetItemBySKU(row.SKU)
		if err != nil {
			issues = append(issues, resolveIssue{SKU: row.SKU, Reason: fmt.Sprintf("cannot resolve SKU: %v", err)})
			continue
		}
		if item == nil {
			issues = append(issues, resolveIssue{SKU: row.SKU, Reason: "unknown SKU"})
			continue
		}
		if !item.IsInventoryTracked {
			issues = append(issues, resolveIssue{SKU: row.SKU, Reason: "item is not tracked"})
			continue
		}

		locationID, seen := locationIDs[row.LocationCode]
		if !seen {
			location, err := h.Locations.GetActiveLocationByCode(row.LocationCode)
			if err != nil {
				issues = append(issues, resolveIssue{LocationCode: row.LocationCode, Reason: fmt.Sprintf("cannot resolve location code: %v", err)})
				continue
			}
			if location == nil {
				issues = append(issues, resolveIssue{LocationCode: row.LocationCode, Reason: "no active location with this code"})
				continue
			}
			locationID = location.ID
			locationIDs[row.LocationCode] = locationID
		}

		counts = append(counts, reconciliation.BaselineCount{
			ItemID:     item.ID,
			LocationID: locationID,
			Counted:    row.Counted,
		})
	}

	return counts, issues
}
