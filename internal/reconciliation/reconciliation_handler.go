package reconciliation

import (
	"errors"
	"net/http"

	"fieldstock/internal/ledger"
	"fieldstock/internal/routing"
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/roles"
	"fieldstock/pkg/security"

	"github.com/gin-gonic/gin"
)

type ReconciliationHandler struct {
	Integrity *IntegrityService
	Repair    *RepairService
	Baseline  *BaselineService
	Ledger    *ledger.LedgerService
	Actors    *routing.ActorLoader
}

func NewReconciliationHandler(integrity *IntegrityService, repair *RepairService, baseline *BaselineService, ledgerService *ledger.LedgerService, actors *routing.ActorLoader) *ReconciliationHandler {
	return &ReconciliationHandler{
		Integrity: integrity,
		Repair:    repair,
		Baseline:  baseline,
		Ledger:    ledgerService,
		Actors:    actors,
	}
}

func (h *ReconciliationHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/reconciliation/integrity", security.Authorize(roles.Manager), h.CheckIntegrity)
	router.POST("/reconciliation/repair-locations", security.Authorize(roles.Admin), h.RepairLocations)
	router.POST("/reconciliation/baseline", security.Authorize(roles.Admin), h.SeedBaseline)
	router.POST("/reconciliation/rebuild-balances", security.Authorize(roles.Admin), h.RebuildBalances)
}

func (h *ReconciliationHandler) CheckIntegrity(c *gin.Context) {
	report, err := h.Integrity.CheckIntegrity()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Integrity check failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *ReconciliationHandler) RepairLocations(c *gin.Context) {
	dryRun := c.Query("dry_run") == "true"

	report, err := h.Repair.RepairInactiveLocations(dryRun)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Repair failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

type seedBaselineRequest struct {
	Counts         []BaselineCount `json:"counts" binding:"required"`
	OverrideReason string          `json:"override_reason"`
}

func (h *ReconciliationHandler) SeedBaseline(c *gin.Context) {
	var req seedBaselineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if len(req.Counts) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Cannot seed an empty count set"})
		return
	}

	actor, err := h.Actors.FromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.Baseline.SeedBaseline(actor, req.Counts, req.OverrideReason)
	if err != nil {
		var alreadyRun *custom_error.BaselineAlreadyRunError
		if errors.As(err, &alreadyRun) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Baseline already run", "details": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Baseline correction failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *ReconciliationHandler) RebuildBalances(c *gin.Context) {
	rows, err := h.Ledger.RebuildBalances()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Rebuild failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rebuilt_rows": rows})
}
