package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"fieldstock/internal/routing"
	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/roles"
	"fieldstock/pkg/security"

	"github.com/gin-gonic/gin"
)

type LedgerHandler struct {
	Transfers *TransferService
	Ledger    *LedgerService
	Movements *MovementRepository
	Actors    *routing.ActorLoader
}

func NewLedgerHandler(transfers *TransferService, ledgerService *LedgerService, movements *MovementRepository, actors *routing.ActorLoader) *LedgerHandler {
	return &LedgerHandler{
		Transfers: transfers,
		Ledger:    ledgerService,
		Movements: movements,
		Actors:    actors,
	}
}

func (h *LedgerHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/transfers", h.CreateTransfer)
	router.POST("/adjustments", security.Authorize(roles.Manager), h.CreateAdjustment)
	router.GET("/movements", h.GetMovements)
}

func (h *LedgerHandler) CreateTransfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	actor, err := h.Actors.FromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Transfers.Transfer(actor, req)
	if err != nil {
		status, payload := transferErrorResponse(err)
		c.AbortWithStatusJSON(status, payload)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func transferErrorResponse(err error) (int, gin.H) {
	var routeErr *custom_error.RouteNotAllowedError
	var vehicleErr *custom_error.NoSingleVehicleError
	var stockErr *custom_error.InsufficientStockError
	var qtyErr *custom_error.InvalidQuantityError
	var notFoundErr *custom_error.NotFoundError

	switch {
	case errors.As(err, &routeErr), errors.As(err, &vehicleErr):
		return http.StatusForbidden, gin.H{"error": "Movement not allowed", "details": err.Error()}
	case errors.As(err, &stockErr):
		return http.StatusConflict, gin.H{"error": "Insufficient stock", "details": err.Error()}
	case errors.As(err, &qtyErr):
		return http.StatusBadRequest, gin.H{"error": "Invalid quantity", "details": err.Error()}
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, gin.H{"error": err.Error()}
	default:
		return http.StatusInternalServerError, gin.H{"error": "Unable to apply movement", "details": err.Error()}
	}
}

func (h *LedgerHandler) CreateAdjustment(c *gin.Context) {
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	actor, err := h.Actors.FromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Transfers.Adjust(actor, req)
	if err != nil {
		status, payload := transferErrorResponse(err)
		c.AbortWithStatusJSON(status, payload)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"movement_id": result.Movement.ID,
		"applied":     result.Applied,
	})
}

func (h *LedgerHandler) GetMovements(c *gin.Context) {
	var itemID, locationID *int

	if raw := c.Query("item_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid item_id"})
			return
		}
		itemID = &id
	}
	if raw := c.Query("location_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid location_id"})
			return
		}
		locationID = &id
	}

	movements, err := h.Movements.GetMovements(itemID, locationID, 200)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Unable to list movements", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, movements)
}
