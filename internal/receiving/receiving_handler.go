package receiving

import (
	"errors"
	"net/http"
	"strconv"

	"fieldstock/internal/routing"
	custom_error "fieldstock/pkg/errors"

	"github.com/gin-gonic/gin"
)

type ReceivingHandler struct {
	Service *ReceiveService
	Actors  *routing.ActorLoader
}

func NewReceivingHandler(service *ReceiveService, actors *routing.ActorLoader) *ReceivingHandler {
	return &ReceivingHandler{Service: service, Actors: actors}
}

func (h *ReceivingHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/orders/:id/receive", h.Receive)
}

func (h *ReceivingHandler) Receive(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	var req ReceiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	req.OrderID = orderID

	if len(req.Lines) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Cannot receive an empty line set"})
		return
	}

	actor, err := h.Actors.FromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Service.Receive(actor, req)
	if err != nil {
		receiveErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func receiveErrorResponse(c *gin.Context, err error) {
	var routeErr *custom_error.RouteNotAllowedError
	var vehicleErr *custom_error.NoSingleVehicleError
	var destinationErr *custom_error.InvalidDestinationError
	var notFoundErr *custom_error.NotFoundError
	switch {
	case errors.As(err, &routeErr), errors.As(err, &vehicleErr):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Receiving not allowed", "details": err.Error()})
	case errors.As(err, &destinationErr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid destination", "details": err.Error()})
	case errors.As(err, &notFoundErr):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Unable to receive order", "details": err.Error()})
	}
}
