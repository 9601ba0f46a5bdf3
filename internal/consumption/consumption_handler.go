package consumption

import (
	"errors"
	"net/http"
	"strconv"

	"fieldstock/internal/routing"
	custom_error "fieldstock/pkg/errors"

	"github.com/gin-gonic/gin"
)

type ConsumptionHandler struct {
	Service *ConsumptionService
	Actors  *routing.ActorLoader
}

func NewConsumptionHandler(service *ConsumptionService, actors *routing.ActorLoader) *ConsumptionHandler {
	return &ConsumptionHandler{Service: service, Actors: actors}
}

func (h *ConsumptionHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/consumptions/:id/consume", h.Consume)
}

func (h *ConsumptionHandler) Consume(c *gin.Context) {
	consumptionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid consumption id"})
		return
	}

	actor, err := h.Actors.FromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Service.Consume(actor, consumptionID)
	if err != nil {
		var allocationErr *custom_error.InsufficientAllocationError
		var notFoundErr *custom_error.NotFoundError
		switch {
		case errors.As(err, &allocationErr):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Insufficient allocation", "details": err.Error()})
		case errors.As(err, &notFoundErr):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Unable to consume", "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
