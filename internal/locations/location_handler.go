package locations

import (
	"errors"
	"net/http"
	"strconv"

	custom_error "fieldstock/pkg/errors"
	"fieldstock/pkg/roles"
	"fieldstock/pkg/security"

	"github.com/gin-gonic/gin"
)

type LocationHandler struct {
	Service    *LocationService
	Repository *LocationRepository
}

func NewLocationHandler(service *LocationService, repo *LocationRepository) *LocationHandler {
	return &LocationHandler{Service: service, Repository: repo}
}

func (h *LocationHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/locations", security.Authorize(roles.Admin), h.CreateLocation)
	router.GET("/locations", h.GetLocations)
	router.GET("/locations/topology", h.ValidateTopology)
	router.GET("/locations/:id/stock", h.GetLocationStock)
	router.PATCH("/locations/:id/deactivate", security.Authorize(roles.Admin), h.DeactivateLocation)
}

func (h *LocationHandler) GetLocations(c *gin.Context) {
	locations, err := h.Repository.GetLocations()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Could not list locations", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, locations)
}

func (h *LocationHandler) CreateLocation(c *gin.Context) {
	var req CreateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	location, err := h.Service.CreateLocation(req)

	var duplicateErr *custom_error.DuplicateCodeError
	var singletonErr *custom_error.SingletonViolationError
	switch {
	case errors.As(err, &duplicateErr):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Location code already in use", "details": err.Error()})
		return
	case errors.As(err, &singletonErr):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "System location already exists", "details": err.Error()})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Could not create location", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, location)
}

func (h *LocationHandler) DeactivateLocation(c *gin.Context) {
	locationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid location id"})
		return
	}

	err = h.Service.Deactivate(locationID)

	var notFoundErr *custom_error.NotFoundError
	if errors.As(err, &notFoundErr) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	} else if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Could not deactivate location", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Location deactivated"})
}

func (h *LocationHandler) GetLocationStock(c *gin.Context) {
	locationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid location id"})
		return
	}

	stock, err := h.Repository.GetLocationStock(locationID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Could not get location stock", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stock)
}

func (h *LocationHandler) ValidateTopology(c *gin.Context) {
	report, err := h.Service.ValidateTopology()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Could not validate topology", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}
