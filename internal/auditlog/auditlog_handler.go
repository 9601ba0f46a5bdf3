package auditlog

import (
	"net/http"
	"strconv"

	"fieldstock/pkg/roles"
	"fieldstock/pkg/security"

	"github.com/gin-gonic/gin"
)

type AuditLogHandler struct {
	Repository *AuditLogRepository
}

func NewHandler(repo *AuditLogRepository) *AuditLogHandler {
	return &AuditLogHandler{Repository: repo}
}

func (h *AuditLogHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/audit-logs/:resource/:id", security.Authorize(roles.Manager), h.GetResourceLog)
}

func (h *AuditLogHandler) GetResourceLog(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid resource ID"})
		return
	}

	logs, err := h.Repository.GetResourceLog(id, c.Param("resource"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Cannot fetch audit log", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, logs)
}
