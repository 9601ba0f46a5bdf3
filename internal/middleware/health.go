package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const healthVersion = "1.0.0"

type HealthStatus struct {
	Status      string    `json:"status"`
	LastChecked time.Time `json:"last_checked"`
	Uptime      string    `json:"uptime"`
	Version     string    `json:"version"`
}

var (
	healthMutex      sync.Mutex
	startTime        = time.Now()
	lastResponse     []byte
	lastResponseTime time.Time
	cacheDuration    = 5 * time.Second
)

// HealthCheckMiddleware serves a health snapshot, cached for a few seconds.
func HealthCheckMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		healthMutex.Lock()

		if time.Since(lastResponseTime) < cacheDuration && lastResponse != nil {
			cached := lastResponse
			healthMutex.Unlock()
			c.Data(http.StatusOK, "application/json", cached)
			return
		}

		status := HealthStatus{
			Status:      "ok",
			LastChecked: time.Now(),
			Uptime:      time.Since(startTime).String(),
			Version:     healthVersion,
		}

		if response, err := json.Marshal(status); err == nil {
			lastResponse = response
			lastResponseTime = time.Now()
		}
		healthMutex.Unlock()

		c.JSON(http.StatusOK, status)
	}
}
