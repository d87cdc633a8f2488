package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khabaroff/apikey-rotator/src/models"
	"github.com/khabaroff/apikey-rotator/src/services"
)

var startTime = time.Now()

// HealthHandler handles health check requests
type HealthHandler struct {
	manager *services.PoolManager
	backend models.StoreBackend
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(manager *services.PoolManager, backend models.StoreBackend) *HealthHandler {
	return &HealthHandler{
		manager: manager,
		backend: backend,
	}
}

// HandleHealth returns health status with store check
func (hh *HealthHandler) HandleHealth(c *gin.Context) {
	start := time.Now()
	err := hh.manager.Health(c.Request.Context())
	storeLatency := time.Since(start)

	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"store":  "unavailable",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"store":         "connected",
		"store_backend": string(hh.backend),
		"store_latency": storeLatency.String(),
		"uptime":        time.Since(startTime).String(),
	})
}

// HandleInfo returns service information
func (hh *HealthHandler) HandleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":       "apikey-rotator",
		"version":       "1.0.0",
		"status":        "running",
		"store_backend": string(hh.backend),
		"uptime":        time.Since(startTime).String(),
	})
}

// HandleReady returns readiness status (for load balancers)
func (hh *HealthHandler) HandleReady(c *gin.Context) {
	if err := hh.manager.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"ready": false,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ready": true,
	})
}
