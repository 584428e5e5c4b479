package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ajharbinger/rei-deal-drop/internal/database"
	"github.com/ajharbinger/rei-deal-drop/internal/propertydata"
	"github.com/ajharbinger/rei-deal-drop/internal/services"
)

// SystemHealthChecker reports database reachability
type SystemHealthChecker interface {
	HealthCheck() error
}

// ProviderHealthReporter is implemented by property data clients that track call health
type ProviderHealthReporter interface {
	Health() propertydata.HealthStatus
}

// SystemHandler serves health and admin endpoints
type SystemHandler struct {
	db       SystemHealthChecker
	pipeline *services.RescorePipeline
	config   services.PipelineConfig
	provider ProviderHealthReporter
}

// NewSystemHandler creates a new system handler. provider may be nil.
func NewSystemHandler(db SystemHealthChecker, pipeline *services.RescorePipeline, config services.PipelineConfig, provider ProviderHealthReporter) *SystemHandler {
	return &SystemHandler{db: db, pipeline: pipeline, config: config, provider: provider}
}

// Health reports whether the service and its database are reachable
func (h *SystemHandler) Health(c *gin.Context) {
	if err := h.db.HealthCheck(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"healthy":   false,
			"database":  "unreachable",
			"timestamp": now(),
		})
		return
	}

	response := gin.H{
		"healthy":   true,
		"database":  "ok",
		"timestamp": now(),
	}
	if db, ok := h.db.(*database.DB); ok {
		stats := db.GetStats()
		response["dialect"] = db.Dialect
		response["open_connections"] = stats.OpenConnections
	}
	// reported only; enrichment failures never mark the service unhealthy
	if h.provider != nil {
		response["property_data"] = h.provider.Health()
	}
	c.JSON(http.StatusOK, response)
}

// RunRescore runs one rescore cycle synchronously
func (h *SystemHandler) RunRescore(c *gin.Context) {
	stats, err := h.pipeline.RunOnce(c.Request.Context(), h.config)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Rescore failed: " + err.Error(),
			"stats": stats,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Rescore completed",
		"stats":     stats,
		"summary":   stats.Summary(),
		"timestamp": now(),
	})
}

// RescoreStatus reports the pipeline's state
func (h *SystemHandler) RescoreStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    h.pipeline.Status(),
		"config":    h.config,
		"timestamp": now(),
	})
}
