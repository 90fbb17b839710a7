package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/retrocast/retrocast/internal/clock"
	"github.com/retrocast/retrocast/internal/db"
)

// HealthResponse represents the response from the health check endpoint.
// ServerTimeMS doubles as a cheap clock-sync sample for clients.
type HealthResponse struct {
	Status       string                 `json:"status"`
	Database     string                 `json:"database"`
	ServerTimeMS int64                  `json:"server_time_ms"`
	Time         string                 `json:"time"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db  *db.DB
	clk clock.Clock
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(database *db.DB, clk clock.Clock) *HealthHandler {
	return &HealthHandler{db: database, clk: clk}
}

// Check handles the health check endpoint
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	now := h.clk.Now()
	response := HealthResponse{
		Status:       "ok",
		ServerTimeMS: now.UnixMilli(),
		Time:         now.Format(time.RFC3339),
		Details:      make(map[string]interface{}),
	}

	// Check database connectivity
	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Database = "healthy"
	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database *db.DB, clk clock.Clock) {
	handler := NewHealthHandler(database, clk)
	apiGroup.GET("/health", handler.Check)
}
