package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/retrocast/retrocast/internal/manifest"
)

// ManifestHandler serves channel manifests for client-side prediction
type ManifestHandler struct {
	manifests *manifest.Service
}

// NewManifestHandler creates a new manifest handler instance
func NewManifestHandler(manifests *manifest.Service) *ManifestHandler {
	return &ManifestHandler{manifests: manifests}
}

// GetManifest handles GET /api/channels/:id/manifest
func (h *ManifestHandler) GetManifest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid channel ID format",
		})
		return
	}

	tz, ok := parseTimezone(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	m, err := h.manifests.Build(ctx, id, tz)
	if err != nil {
		respondPositionError(c, id, err, "build manifest")
		return
	}

	c.JSON(http.StatusOK, m)
}

// SetupManifestRoutes registers manifest routes
func SetupManifestRoutes(apiGroup *gin.RouterGroup, manifests *manifest.Service) {
	handler := NewManifestHandler(manifests)
	apiGroup.GET("/channels/:id/manifest", handler.GetManifest)
}
