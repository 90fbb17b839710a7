package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/retrocast/retrocast/internal/logger"
	"github.com/retrocast/retrocast/internal/session"
)

// UpdateSessionRequest carries the UI selections to persist. Absent fields
// keep their stored values. Flush bypasses the write debounce for
// page-unload saves.
type UpdateSessionRequest struct {
	PowerOn       *bool   `json:"power_on,omitempty"`
	Volume        *int    `json:"volume,omitempty" binding:"omitempty,gte=0,lte=100"`
	ChannelFilter *string `json:"channel_filter,omitempty"`
	ActiveIndex   *int    `json:"active_index,omitempty" binding:"omitempty,gte=0"`
	Flush         bool    `json:"flush,omitempty"`
}

// SessionHandler handles viewer session persistence requests
type SessionHandler struct {
	sessions *session.Service
}

// NewSessionHandler creates a new session handler instance
func NewSessionHandler(sessions *session.Service) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// GetSession handles GET /api/sessions/:session_id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	sess, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("session_id", sessionID).
			Msg("Failed to load viewer session")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve session",
		})
		return
	}

	c.JSON(http.StatusOK, sess)
}

// UpdateSession handles PUT /api/sessions/:session_id
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	sess, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("session_id", sessionID).
			Msg("Failed to load viewer session for update")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve session",
		})
		return
	}

	if req.PowerOn != nil {
		sess.PowerOn = *req.PowerOn
	}
	if req.Volume != nil {
		sess.Volume = *req.Volume
	}
	if req.ChannelFilter != nil {
		sess.ChannelFilter = *req.ChannelFilter
	}
	if req.ActiveIndex != nil {
		sess.ActiveIndex = *req.ActiveIndex
	}

	if req.Flush {
		if err := h.sessions.Flush(ctx, sess); err != nil {
			logger.Log.Error().
				Err(err).
				Str("session_id", sessionID).
				Msg("Failed to flush viewer session")

			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "save_failed",
				Message: "Failed to persist session",
			})
			return
		}
	} else {
		h.sessions.Save(sess)
	}

	c.JSON(http.StatusOK, sess)
}

// SetupSessionRoutes registers viewer session routes
func SetupSessionRoutes(apiGroup *gin.RouterGroup, sessions *session.Service) {
	handler := NewSessionHandler(sessions)

	apiGroup.GET("/sessions/:session_id", handler.GetSession)
	apiGroup.PUT("/sessions/:session_id", handler.UpdateSession)
}
