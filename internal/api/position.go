package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/retrocast/retrocast/internal/db"
	"github.com/retrocast/retrocast/internal/logger"
	"github.com/retrocast/retrocast/internal/position"
	"github.com/retrocast/retrocast/internal/state"
)

// Request/Response DTOs

// BatchPositionsRequest asks for the positions of several channels at once
type BatchPositionsRequest struct {
	ChannelIDs []string `json:"channel_ids" binding:"required,min=1"`
	Timezone   string   `json:"tz,omitempty"`
}

// BatchPositionsResponse maps channel IDs to their positions. Unknown
// channels are silently absent.
type BatchPositionsResponse struct {
	Positions map[string]*position.Result `json:"positions"`
}

// JumpRequest repositions a channel onto a specific video and offset
type JumpRequest struct {
	VideoIndex    int     `json:"video_index" binding:"gte=0"`
	OffsetSeconds float64 `json:"offset_seconds" binding:"gte=0"`
}

// StateListResponse lists the per-channel state records
type StateListResponse struct {
	States []StateResponse `json:"states"`
}

// StateResponse is one channel's mutable state
type StateResponse struct {
	ChannelID     string  `json:"channel_id"`
	OffsetSeconds float64 `json:"offset_seconds"`
	ManualMode    bool    `json:"manual_mode"`
	LastAccessMS  int64   `json:"last_access_ms"`
}

// PositionHandler handles position, timeline, and channel-state requests
type PositionHandler struct {
	positions *position.Service
	states    *state.Service
}

// NewPositionHandler creates a new position handler instance
func NewPositionHandler(positions *position.Service, states *state.Service) *PositionHandler {
	return &PositionHandler{positions: positions, states: states}
}

// respondPositionError maps service errors onto HTTP statuses. Unknown
// channels are 404, a persistently unreachable epoch backend is 503 so
// clients keep their local prediction running and retry.
func respondPositionError(c *gin.Context, channelID uuid.UUID, err error, action string) {
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Channel not found",
		})
		return
	}

	logger.Log.Error().
		Err(err).
		Str("channel_id", channelID.String()).
		Msg("Failed to " + action)

	if db.IsTransient(err) {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "backend_unavailable",
			Message: "Position backend temporarily unavailable, retry shortly",
		})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "query_failed",
		Message: "Failed to " + action,
	})
}

// GetPosition handles GET /api/channels/:id/position
func (h *PositionHandler) GetPosition(c *gin.Context) {
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

	res, err := h.positions.Current(ctx, id, tz)
	if err != nil {
		respondPositionError(c, id, err, "compute position")
		return
	}

	c.JSON(http.StatusOK, res)
}

// BatchPositions handles POST /api/positions
func (h *PositionHandler) BatchPositions(c *gin.Context) {
	var req BatchPositionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	tz := time.UTC
	if req.Timezone != "" {
		loc, err := time.LoadLocation(req.Timezone)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_timezone",
				Message: "Unknown timezone: " + req.Timezone,
			})
			return
		}
		tz = loc
	}

	ids := make([]uuid.UUID, 0, len(req.ChannelIDs))
	for _, idStr := range req.ChannelIDs {
		id, err := uuid.Parse(idStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_id",
				Message: "Invalid channel ID format: " + idStr,
			})
			return
		}
		ids = append(ids, id)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.positions.Batch(ctx, ids, tz)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Int("channel_count", len(ids)).
			Msg("Batch position query failed")

		if db.IsTransient(err) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "backend_unavailable",
				Message: "Position backend temporarily unavailable, retry shortly",
			})
			return
		}

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to compute batch positions",
		})
		return
	}

	out := make(map[string]*position.Result, len(results))
	for id, res := range results {
		out[id.String()] = res
	}

	c.JSON(http.StatusOK, BatchPositionsResponse{Positions: out})
}

// GetTimeline handles GET /api/channels/:id/timeline
func (h *PositionHandler) GetTimeline(c *gin.Context) {
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

	info, err := h.positions.Timeline(ctx, id, tz)
	if err != nil {
		respondPositionError(c, id, err, "compute timeline")
		return
	}

	c.JSON(http.StatusOK, info)
}

// Jump handles POST /api/channels/:id/jump
func (h *PositionHandler) Jump(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid channel ID format",
		})
		return
	}

	var req JumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	tz, ok := parseTimezone(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	res, err := h.positions.Jump(ctx, id, req.VideoIndex, req.OffsetSeconds, tz)
	if err != nil {
		if errors.Is(err, state.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_target",
				Message: "Jump target is outside the channel's playlist",
			})
			return
		}
		respondPositionError(c, id, err, "jump channel")
		return
	}

	logger.Log.Info().
		Str("channel_id", id.String()).
		Int("video_index", req.VideoIndex).
		Float64("offset_seconds", req.OffsetSeconds).
		Msg("Channel jumped")

	c.JSON(http.StatusOK, res)
}

// ClearState handles POST /api/channels/:id/state/clear
func (h *PositionHandler) ClearState(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid channel ID format",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	h.positions.Clear(ctx, id)

	logger.Log.Info().
		Str("channel_id", id.String()).
		Msg("Channel state cleared")

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Channel state cleared",
	})
}

// ListStates handles GET /api/states
func (h *PositionHandler) ListStates(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	states := h.states.All(ctx)

	out := make([]StateResponse, len(states))
	for i, st := range states {
		out[i] = StateResponse{
			ChannelID:     st.ChannelID.String(),
			OffsetSeconds: st.OffsetSeconds,
			ManualMode:    st.ManualMode,
			LastAccessMS:  st.LastAccessMS,
		}
	}

	c.JSON(http.StatusOK, StateListResponse{States: out})
}

// SetupPositionRoutes registers position and state routes
func SetupPositionRoutes(apiGroup *gin.RouterGroup, positions *position.Service, states *state.Service) {
	handler := NewPositionHandler(positions, states)

	apiGroup.GET("/channels/:id/position", handler.GetPosition)
	apiGroup.GET("/channels/:id/timeline", handler.GetTimeline)
	apiGroup.POST("/channels/:id/jump", handler.Jump)
	apiGroup.POST("/channels/:id/state/clear", handler.ClearState)
	apiGroup.POST("/positions", handler.BatchPositions)
	apiGroup.GET("/states", handler.ListStates)
}
