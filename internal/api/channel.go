package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/retrocast/retrocast/internal/db"
	"github.com/retrocast/retrocast/internal/logger"
	"github.com/retrocast/retrocast/internal/models"
	"github.com/retrocast/retrocast/internal/state"
	"github.com/retrocast/retrocast/internal/timeline"
)

// Request/Response DTOs

// CreateChannelRequest represents a request to create a new channel
type CreateChannelRequest struct {
	Name       string                        `json:"name" binding:"required"`
	Icon       *string                       `json:"icon,omitempty"`
	SlotBounds map[string]timeline.HourRange `json:"slot_bounds,omitempty"`
}

// UpdateChannelRequest represents a partial channel metadata update
type UpdateChannelRequest struct {
	Name       *string                       `json:"name,omitempty"`
	Icon       *string                       `json:"icon,omitempty"`
	SlotBounds map[string]timeline.HourRange `json:"slot_bounds,omitempty"`
}

// ChannelListResponse represents a list of channels
type ChannelListResponse struct {
	Channels []*models.Channel `json:"channels"`
}

// AddVideoRequest adds one video to a channel's playlist. A nil Position
// appends at the end; a nil TimeSlot targets the default playlist.
type AddVideoRequest struct {
	ExternalRef     string  `json:"external_ref" binding:"required"`
	Title           string  `json:"title"`
	DurationSeconds int64   `json:"duration_seconds" binding:"gte=0"`
	Position        *int    `json:"position,omitempty" binding:"omitempty,gte=0"`
	TimeSlot        *string `json:"time_slot,omitempty"`
}

// VideoListResponse represents a channel's playlist rows
type VideoListResponse struct {
	Videos        []*models.Video `json:"videos"`
	TotalDuration int64           `json:"total_duration_seconds"`
}

// ReorderVideosRequest applies new positions to a channel's videos
type ReorderVideosRequest struct {
	Items []ReorderVideoItem `json:"items" binding:"required,min=1"`
}

// ReorderVideoItem is one video's new position
type ReorderVideoItem struct {
	VideoID  string `json:"video_id" binding:"required"`
	Position int    `json:"position" binding:"gte=0"`
}

// ChannelHandler handles channel and playlist administration requests
type ChannelHandler struct {
	repos  *db.Repositories
	states *state.Service
}

// NewChannelHandler creates a new channel handler instance
func NewChannelHandler(repos *db.Repositories, states *state.Service) *ChannelHandler {
	return &ChannelHandler{repos: repos, states: states}
}

// encodeSlotBounds validates and serializes slot bound overrides
func encodeSlotBounds(bounds map[string]timeline.HourRange) (*string, error) {
	if len(bounds) == 0 {
		return nil, nil
	}

	for name := range bounds {
		if _, ok := timeline.ParseSlot(name); !ok {
			return nil, fmt.Errorf("unknown time slot %q", name)
		}
	}

	raw, err := json.Marshal(bounds)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}

// CreateChannel handles POST /api/channels
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ch := models.NewChannel(req.Name, req.Icon)
	slotBounds, err := encodeSlotBounds(req.SlotBounds)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_slot_bounds",
			Message: err.Error(),
		})
		return
	}
	ch.SlotBounds = slotBounds

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repos.Channels.Create(ctx, ch); err != nil {
		logger.Log.Error().
			Err(err).
			Str("name", req.Name).
			Msg("Failed to create channel")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create channel",
		})
		return
	}

	// New channels start on the shared schedule with a zero state row.
	h.states.Initialize(ctx, ch.ID)

	logger.Log.Info().
		Str("channel_id", ch.ID.String()).
		Str("name", ch.Name).
		Msg("Channel created successfully")

	c.JSON(http.StatusCreated, ch)
}

// ListChannels handles GET /api/channels
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	channels, err := h.repos.Channels.List(ctx)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to list channels")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve channel list",
		})
		return
	}

	c.JSON(http.StatusOK, ChannelListResponse{Channels: channels})
}

// GetChannel handles GET /api/channels/:id
func (h *ChannelHandler) GetChannel(c *gin.Context) {
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

	ch, err := h.repos.Channels.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Channel not found",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to get channel by ID")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve channel",
		})
		return
	}

	c.JSON(http.StatusOK, ch)
}

// UpdateChannel handles PUT /api/channels/:id
func (h *ChannelHandler) UpdateChannel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid channel ID format",
		})
		return
	}

	var req UpdateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	ch, err := h.repos.Channels.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Channel not found",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to get channel for update")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve channel",
		})
		return
	}

	if req.Name != nil {
		ch.Name = *req.Name
	}
	if req.Icon != nil {
		ch.Icon = req.Icon
	}
	if req.SlotBounds != nil {
		slotBounds, err := encodeSlotBounds(req.SlotBounds)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_slot_bounds",
				Message: err.Error(),
			})
			return
		}
		ch.SlotBounds = slotBounds
	}

	if err := h.repos.Channels.Update(ctx, ch); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to update channel")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "update_failed",
			Message: "Failed to update channel",
		})
		return
	}

	c.JSON(http.StatusOK, ch)
}

// DeleteChannel handles DELETE /api/channels/:id
func (h *ChannelHandler) DeleteChannel(c *gin.Context) {
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

	if err := h.repos.Channels.Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Channel not found",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to delete channel")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "delete_failed",
			Message: "Failed to delete channel",
		})
		return
	}

	logger.Log.Info().
		Str("channel_id", id.String()).
		Msg("Channel deleted successfully")

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Channel deleted successfully",
	})
}

// ListVideos handles GET /api/channels/:id/videos
func (h *ChannelHandler) ListVideos(c *gin.Context) {
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

	if _, err := h.repos.Channels.GetByID(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Channel not found",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to verify channel existence")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve channel",
		})
		return
	}

	videos, err := h.repos.Videos.GetByChannelID(ctx, id)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to list channel videos")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve videos",
		})
		return
	}

	var total int64
	for _, v := range videos {
		if v.TimeSlot == nil {
			total += v.DurationSeconds
		}
	}

	c.JSON(http.StatusOK, VideoListResponse{
		Videos:        videos,
		TotalDuration: total,
	})
}

// AddVideo handles POST /api/channels/:id/videos
func (h *ChannelHandler) AddVideo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid channel ID format",
		})
		return
	}

	var req AddVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	if req.TimeSlot != nil {
		if _, ok := timeline.ParseSlot(*req.TimeSlot); !ok {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_time_slot",
				Message: fmt.Sprintf("Unknown time slot %q", *req.TimeSlot),
			})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.repos.Channels.GetByID(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Channel not found",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to verify channel existence")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve channel",
		})
		return
	}

	position := 0
	if req.Position != nil {
		position = *req.Position
	} else {
		existing, err := h.repos.Videos.GetByChannelID(ctx, id)
		if err != nil {
			logger.Log.Error().
				Err(err).
				Str("channel_id", id.String()).
				Msg("Failed to determine append position")

			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "query_failed",
				Message: "Failed to retrieve videos",
			})
			return
		}
		position = len(existing)
	}

	video := models.NewVideo(id, req.ExternalRef, req.Title, req.DurationSeconds, position, req.TimeSlot)
	if err := h.repos.Videos.Create(ctx, video); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Str("external_ref", req.ExternalRef).
			Msg("Failed to add video")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to add video",
		})
		return
	}

	logger.Log.Info().
		Str("channel_id", id.String()).
		Str("video_id", video.ID.String()).
		Int("position", position).
		Msg("Video added to channel")

	c.JSON(http.StatusCreated, video)
}

// RemoveVideo handles DELETE /api/channels/:id/videos/:video_id
func (h *ChannelHandler) RemoveVideo(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid channel ID format",
		})
		return
	}

	videoID, err := uuid.Parse(c.Param("video_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_video_id",
			Message: "Invalid video ID format",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repos.Videos.Delete(ctx, videoID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Video not found",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Str("video_id", videoID.String()).
			Msg("Failed to remove video")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "delete_failed",
			Message: "Failed to remove video",
		})
		return
	}

	logger.Log.Info().
		Str("channel_id", channelID.String()).
		Str("video_id", videoID.String()).
		Msg("Video removed from channel")

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Video removed successfully",
	})
}

// ReorderVideos handles PUT /api/channels/:id/videos/reorder
func (h *ChannelHandler) ReorderVideos(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid channel ID format",
		})
		return
	}

	var req ReorderVideosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	entries := make([]db.ReorderEntry, len(req.Items))
	for i, item := range req.Items {
		videoID, err := uuid.Parse(item.VideoID)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_video_id",
				Message: fmt.Sprintf("Invalid video ID format at index %d", i),
			})
			return
		}
		entries[i] = db.ReorderEntry{ID: videoID, Position: item.Position}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repos.Videos.Reorder(ctx, channelID, entries); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "One or more videos not found in this channel",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Int("item_count", len(entries)).
			Msg("Failed to reorder videos")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "reorder_failed",
			Message: "Failed to reorder videos",
		})
		return
	}

	logger.Log.Info().
		Str("channel_id", channelID.String()).
		Int("item_count", len(entries)).
		Msg("Channel videos reordered")

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Videos reordered successfully",
	})
}

// SetupChannelRoutes registers channel administration routes
func SetupChannelRoutes(apiGroup *gin.RouterGroup, repos *db.Repositories, states *state.Service) {
	handler := NewChannelHandler(repos, states)

	apiGroup.POST("/channels", handler.CreateChannel)
	apiGroup.GET("/channels", handler.ListChannels)
	apiGroup.GET("/channels/:id", handler.GetChannel)
	apiGroup.PUT("/channels/:id", handler.UpdateChannel)
	apiGroup.DELETE("/channels/:id", handler.DeleteChannel)

	apiGroup.GET("/channels/:id/videos", handler.ListVideos)
	apiGroup.POST("/channels/:id/videos", handler.AddVideo)
	apiGroup.DELETE("/channels/:id/videos/:video_id", handler.RemoveVideo)
	apiGroup.PUT("/channels/:id/videos/reorder", handler.ReorderVideos)
}
