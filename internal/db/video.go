package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/retrocast/retrocast/internal/models"
	"gorm.io/gorm"
)

// VideoRepository handles database operations for channel videos
type VideoRepository struct {
	db *DB
}

// NewVideoRepository creates a new video repository
func NewVideoRepository(db *DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// ReorderEntry represents a video position update
type ReorderEntry struct {
	ID       uuid.UUID
	Position int
}

// Create inserts a new video into the database
func (r *VideoRepository) Create(ctx context.Context, video *models.Video) error {
	result := r.db.WithContext(ctx).Create(video)
	if result.Error != nil {
		return fmt.Errorf("failed to create video: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a video by its UUID
func (r *VideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	var video models.Video
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&video)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &video, nil
}

// GetByChannelID retrieves all videos of a channel ordered by position.
// Both the default playlist and any slot variant rows are returned; the
// catalog splits them when building a snapshot.
func (r *VideoRepository) GetByChannelID(ctx context.Context, channelID uuid.UUID) ([]*models.Video, error) {
	var videos []*models.Video
	result := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID.String()).
		Order("position ASC").
		Find(&videos)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get videos by channel: %w", MapGormError(result.Error))
	}
	return videos, nil
}

// Delete deletes a video by its UUID
func (r *VideoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.Video{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete video: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Reorder applies new positions to videos of a channel in a single transaction
func (r *VideoRepository) Reorder(ctx context.Context, channelID uuid.UUID, entries []ReorderEntry) error {
	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		for _, e := range entries {
			result := tx.Model(&models.Video{}).
				Where("id = ? AND channel_id = ?", e.ID.String(), channelID.String()).
				Update("position", e.Position)
			if result.Error != nil {
				return MapGormError(result.Error)
			}
			if result.RowsAffected == 0 {
				return ErrNotFound
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reorder videos: %w", err)
	}
	return nil
}
