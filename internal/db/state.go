package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/retrocast/retrocast/internal/models"
	"gorm.io/gorm/clause"
)

// ChannelStateRepository handles database operations for per-channel state.
// Each row is owned by the state service; nothing else writes it.
type ChannelStateRepository struct {
	db *DB
}

// NewChannelStateRepository creates a new channel state repository
func NewChannelStateRepository(db *DB) *ChannelStateRepository {
	return &ChannelStateRepository{db: db}
}

// Get retrieves the state row for a channel
func (r *ChannelStateRepository) Get(ctx context.Context, channelID uuid.UUID) (*models.ChannelState, error) {
	var state models.ChannelState
	result := r.db.WithContext(ctx).Where("channel_id = ?", channelID.String()).First(&state)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &state, nil
}

// Ensure creates the zero state row for a channel if absent (idempotent)
func (r *ChannelStateRepository) Ensure(ctx context.Context, channelID uuid.UUID) error {
	row := models.NewChannelState(channelID)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if result.Error != nil {
		return fmt.Errorf("failed to ensure channel state: %w", MapGormError(result.Error))
	}
	return nil
}

// Upsert writes the full state row for a channel (last writer wins)
func (r *ChannelStateRepository) Upsert(ctx context.Context, state *models.ChannelState) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"offset_seconds", "manual_mode", "last_access_ms"}),
		}).
		Create(state)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert channel state: %w", MapGormError(result.Error))
	}
	return nil
}

// Delete removes the state row for a channel
func (r *ChannelStateRepository) Delete(ctx context.Context, channelID uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("channel_id = ?", channelID.String()).Delete(&models.ChannelState{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete channel state: %w", MapGormError(result.Error))
	}
	return nil
}

// List retrieves all channel state rows (diagnostic)
func (r *ChannelStateRepository) List(ctx context.Context) ([]*models.ChannelState, error) {
	var states []*models.ChannelState
	result := r.db.WithContext(ctx).Order("channel_id ASC").Find(&states)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list channel states: %w", MapGormError(result.Error))
	}
	return states, nil
}
