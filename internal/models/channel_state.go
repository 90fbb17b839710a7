package models

import (
	"time"

	"github.com/google/uuid"
)

// ChannelState is the per-channel mutable record applied on top of the
// global timeline. OffsetSeconds shifts the elapsed time for this channel
// only; it is kept reduced modulo the playlist total duration on write.
type ChannelState struct {
	ChannelID     uuid.UUID `json:"channel_id" gorm:"type:text;primaryKey;column:channel_id"`
	OffsetSeconds float64   `json:"offset_seconds" gorm:"type:real;not null;default:0;column:offset_seconds"`
	ManualMode    bool      `json:"manual_mode" gorm:"type:integer;not null;default:0;column:manual_mode"`
	LastAccessMS  int64     `json:"last_access_ms" gorm:"type:integer;not null;default:0;column:last_access_ms"`
}

// TableName overrides the default pluralization
func (ChannelState) TableName() string {
	return "channel_states"
}

// NewChannelState returns the zero state for a channel
func NewChannelState(channelID uuid.UUID) *ChannelState {
	return &ChannelState{
		ChannelID:    channelID,
		LastAccessMS: time.Now().UTC().UnixMilli(),
	}
}
