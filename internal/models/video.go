package models

import (
	"time"

	"github.com/google/uuid"
)

// Video represents one playlist entry of a channel. ExternalRef is the
// opaque identifier handed to the video player unchanged.
type Video struct {
	ID              uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	ChannelID       uuid.UUID `json:"channel_id" gorm:"type:text;not null;column:channel_id" validate:"required"`
	ExternalRef     string    `json:"external_ref" gorm:"type:text;not null;column:external_ref" validate:"required"`
	Title           string    `json:"title" gorm:"type:text;not null;column:title"`
	DurationSeconds int64     `json:"duration_seconds" gorm:"type:integer;not null;default:0;column:duration_seconds"`
	Position        int       `json:"position" gorm:"type:integer;not null;column:position" validate:"gte=0"`
	TimeSlot        *string   `json:"time_slot,omitempty" gorm:"type:text;column:time_slot"`
	CreatedAt       time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewVideo creates a new Video with generated UUID and timestamp.
// A nil timeSlot places the video in the channel's default playlist.
func NewVideo(channelID uuid.UUID, externalRef, title string, durationSeconds int64, position int, timeSlot *string) *Video {
	return &Video{
		ID:              uuid.New(),
		ChannelID:       channelID,
		ExternalRef:     externalRef,
		Title:           title,
		DurationSeconds: durationSeconds,
		Position:        position,
		TimeSlot:        timeSlot,
		CreatedAt:       time.Now().UTC(),
	}
}
