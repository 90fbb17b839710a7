// Package models defines the persisted entities of the broadcast engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel represents a pseudo-live TV channel entity
type Channel struct {
	ID        uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	Name      string    `json:"name" gorm:"type:text;not null;column:name" validate:"required,min=1,max=255"`
	Icon      *string   `json:"icon,omitempty" gorm:"type:text;column:icon"`
	SlotBounds *string  `json:"slot_bounds,omitempty" gorm:"type:text;column:slot_bounds"`
	CreatedAt time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// NewChannel creates a new Channel with generated UUID and timestamps
func NewChannel(name string, icon *string) *Channel {
	now := time.Now().UTC()
	return &Channel{
		ID:        uuid.New(),
		Name:      name,
		Icon:      icon,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
