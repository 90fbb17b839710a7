package models

import "time"

// ViewerSession stores the last-known user selections so a reconnect can
// restore the UI. Playback position is deliberately absent: on reconnect
// the engine derives position from the epoch and channel state, so time
// keeps moving while the viewer is gone.
type ViewerSession struct {
	SessionID     string    `json:"session_id" gorm:"type:text;primaryKey;column:session_id"`
	PowerOn       bool      `json:"power_on" gorm:"type:integer;not null;default:1;column:power_on"`
	Volume        int       `json:"volume" gorm:"type:integer;not null;default:50;column:volume" validate:"gte=0,lte=100"`
	ChannelFilter string    `json:"channel_filter" gorm:"type:text;not null;default:'';column:channel_filter"`
	ActiveIndex   int       `json:"active_index" gorm:"type:integer;not null;default:0;column:active_index"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// TableName overrides the default pluralization
func (ViewerSession) TableName() string {
	return "viewer_sessions"
}
