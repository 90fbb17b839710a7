package models

import "time"

// Epoch is the single global reference instant from which all elapsed
// times are measured. There is ONE row in this table (ID=1); it is written
// exactly once per deployment and never updated.
type Epoch struct {
	ID        int       `json:"-" gorm:"type:integer;primaryKey;default:1;column:id"`
	EpochMS   int64     `json:"epoch_ms" gorm:"type:integer;not null;column:epoch_ms"`
	CreatedAt time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// TableName overrides the default pluralization
func (Epoch) TableName() string {
	return "epoch"
}

// Instant returns the epoch as a UTC time
func (e *Epoch) Instant() time.Time {
	return time.UnixMilli(e.EpochMS).UTC()
}
