package db

import (
	"context"
	"fmt"
	"time"

	"github.com/retrocast/retrocast/internal/models"
	"gorm.io/gorm/clause"
)

// SessionRepository handles database operations for viewer sessions
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Get retrieves a viewer session by its ID
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*models.ViewerSession, error) {
	var session models.ViewerSession
	result := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &session, nil
}

// Upsert writes a viewer session row (last writer wins)
func (r *SessionRepository) Upsert(ctx context.Context, session *models.ViewerSession) error {
	session.UpdatedAt = time.Now().UTC()
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"power_on", "volume", "channel_filter", "active_index", "updated_at"}),
		}).
		Create(session)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert viewer session: %w", MapGormError(result.Error))
	}
	return nil
}
