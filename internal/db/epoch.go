package db

import (
	"context"
	"fmt"
	"time"

	"github.com/retrocast/retrocast/internal/models"
	"gorm.io/gorm/clause"
)

// EpochRepository handles database operations for the global epoch.
// Epoch is a singleton table with a single immutable row.
type EpochRepository struct {
	db *DB
}

// NewEpochRepository creates a new epoch repository
func NewEpochRepository(db *DB) *EpochRepository {
	return &EpochRepository{db: db}
}

// Get retrieves the epoch row. Returns ErrNotFound when the deployment
// has never initialized an epoch.
func (r *EpochRepository) Get(ctx context.Context) (*models.Epoch, error) {
	var epoch models.Epoch
	result := r.db.WithContext(ctx).Where("id = ?", 1).First(&epoch)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &epoch, nil
}

// GetOrInit returns the stored epoch, creating it from candidate when the
// table is empty. The insert uses ON CONFLICT DO NOTHING on the singleton
// primary key, so concurrent first-callers race safely: exactly one insert
// wins and every caller reads back the winner's value. The row is never
// updated once present.
func (r *EpochRepository) GetOrInit(ctx context.Context, candidate time.Time) (*models.Epoch, error) {
	row := &models.Epoch{
		ID:        1,
		EpochMS:   candidate.UTC().UnixMilli(),
		CreatedAt: time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to initialize epoch: %w", MapGormError(result.Error))
	}

	// Re-read unconditionally: a racing caller may have won the insert.
	return r.Get(ctx)
}
