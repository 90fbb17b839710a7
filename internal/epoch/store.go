// Package epoch owns the single global reference instant from which every
// channel timeline is measured.
package epoch

import (
	"context"
	"fmt"
	"time"

	"github.com/retrocast/retrocast/internal/clock"
	"github.com/retrocast/retrocast/internal/db"
	"github.com/retrocast/retrocast/internal/logger"
)

// Store mediates access to the persisted epoch. The epoch is created once
// per deployment and never changed; resetting the timeline means a new
// deployment identity, not a new epoch value.
type Store struct {
	repo *db.EpochRepository
	clk  clock.Clock
}

// NewStore creates an epoch store. clk supplies the candidate instant for
// first-time initialization.
func NewStore(repo *db.EpochRepository, clk clock.Clock) *Store {
	return &Store{repo: repo, clk: clk}
}

// GetOrInit returns the global epoch, initializing it on the first call of
// the deployment's lifetime. Safe under concurrent first-callers: the
// repository's create-if-absent insert guarantees at most one value is ever
// observed. Backend failures surface as transient errors; callers may retry.
func (s *Store) GetOrInit(ctx context.Context) (time.Time, error) {
	row, err := s.repo.GetOrInit(ctx, s.clk.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get or init epoch: %w", err)
	}

	logger.Log.Debug().
		Int64("epoch_ms", row.EpochMS).
		Msg("Epoch resolved")

	return row.Instant(), nil
}

// Get returns the stored epoch or db.ErrNotFound when the deployment has
// never initialized one.
func (s *Store) Get(ctx context.Context) (time.Time, error) {
	row, err := s.repo.Get(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return row.Instant(), nil
}
