// Package state manages the per-channel mutable record layered on top of
// the global timeline: the additive offset and the manual-mode flag.
package state

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/retrocast/retrocast/internal/clock"
	"github.com/retrocast/retrocast/internal/db"
	"github.com/retrocast/retrocast/internal/logger"
	"github.com/retrocast/retrocast/internal/models"
	"github.com/retrocast/retrocast/internal/timeline"
)

// ErrInvalidArgument is returned for out-of-range jump targets
var ErrInvalidArgument = errors.New("invalid argument")

// Service owns every write to channel state rows. It keeps an in-memory
// mirror that stays authoritative for the session when the backend is
// unreachable: reads fall back to it and write failures are logged, not
// surfaced.
type Service struct {
	repos         *db.Repositories
	clk           clock.Clock
	resetDuration time.Duration
	resetSteps    int

	mu     sync.Mutex
	states map[uuid.UUID]*models.ChannelState
	resets map[uuid.UUID]*resetRun
}

// resetRun identifies one gradual reset. The registered run for a channel is
// the only one allowed to write state; a jump or a newer reset replaces the
// registration, so a decay step whose tick raced the cancellation is
// discarded instead of overwriting the newer write.
type resetRun struct {
	cancel context.CancelFunc
}

// NewService creates a channel state service. resetDuration and resetSteps
// control the gradual decay of an offset back to the shared schedule.
func NewService(repos *db.Repositories, clk clock.Clock, resetDuration time.Duration, resetSteps int) *Service {
	return &Service{
		repos:         repos,
		clk:           clk,
		resetDuration: resetDuration,
		resetSteps:    resetSteps,
		states:        make(map[uuid.UUID]*models.ChannelState),
		resets:        make(map[uuid.UUID]*resetRun),
	}
}

// Initialize lazily creates the zero state for a channel. Idempotent; a
// backend failure is logged and the in-memory row still exists.
func (s *Service) Initialize(ctx context.Context, channelID uuid.UUID) {
	s.mu.Lock()
	if _, ok := s.states[channelID]; !ok {
		s.states[channelID] = models.NewChannelState(channelID)
	}
	s.mu.Unlock()

	if err := s.repos.States.Ensure(ctx, channelID); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("channel_id", channelID.String()).
			Msg("Failed to persist initial channel state, keeping in-memory row")
	}
}

// Read returns the state for a channel. The in-memory mirror wins when
// present; otherwise the backend is consulted, and any failure degrades to
// the zero state so position queries always proceed.
func (s *Service) Read(ctx context.Context, channelID uuid.UUID) *models.ChannelState {
	s.mu.Lock()
	if st, ok := s.states[channelID]; ok {
		copied := *st
		s.mu.Unlock()
		return &copied
	}
	s.mu.Unlock()

	st, err := s.repos.States.Get(ctx, channelID)
	if err != nil {
		if !db.IsNotFound(err) {
			logger.Log.Warn().
				Err(err).
				Str("channel_id", channelID.String()).
				Msg("Channel state read failed, using zero state")
		}
		return models.NewChannelState(channelID)
	}

	s.mu.Lock()
	cached := *st
	s.states[channelID] = &cached
	s.mu.Unlock()
	return st
}

// Jump repositions a channel so that the timeline lands on targetIndex at
// targetOffset seconds into it, given the current elapsed time since epoch.
// Sets manual mode and cancels any in-flight gradual reset. Returns
// ErrInvalidArgument for out-of-range targets.
func (s *Service) Jump(ctx context.Context, channelID uuid.UUID, targetIndex int, targetOffset float64, playlist *timeline.Playlist, elapsed float64) (*models.ChannelState, error) {
	if playlist == nil || playlist.Len() == 0 {
		return nil, ErrInvalidArgument
	}
	if targetIndex < 0 || targetIndex >= playlist.Len() {
		return nil, ErrInvalidArgument
	}
	if targetOffset < 0 || targetOffset >= float64(playlist.Item(targetIndex).DurationSeconds) {
		return nil, ErrInvalidArgument
	}

	s.cancelReset(channelID)

	target := float64(playlist.StartOf(targetIndex)) + targetOffset
	offset := reduceModulo(target-elapsed, float64(playlist.TotalDuration()))

	st := s.mutate(channelID, func(st *models.ChannelState) {
		st.OffsetSeconds = offset
		st.ManualMode = true
		st.LastAccessMS = s.clk.Now().UnixMilli()
	})
	s.persist(ctx, st)

	logger.Log.Info().
		Str("channel_id", channelID.String()).
		Int("target_index", targetIndex).
		Float64("offset_seconds", offset).
		Msg("Channel jumped")

	return st, nil
}

// SetManualMode toggles manual mode for a channel
func (s *Service) SetManualMode(ctx context.Context, channelID uuid.UUID, manual bool) *models.ChannelState {
	st := s.mutate(channelID, func(st *models.ChannelState) {
		st.ManualMode = manual
		st.LastAccessMS = s.clk.Now().UnixMilli()
	})
	s.persist(ctx, st)
	return st
}

// GradualReset decays the channel offset toward zero over the configured
// duration, then clears manual mode. Any intervening jump, or another call
// for the same channel, cancels the running decay. Returns immediately.
func (s *Service) GradualReset(channelID uuid.UUID) {
	s.cancelReset(channelID)

	ctx, cancel := context.WithCancel(context.Background())
	run := &resetRun{cancel: cancel}
	s.mu.Lock()
	s.resets[channelID] = run
	initial := float64(0)
	if st, ok := s.states[channelID]; ok {
		initial = st.OffsetSeconds
	}
	s.mu.Unlock()

	go s.runReset(ctx, channelID, run, initial)
}

// Clear removes all state for a channel, resetting it to the shared
// schedule.
func (s *Service) Clear(ctx context.Context, channelID uuid.UUID) {
	s.cancelReset(channelID)

	s.mu.Lock()
	delete(s.states, channelID)
	s.mu.Unlock()

	if err := s.repos.States.Delete(ctx, channelID); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("channel_id", channelID.String()).
			Msg("Failed to delete channel state row")
	}
}

// All returns every known channel state (diagnostic). Backend rows win;
// in-memory rows not yet persisted are appended.
func (s *Service) All(ctx context.Context) []*models.ChannelState {
	rows, err := s.repos.States.List(ctx)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to list channel states, serving in-memory view")
		rows = nil
	}

	seen := make(map[uuid.UUID]bool, len(rows))
	for _, row := range rows {
		seen[row.ChannelID] = true
	}

	s.mu.Lock()
	for id, st := range s.states {
		if !seen[id] {
			copied := *st
			rows = append(rows, &copied)
		}
	}
	s.mu.Unlock()
	return rows
}

// Shutdown cancels all in-flight resets
func (s *Service) Shutdown() {
	s.mu.Lock()
	runs := make([]*resetRun, 0, len(s.resets))
	for _, run := range s.resets {
		runs = append(runs, run)
	}
	s.resets = make(map[uuid.UUID]*resetRun)
	s.mu.Unlock()

	for _, run := range runs {
		run.cancel()
	}
}

// runReset performs the stepwise decay on its own goroutine
func (s *Service) runReset(ctx context.Context, channelID uuid.UUID, run *resetRun, initial float64) {
	step := initial / float64(s.resetSteps)
	interval := s.resetDuration / time.Duration(s.resetSteps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 1; i <= s.resetSteps; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		last := i == s.resetSteps
		st, ok := s.applyStep(channelID, run, func(st *models.ChannelState) {
			if last {
				st.OffsetSeconds = 0
				st.ManualMode = false
			} else {
				st.OffsetSeconds = initial - step*float64(i)
			}
		})
		if !ok {
			return
		}
		s.persist(ctx, st)
	}

	s.mu.Lock()
	if s.resets[channelID] == run {
		delete(s.resets, channelID)
	}
	s.mu.Unlock()

	logger.Log.Debug().
		Str("channel_id", channelID.String()).
		Msg("Gradual offset reset completed")
}

// applyStep applies fn only while run is still the registered reset for the
// channel. A reset step that lost the registration writes nothing.
func (s *Service) applyStep(channelID uuid.UUID, run *resetRun, fn func(*models.ChannelState)) (*models.ChannelState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resets[channelID] != run {
		return nil, false
	}

	st, ok := s.states[channelID]
	if !ok {
		st = models.NewChannelState(channelID)
		s.states[channelID] = st
	}
	fn(st)
	copied := *st
	return &copied, true
}

// mutate applies fn to the in-memory row under lock and returns a copy
func (s *Service) mutate(channelID uuid.UUID, fn func(*models.ChannelState)) *models.ChannelState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[channelID]
	if !ok {
		st = models.NewChannelState(channelID)
		s.states[channelID] = st
	}
	fn(st)
	copied := *st
	return &copied
}

// persist writes the row through the single write path. Transient failures
// are swallowed after the in-memory update: the client view stays
// consistent for the session.
func (s *Service) persist(ctx context.Context, st *models.ChannelState) {
	if err := s.repos.States.Upsert(ctx, st); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("channel_id", st.ChannelID.String()).
			Msg("Channel state write failed, in-memory view remains authoritative")
	}
}

// cancelReset deregisters and cancels the in-flight reset for a channel.
// Deregistration happens under the same lock the decay steps take, so any
// step ticking past this point no longer holds the registration and is
// discarded. Called by Jump, Clear and a superseding GradualReset.
func (s *Service) cancelReset(channelID uuid.UUID) {
	s.mu.Lock()
	run, ok := s.resets[channelID]
	if ok {
		delete(s.resets, channelID)
	}
	s.mu.Unlock()
	if ok {
		run.cancel()
	}
}

// reduceModulo bounds an offset magnitude to [0, total)
func reduceModulo(offset, total float64) float64 {
	if total <= 0 {
		return 0
	}
	reduced := math.Mod(offset, total)
	if reduced < 0 {
		reduced += total
	}
	return reduced
}
