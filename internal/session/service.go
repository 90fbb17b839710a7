// Package session persists the last-known viewer selections so reconnects
// restore the UI. Playback position is never stored here: the engine
// recomputes it from the epoch and channel state, which is what makes a
// reconnect land on the current schedule point.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/retrocast/retrocast/internal/db"
	"github.com/retrocast/retrocast/internal/logger"
	"github.com/retrocast/retrocast/internal/models"
)

// Service debounces session writes so bursts of UI changes coalesce into
// one row update. Flush bypasses the debounce for the page-unload signal.
type Service struct {
	repos    *db.Repositories
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*models.ViewerSession
	timers  map[string]*time.Timer
}

// NewService creates a session service
func NewService(repos *db.Repositories, debounce time.Duration) *Service {
	return &Service{
		repos:    repos,
		debounce: debounce,
		pending:  make(map[string]*models.ViewerSession),
		timers:   make(map[string]*time.Timer),
	}
}

// Get returns the stored session, or a fresh default when none exists
func (s *Service) Get(ctx context.Context, sessionID string) (*models.ViewerSession, error) {
	s.mu.Lock()
	if pending, ok := s.pending[sessionID]; ok {
		copied := *pending
		s.mu.Unlock()
		return &copied, nil
	}
	s.mu.Unlock()

	sess, err := s.repos.Sessions.Get(ctx, sessionID)
	if err != nil {
		if db.IsNotFound(err) {
			return &models.ViewerSession{
				SessionID: sessionID,
				PowerOn:   true,
				Volume:    50,
			}, nil
		}
		return nil, err
	}
	return sess, nil
}

// Save schedules a debounced write of the session. The latest call wins;
// earlier pending payloads for the same session are replaced.
func (s *Service) Save(sess *models.ViewerSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *sess
	s.pending[sess.SessionID] = &copied

	if timer, ok := s.timers[sess.SessionID]; ok {
		timer.Reset(s.debounce)
		return
	}
	s.timers[sess.SessionID] = time.AfterFunc(s.debounce, func() {
		s.flushOne(sess.SessionID)
	})
}

// Flush writes any pending payload for the session immediately. Used for
// the unload signal, where waiting out the debounce would lose the write.
func (s *Service) Flush(ctx context.Context, sess *models.ViewerSession) error {
	s.mu.Lock()
	delete(s.pending, sess.SessionID)
	if timer, ok := s.timers[sess.SessionID]; ok {
		timer.Stop()
		delete(s.timers, sess.SessionID)
	}
	s.mu.Unlock()

	return s.repos.Sessions.Upsert(ctx, sess)
}

// Shutdown drains all pending writes
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	remaining := make([]*models.ViewerSession, 0, len(s.pending))
	for _, sess := range s.pending {
		remaining = append(remaining, sess)
	}
	s.pending = make(map[string]*models.ViewerSession)
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	for _, sess := range remaining {
		if err := s.repos.Sessions.Upsert(ctx, sess); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("session_id", sess.SessionID).
				Msg("Failed to flush viewer session on shutdown")
		}
	}
}

// flushOne writes the pending payload of one session after the debounce
func (s *Service) flushOne(sessionID string) {
	s.mu.Lock()
	sess, ok := s.pending[sessionID]
	delete(s.pending, sessionID)
	delete(s.timers, sessionID)
	s.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.repos.Sessions.Upsert(ctx, sess); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("session_id", sessionID).
			Msg("Failed to persist viewer session, will retry on next change")
	}
}
