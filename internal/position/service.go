// Package position answers "where is this channel right now?" by combining
// the catalog snapshot, the global epoch, and per-channel state.
package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/retrocast/retrocast/internal/catalog"
	"github.com/retrocast/retrocast/internal/clock"
	"github.com/retrocast/retrocast/internal/db"
	"github.com/retrocast/retrocast/internal/epoch"
	"github.com/retrocast/retrocast/internal/logger"
	"github.com/retrocast/retrocast/internal/state"
	"github.com/retrocast/retrocast/internal/timeline"
)

// epochRetryBackoff spaces the single retry of a failed epoch read
const epochRetryBackoff = 100 * time.Millisecond

// SlotInfo describes the time-slot context of a position
type SlotInfo struct {
	Current          timeline.Slot `json:"current_slot"`
	Next             timeline.Slot `json:"next_slot"`
	SecondsUntilNext int64         `json:"seconds_until_next_slot"`
	IsTransitioning  bool          `json:"is_transitioning"`
}

// Result is a fully augmented position answer
type Result struct {
	ChannelID    uuid.UUID         `json:"channel_id"`
	ChannelName  string            `json:"channel_name"`
	Position     timeline.Position `json:"position"`
	Slot         SlotInfo          `json:"slot"`
	Item         *timeline.Item    `json:"item,omitempty"`
	NextItem     *timeline.Item    `json:"next_item,omitempty"`
	EpochMS      int64             `json:"epoch_ms"`
	ServerTimeMS int64             `json:"server_time_ms"`
}

// TimelineInfo summarizes the raw timeline arithmetic for a channel
type TimelineInfo struct {
	EpochMS              int64   `json:"epoch_ms"`
	TotalDuration        int64   `json:"total_duration"`
	Elapsed              float64 `json:"elapsed_seconds"`
	CyclePosition        float64 `json:"cycle_position_seconds"`
	CycleCount           int64   `json:"cycle_count"`
	SecondsUntilNextSlot int64   `json:"seconds_until_next_slot"`
	ServerTimeMS         int64   `json:"server_time_ms"`
}

// Service computes channel positions with a short-TTL cache in front of the
// catalog, epoch, and state reads. The calculator is pure, so a cache
// stampede recomputes redundantly but never inconsistently.
type Service struct {
	catalog *catalog.Service
	epochs  *epoch.Store
	states  *state.Service
	clk     clock.Clock
	cache   *Cache

	transitionWarning time.Duration

	// lastSlot tracks the most recently observed slot per channel so a
	// transition can clear manual mode and realign the viewer.
	mu       sync.Mutex
	lastSlot map[uuid.UUID]timeline.Slot
}

// NewService creates a position service
func NewService(catalogSvc *catalog.Service, epochs *epoch.Store, states *state.Service, clk clock.Clock, cacheTTL, transitionWarning time.Duration) *Service {
	return &Service{
		catalog:           catalogSvc,
		epochs:            epochs,
		states:            states,
		clk:               clk,
		cache:             NewCache(cacheTTL),
		transitionWarning: transitionWarning,
		lastSlot:          make(map[uuid.UUID]timeline.Slot),
	}
}

// Current returns the position of one channel in the given timezone.
// Returns db.ErrNotFound for unknown channels and db.ErrTransient when the
// epoch backend stays unreachable across the retry.
func (s *Service) Current(ctx context.Context, channelID uuid.UUID, tz *time.Location) (*Result, error) {
	snap, err := s.catalog.Snapshot(ctx, channelID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	localNow := now.In(tz)
	slot := timeline.ActiveSlot(localNow, snap.Bounds)

	s.observeSlot(ctx, channelID, slot, snap)

	if cached, ok := s.cache.Get(channelID, tz.String()); ok {
		return s.attach(snap, cached, now), nil
	}

	epochAt, err := s.resolveEpoch(ctx)
	if err != nil {
		return nil, err
	}

	st := s.states.Read(ctx, channelID)
	playlist := snap.PlaylistFor(slot)
	pos := timeline.Compute(playlist, epochAt, now, st.OffsetSeconds)

	nextSlot, untilNext := timeline.NextTransition(localNow, snap.Bounds)
	entry := &Entry{
		ChannelName: snap.Channel.Name,
		Position:    pos,
		Slot: SlotInfo{
			Current:          slot,
			Next:             nextSlot,
			SecondsUntilNext: untilNext,
			IsTransitioning:  untilNext < int64(s.transitionWarning.Seconds()),
		},
		EpochMS: epochAt.UnixMilli(),
	}

	// Degenerate playlists stay out of the cache so a freshly filled
	// channel is picked up immediately.
	if pos.Flag == "" {
		s.cache.Put(channelID, tz.String(), entry)
	}

	return s.attach(snap, entry, now), nil
}

// Batch returns positions for several channels at once. Unknown channels
// are skipped; backend transience fails the whole batch.
func (s *Service) Batch(ctx context.Context, channelIDs []uuid.UUID, tz *time.Location) (map[uuid.UUID]*Result, error) {
	results := make(map[uuid.UUID]*Result, len(channelIDs))
	for _, id := range channelIDs {
		res, err := s.Current(ctx, id, tz)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				logger.Log.Debug().
					Str("channel_id", id.String()).
					Msg("Skipping unknown channel in batch position query")
				continue
			}
			return nil, fmt.Errorf("batch position failed for channel %s: %w", id, err)
		}
		results[id] = res
	}
	return results, nil
}

// Timeline returns the raw timeline arithmetic for a channel
func (s *Service) Timeline(ctx context.Context, channelID uuid.UUID, tz *time.Location) (*TimelineInfo, error) {
	snap, err := s.catalog.Snapshot(ctx, channelID)
	if err != nil {
		return nil, err
	}

	epochAt, err := s.resolveEpoch(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	localNow := now.In(tz)
	slot := timeline.ActiveSlot(localNow, snap.Bounds)
	playlist := snap.PlaylistFor(slot)

	st := s.states.Read(ctx, channelID)
	pos := timeline.Compute(playlist, epochAt, now, st.OffsetSeconds)
	_, untilNext := timeline.NextTransition(localNow, snap.Bounds)

	return &TimelineInfo{
		EpochMS:              epochAt.UnixMilli(),
		TotalDuration:        playlist.TotalDuration(),
		Elapsed:              now.Sub(epochAt).Seconds(),
		CyclePosition:        pos.CyclePosition,
		CycleCount:           pos.CycleCount,
		SecondsUntilNextSlot: untilNext,
		ServerTimeMS:         now.UnixMilli(),
	}, nil
}

// Jump repositions a channel onto targetIndex at targetOffset seconds and
// returns the resulting position. The cache entries of the channel are
// dropped so the jump is visible to every query after the state commit.
func (s *Service) Jump(ctx context.Context, channelID uuid.UUID, targetIndex int, targetOffset float64, tz *time.Location) (*Result, error) {
	snap, err := s.catalog.Snapshot(ctx, channelID)
	if err != nil {
		return nil, err
	}

	epochAt, err := s.resolveEpoch(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	slot := timeline.ActiveSlot(now.In(tz), snap.Bounds)
	playlist := snap.PlaylistFor(slot)

	elapsed := now.Sub(epochAt).Seconds()
	if _, err := s.states.Jump(ctx, channelID, targetIndex, targetOffset, playlist, elapsed); err != nil {
		return nil, err
	}

	s.cache.Invalidate(channelID)
	return s.Current(ctx, channelID, tz)
}

// Clear drops all state for a channel and invalidates its cache entries
func (s *Service) Clear(ctx context.Context, channelID uuid.UUID) {
	s.states.Clear(ctx, channelID)
	s.cache.Invalidate(channelID)
}

// resolveEpoch fetches the epoch, initializing it on first use, with one
// retry on transient failure.
func (s *Service) resolveEpoch(ctx context.Context) (time.Time, error) {
	epochAt, err := s.epochs.GetOrInit(ctx)
	if err == nil {
		return epochAt, nil
	}

	logger.Log.Warn().Err(err).Msg("Epoch read failed, retrying once")
	time.Sleep(epochRetryBackoff)

	epochAt, err = s.epochs.GetOrInit(ctx)
	if err != nil {
		return time.Time{}, errors.Join(db.ErrTransient, err)
	}
	return epochAt, nil
}

// observeSlot clears manual mode and realigns the channel when its active
// slot changes under a manual-mode viewer. Slot variants keep playing from
// the shared timeline; manual deviation does not survive the boundary.
func (s *Service) observeSlot(ctx context.Context, channelID uuid.UUID, slot timeline.Slot, snap *catalog.Snapshot) {
	s.mu.Lock()
	prev, seen := s.lastSlot[channelID]
	s.lastSlot[channelID] = slot
	s.mu.Unlock()

	if !seen || prev == slot {
		return
	}
	if len(snap.BySlot) == 0 {
		return
	}

	st := s.states.Read(ctx, channelID)
	if !st.ManualMode {
		return
	}

	logger.Log.Info().
		Str("channel_id", channelID.String()).
		Str("from_slot", string(prev)).
		Str("to_slot", string(slot)).
		Msg("Slot transition under manual mode, realigning channel")

	s.states.SetManualMode(ctx, channelID, false)
	s.states.GradualReset(channelID)
}

// attach completes a cached entry with the full item references and a
// fresh server time. The cache payload stays small; items are looked up by
// index against the snapshot in hand.
func (s *Service) attach(snap *catalog.Snapshot, entry *Entry, now time.Time) *Result {
	res := &Result{
		ChannelID:    snap.Channel.ID,
		ChannelName:  entry.ChannelName,
		Position:     entry.Position,
		Slot:         entry.Slot,
		EpochMS:      entry.EpochMS,
		ServerTimeMS: now.UnixMilli(),
	}

	playlist := snap.PlaylistFor(entry.Slot.Current)
	if playlist == nil || playlist.Len() == 0 {
		return res
	}
	if idx := entry.Position.VideoIndex; idx >= 0 && idx < playlist.Len() {
		item := playlist.Item(idx)
		res.Item = &item
	}
	if next := entry.Position.NextIndex; next >= 0 && next < playlist.Len() {
		item := playlist.Item(next)
		res.NextItem = &item
	}
	return res
}
