// Package catalog resolves channels and their videos into immutable
// snapshots the position engine can compute against.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/retrocast/retrocast/internal/db"
	"github.com/retrocast/retrocast/internal/logger"
	"github.com/retrocast/retrocast/internal/models"
	"github.com/retrocast/retrocast/internal/timeline"
)

// Snapshot is the read model of one channel at one instant: the default
// playlist, any slot variants, and the effective slot bounds. Immutable for
// the duration of one calculation.
type Snapshot struct {
	Channel *models.Channel
	Default *timeline.Playlist
	BySlot  map[timeline.Slot]*timeline.Playlist
	Bounds  timeline.SlotBounds
}

// PlaylistFor returns the playlist in force during slot: the slot variant
// when the channel has one, the default playlist otherwise.
func (s *Snapshot) PlaylistFor(slot timeline.Slot) *timeline.Playlist {
	if p, ok := s.BySlot[slot]; ok && p.Len() > 0 {
		return p
	}
	return s.Default
}

// Service builds channel snapshots from the persisted catalog
type Service struct {
	repos           *db.Repositories
	defaultDuration int64
}

// NewService creates a catalog service. defaultDuration replaces missing or
// non-positive video durations on read.
func NewService(repos *db.Repositories, defaultDuration time.Duration) *Service {
	return &Service{
		repos:           repos,
		defaultDuration: int64(defaultDuration.Seconds()),
	}
}

// Snapshot resolves a channel into an immutable read model.
// Returns db.ErrNotFound for unknown channels.
func (s *Service) Snapshot(ctx context.Context, channelID uuid.UUID) (*Snapshot, error) {
	ch, err := s.repos.Channels.GetByID(ctx, channelID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	videos, err := s.repos.Videos.GetByChannelID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel videos: %w", err)
	}

	return BuildSnapshot(ch, videos, s.defaultDuration), nil
}

// BuildSnapshot assembles a snapshot from already-loaded rows. Durations
// that are missing or non-positive are replaced by defaultDuration here,
// never inside the calculator. Videos carrying a slot name form that slot's
// variant playlist; the rest form the default playlist.
func BuildSnapshot(ch *models.Channel, videos []*models.Video, defaultDuration int64) *Snapshot {
	var defaultItems []timeline.Item
	slotItems := make(map[timeline.Slot][]timeline.Item)

	for _, v := range videos {
		item := timeline.Item{
			ID:              v.ID,
			ExternalRef:     v.ExternalRef,
			Title:           v.Title,
			DurationSeconds: v.DurationSeconds,
		}
		if item.DurationSeconds <= 0 {
			item.DurationSeconds = defaultDuration
		}

		if v.TimeSlot == nil {
			defaultItems = append(defaultItems, item)
			continue
		}
		slot, ok := timeline.ParseSlot(*v.TimeSlot)
		if !ok {
			logger.Log.Warn().
				Str("channel_id", ch.ID.String()).
				Str("video_id", v.ID.String()).
				Str("time_slot", *v.TimeSlot).
				Msg("Unknown time slot on video, treating as default playlist entry")
			defaultItems = append(defaultItems, item)
			continue
		}
		slotItems[slot] = append(slotItems[slot], item)
	}

	bySlot := make(map[timeline.Slot]*timeline.Playlist, len(slotItems))
	for slot, items := range slotItems {
		bySlot[slot] = timeline.NewPlaylist(items)
	}

	return &Snapshot{
		Channel: ch,
		Default: timeline.NewPlaylist(defaultItems),
		BySlot:  bySlot,
		Bounds:  timeline.DefaultSlotBounds().Merge(parseSlotBounds(ch)),
	}
}

// parseSlotBounds decodes the channel's JSON slot bound overrides. A bad
// payload keeps the defaults rather than failing the snapshot.
func parseSlotBounds(ch *models.Channel) timeline.SlotBounds {
	if ch.SlotBounds == nil || *ch.SlotBounds == "" {
		return nil
	}

	var raw map[string]timeline.HourRange
	if err := json.Unmarshal([]byte(*ch.SlotBounds), &raw); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("channel_id", ch.ID.String()).
			Msg("Malformed slot bounds on channel, using defaults")
		return nil
	}

	bounds := make(timeline.SlotBounds, len(raw))
	for name, r := range raw {
		slot, ok := timeline.ParseSlot(name)
		if !ok {
			continue
		}
		bounds[slot] = r
	}
	return bounds
}
