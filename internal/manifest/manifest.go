// Package manifest packages the minimum data a client needs to run the
// position calculator locally: the item list with durations, the total
// duration, the epoch, and the server time for clock sync.
package manifest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/retrocast/retrocast/internal/catalog"
	"github.com/retrocast/retrocast/internal/clock"
	"github.com/retrocast/retrocast/internal/epoch"
	"github.com/retrocast/retrocast/internal/timeline"
)

// Manifest is the compact on-wire description of a channel's timeline.
// A client refetches it when the channel's total duration changes.
type Manifest struct {
	ChannelID     string          `json:"channel_id"`
	ChannelName   string          `json:"channel_name"`
	Items         []timeline.Item `json:"items"`
	TotalDuration int64           `json:"total_duration"`
	EpochMS       int64           `json:"epoch_ms"`
	ServerTimeMS  int64           `json:"server_time_ms"`
}

// Service assembles manifests from the catalog and epoch store
type Service struct {
	catalog *catalog.Service
	epochs  *epoch.Store
	clk     clock.Clock
}

// NewService creates a manifest service
func NewService(catalogSvc *catalog.Service, epochs *epoch.Store, clk clock.Clock) *Service {
	return &Service{catalog: catalogSvc, epochs: epochs, clk: clk}
}

// Build returns the manifest of a channel for the playlist in force in the
// given timezone. Every manifest carries the server time so the client can
// fold it into its clock-offset estimate.
func (s *Service) Build(ctx context.Context, channelID uuid.UUID, tz *time.Location) (*Manifest, error) {
	snap, err := s.catalog.Snapshot(ctx, channelID)
	if err != nil {
		return nil, err
	}

	epochAt, err := s.epochs.GetOrInit(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	slot := timeline.ActiveSlot(now.In(tz), snap.Bounds)
	playlist := snap.PlaylistFor(slot)

	return &Manifest{
		ChannelID:     snap.Channel.ID.String(),
		ChannelName:   snap.Channel.Name,
		Items:         playlist.Items(),
		TotalDuration: playlist.TotalDuration(),
		EpochMS:       epochAt.UnixMilli(),
		ServerTimeMS:  now.UnixMilli(),
	}, nil
}
