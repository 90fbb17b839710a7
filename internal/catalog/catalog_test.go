package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/retrocast/retrocast/internal/logger"
	"github.com/retrocast/retrocast/internal/models"
	"github.com/retrocast/retrocast/internal/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func testVideo(channelID uuid.UUID, duration int64, position int, slot *string) *models.Video {
	return models.NewVideo(channelID, "yt:abc123", "Test Video", duration, position, slot)
}

func TestBuildSnapshot_DefaultPlaylist(t *testing.T) {
	ch := models.NewChannel("Retro Hits", nil)
	videos := []*models.Video{
		testVideo(ch.ID, 600, 0, nil),
		testVideo(ch.ID, 900, 1, nil),
		testVideo(ch.ID, 300, 2, nil),
	}

	snap := BuildSnapshot(ch, videos, 300)

	require.Equal(t, 3, snap.Default.Len())
	assert.Equal(t, int64(1800), snap.Default.TotalDuration())
	assert.Empty(t, snap.BySlot)
}

func TestBuildSnapshot_DurationDefaulting(t *testing.T) {
	ch := models.NewChannel("Retro Hits", nil)
	videos := []*models.Video{
		testVideo(ch.ID, 0, 0, nil),
		testVideo(ch.ID, -5, 1, nil),
		testVideo(ch.ID, 120, 2, nil),
	}

	snap := BuildSnapshot(ch, videos, 300)

	assert.Equal(t, int64(300), snap.Default.Item(0).DurationSeconds)
	assert.Equal(t, int64(300), snap.Default.Item(1).DurationSeconds)
	assert.Equal(t, int64(120), snap.Default.Item(2).DurationSeconds)
	assert.Equal(t, int64(720), snap.Default.TotalDuration())
}

func TestBuildSnapshot_SlotVariants(t *testing.T) {
	ch := models.NewChannel("Retro Hits", nil)
	videos := []*models.Video{
		testVideo(ch.ID, 600, 0, nil),
		testVideo(ch.ID, 200, 0, strPtr("prime_time")),
		testVideo(ch.ID, 400, 1, strPtr("prime_time")),
	}

	snap := BuildSnapshot(ch, videos, 300)

	require.Contains(t, snap.BySlot, timeline.SlotPrimeTime)
	assert.Equal(t, 2, snap.BySlot[timeline.SlotPrimeTime].Len())
	assert.Equal(t, 1, snap.Default.Len())

	// Slot with a variant uses it; others fall back to the default.
	assert.Equal(t, snap.BySlot[timeline.SlotPrimeTime], snap.PlaylistFor(timeline.SlotPrimeTime))
	assert.Equal(t, snap.Default, snap.PlaylistFor(timeline.SlotMorning))
}

func TestBuildSnapshot_UnknownSlotFallsBackToDefault(t *testing.T) {
	logger.Init("error", false)
	ch := models.NewChannel("Retro Hits", nil)
	videos := []*models.Video{
		testVideo(ch.ID, 600, 0, strPtr("matinee")),
	}

	snap := BuildSnapshot(ch, videos, 300)

	assert.Empty(t, snap.BySlot)
	assert.Equal(t, 1, snap.Default.Len())
}

func TestBuildSnapshot_SlotBoundOverrides(t *testing.T) {
	ch := models.NewChannel("Retro Hits", nil)
	ch.SlotBounds = strPtr(`{"prime_time":{"start":19,"end":23}}`)

	snap := BuildSnapshot(ch, nil, 300)

	assert.Equal(t, timeline.HourRange{Start: 19, End: 23}, snap.Bounds[timeline.SlotPrimeTime])
	assert.Equal(t, timeline.HourRange{Start: 6, End: 9}, snap.Bounds[timeline.SlotMorning])
}

func TestBuildSnapshot_MalformedSlotBoundsKeepsDefaults(t *testing.T) {
	logger.Init("error", false)
	ch := models.NewChannel("Retro Hits", nil)
	ch.SlotBounds = strPtr(`{not json`)

	snap := BuildSnapshot(ch, nil, 300)

	assert.Equal(t, timeline.DefaultSlotBounds(), snap.Bounds)
}
