package timeline

import (
	"math"
	"time"
)

// clampEpsilonSeconds is subtracted from an item's duration when numerical
// edge cases land the offset exactly on or past the item boundary.
const clampEpsilonSeconds = 1.0

// Position flags for degenerate playlists. A flagged record is still
// well-formed; callers decide whether to surface or cache it.
const (
	FlagEmptyPlaylist     = "empty_playlist"
	FlagZeroTotalDuration = "zero_total_duration"
)

// Position describes what a channel is showing at one instant.
type Position struct {
	// VideoIndex is the playlist index of the current item, or -1 when the
	// playlist is empty.
	VideoIndex int `json:"video_index"`

	// OffsetInVideo is the playback position inside the current item, in
	// seconds, fractional part retained. Always < the item's duration.
	OffsetInVideo float64 `json:"offset_in_video_seconds"`

	// CyclePosition is seconds elapsed since the start of the current
	// cycle, in [0, total_duration).
	CyclePosition float64 `json:"cycle_position_seconds"`

	// TimeRemaining is seconds until the current item ends.
	TimeRemaining float64 `json:"time_remaining_seconds"`

	// CycleCount is how many full playlist traversals have completed.
	CycleCount int64 `json:"cycle_count"`

	// NextIndex is the index that plays after the current item.
	NextIndex int `json:"next_index"`

	// Flag is empty for ordinary records, or one of the Flag constants.
	Flag string `json:"flag,omitempty"`
}

// Compute maps (playlist, epoch, now, channel offset) to a Position.
// Pure function, no I/O; identical inputs always produce identical output.
// O(log n) in playlist length.
//
// The elapsed time since epoch is shifted by the channel's additive offset,
// normalized into the cycle, and resolved against the playlist's prefix
// sums. Adding any whole number of total durations to the offset does not
// change the result; shifting now by exactly one total duration yields the
// same record with CycleCount incremented.
func Compute(p *Playlist, epoch, now time.Time, channelOffsetSeconds float64) Position {
	if p == nil || p.Len() == 0 {
		return Position{VideoIndex: -1, NextIndex: -1, Flag: FlagEmptyPlaylist}
	}

	total := float64(p.TotalDuration())
	if total == 0 {
		return Position{VideoIndex: 0, NextIndex: 1 % p.Len(), Flag: FlagZeroTotalDuration}
	}

	elapsed := now.Sub(epoch).Seconds()
	adjusted := elapsed + channelOffsetSeconds

	// Normalize a negative shift by whole cycles so the result lands in
	// [0, total).
	if adjusted < 0 {
		k := math.Ceil(-adjusted / total)
		adjusted += k * total
		if adjusted < 0 {
			adjusted = 0
		}
	}

	cycleCount := int64(math.Floor(adjusted / total))
	cyclePos := math.Mod(adjusted, total)

	// Index math runs on whole seconds; the fractional part survives only
	// in the within-item offset.
	idx := p.indexAt(int64(cyclePos))
	if idx < 0 {
		idx = 0
	}

	offsetInVideo := cyclePos - float64(p.StartOf(idx))
	duration := float64(p.Item(idx).DurationSeconds)
	if offsetInVideo >= duration && duration > 0 {
		offsetInVideo = duration - clampEpsilonSeconds
		if offsetInVideo < 0 {
			offsetInVideo = 0
		}
	}

	return Position{
		VideoIndex:    idx,
		OffsetInVideo: offsetInVideo,
		CyclePosition: cyclePos,
		TimeRemaining: duration - offsetInVideo,
		CycleCount:    cycleCount,
		NextIndex:     (idx + 1) % p.Len(),
	}
}
