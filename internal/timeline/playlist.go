// Package timeline provides the deterministic mapping from wall-clock time
// to a position inside a channel's cyclic playlist, creating the illusion of
// a continuously broadcasting television channel.
package timeline

import (
	"sort"

	"github.com/google/uuid"
)

// Item is one playable entry of a playlist. ExternalRef is opaque to the
// engine and handed to the player unchanged.
type Item struct {
	ID              uuid.UUID `json:"id"`
	ExternalRef     string    `json:"external_ref"`
	Title           string    `json:"title"`
	DurationSeconds int64     `json:"duration_seconds"`
}

// Playlist is an ordered, finite sequence of items with cumulative prefix
// sums of durations precomputed on construction. Order is significant and
// stable; a Playlist is immutable once built.
type Playlist struct {
	items  []Item
	prefix []int64
	total  int64
}

// NewPlaylist builds a playlist over items. Durations are taken as given;
// defaulting of missing durations is the catalog's job, not this package's.
func NewPlaylist(items []Item) *Playlist {
	p := &Playlist{
		items:  make([]Item, len(items)),
		prefix: make([]int64, len(items)),
	}
	copy(p.items, items)

	var acc int64
	for i, item := range p.items {
		p.prefix[i] = acc
		acc += item.DurationSeconds
	}
	p.total = acc
	return p
}

// Len returns the number of items
func (p *Playlist) Len() int {
	return len(p.items)
}

// Item returns the item at index i
func (p *Playlist) Item(i int) Item {
	return p.items[i]
}

// Items returns the underlying item slice. Callers must not mutate it.
func (p *Playlist) Items() []Item {
	return p.items
}

// TotalDuration returns the sum of all item durations in seconds
func (p *Playlist) TotalDuration() int64 {
	return p.total
}

// StartOf returns the cycle-position second at which item i begins
func (p *Playlist) StartOf(i int) int64 {
	return p.prefix[i]
}

// indexAt returns the largest index whose start is <= the given cycle
// position. Ties at exact boundaries resolve to the later item, the one
// starting at that instant. cyclePos must be in [0, total).
func (p *Playlist) indexAt(cyclePos int64) int {
	// First index with prefix > cyclePos, then step back one.
	i := sort.Search(len(p.prefix), func(i int) bool {
		return p.prefix[i] > cyclePos
	})
	return i - 1
}
