package timeline

import (
	"time"
)

// Slot names one block of the broadcast day. At most one slot is active at
// any instant in a given timezone.
type Slot string

// The broadcast day, in order.
const (
	SlotMorning     Slot = "morning"
	SlotLateMorning Slot = "late_morning"
	SlotAfternoon   Slot = "afternoon"
	SlotEvening     Slot = "evening"
	SlotPrimeTime   Slot = "prime_time"
	SlotNight       Slot = "night"
	SlotLateNight   Slot = "late_night"
)

// slotOrder lists slots by starting hour, beginning at midnight.
var slotOrder = []Slot{
	SlotLateNight,
	SlotMorning,
	SlotLateMorning,
	SlotAfternoon,
	SlotEvening,
	SlotPrimeTime,
	SlotNight,
}

// HourRange is a half-open [Start, End) range of local hours.
type HourRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SlotBounds maps each slot to its local hour range. Channels may override
// individual slots; unspecified slots keep their defaults.
type SlotBounds map[Slot]HourRange

// DefaultSlotBounds returns the standard broadcast-day layout.
func DefaultSlotBounds() SlotBounds {
	return SlotBounds{
		SlotMorning:     {Start: 6, End: 9},
		SlotLateMorning: {Start: 9, End: 12},
		SlotAfternoon:   {Start: 12, End: 15},
		SlotEvening:     {Start: 15, End: 18},
		SlotPrimeTime:   {Start: 18, End: 21},
		SlotNight:       {Start: 21, End: 24},
		SlotLateNight:   {Start: 0, End: 6},
	}
}

// Merge returns bounds with overrides applied over b. A nil override map
// returns b unchanged.
func (b SlotBounds) Merge(overrides SlotBounds) SlotBounds {
	if len(overrides) == 0 {
		return b
	}
	merged := make(SlotBounds, len(b))
	for slot, r := range b {
		merged[slot] = r
	}
	for slot, r := range overrides {
		merged[slot] = r
	}
	return merged
}

// ParseSlot validates a slot name.
func ParseSlot(s string) (Slot, bool) {
	for _, slot := range slotOrder {
		if string(slot) == s {
			return slot, true
		}
	}
	return "", false
}

// ActiveSlot returns the slot in force at t. t must already be expressed in
// the viewer's timezone.
func ActiveSlot(t time.Time, bounds SlotBounds) Slot {
	hour := t.Hour()
	for _, slot := range slotOrder {
		r, ok := bounds[slot]
		if !ok {
			continue
		}
		if hour >= r.Start && hour < r.End {
			return slot
		}
	}
	// Overridden bounds may leave gaps; fall back to the slot whose default
	// range covers the hour so selection always succeeds.
	return ActiveSlot(t, DefaultSlotBounds())
}

// NextTransition returns the slot that follows the currently active one and
// the number of seconds until its boundary.
func NextTransition(t time.Time, bounds SlotBounds) (Slot, int64) {
	current := ActiveSlot(t, bounds)
	r, ok := bounds[current]
	if !ok {
		r = DefaultSlotBounds()[current]
	}

	// Boundary is the end hour of the active slot; hour 24 wraps to
	// midnight tomorrow.
	year, month, day := t.Date()
	boundary := time.Date(year, month, day, r.End%24, 0, 0, 0, t.Location())
	if !boundary.After(t) {
		boundary = boundary.AddDate(0, 0, 1)
	}

	next := ActiveSlot(boundary, bounds)
	secondsUntil := int64(boundary.Sub(t).Seconds())
	if secondsUntil < 0 {
		secondsUntil = 0
	}
	return next, secondsUntil
}
