package client

import "math"

// Drift report actions
const (
	ActionNone       = "none"
	ActionRateAdjust = "rate_adjust"
	ActionSeek       = "seek"
)

// Drift report reasons forcing a server reconciliation
const (
	ReasonWrongVideo    = "wrong_video"
	ReasonCriticalDrift = "critical_drift"
	ReasonAnomaly       = "anomaly_detected"
	ReasonNoPrediction  = "no_prediction"
)

// DriftReport tells the player how to converge on the predicted position.
// Rate is the playback rate to apply for ActionRateAdjust; TargetOffset is
// the in-video seek target in seconds for ActionSeek.
type DriftReport struct {
	Action          string  `json:"action"`
	Rate            float64 `json:"rate"`
	TargetOffset    float64 `json:"target_offset,omitempty"`
	DriftMS         float64 `json:"drift_ms"`
	NeedsServerSync bool    `json:"needs_server_sync"`
	Reason          string  `json:"reason,omitempty"`
	Confidence      float64 `json:"confidence"`
}

// rateBand maps an absolute drift range to a playback rate nudge
type rateBand struct {
	maxMS float64
	nudge float64
}

// Bands are checked in order; drift below the first band needs no action,
// drift at or past the last threshold warrants a hard seek.
var rateBands = []rateBand{
	{maxMS: 200, nudge: 0},
	{maxMS: 500, nudge: 0.02},
	{maxMS: 1000, nudge: 0.05},
	{maxMS: 3000, nudge: 0.10},
	{maxMS: 5000, nudge: 0.15},
}

const seekThresholdMS = 5000

// CheckDrift compares the player's reported position against the local
// prediction and returns the corrective action. Positive drift means the
// player is ahead of the prediction, so the returned rate slows it down.
//
// The drift sample is recorded in a bounded ring; a run of large
// same-direction samples marks a systematic clock problem and requests a
// server reconciliation regardless of the corrective action.
func (e *Engine) CheckDrift(actualIndex int, actualOffsetSeconds float64) DriftReport {
	e.mu.Lock()

	expected := e.expectedStateLocked()
	if expected == nil {
		listeners := e.snapshotListenersLocked()
		channel := e.channelID
		e.mu.Unlock()
		report := DriftReport{
			Action:          ActionNone,
			Rate:            1.0,
			NeedsServerSync: true,
			Reason:          ReasonNoPrediction,
		}
		e.notify(listeners, Event{Type: EventDrift, Report: &report, Channel: channel})
		return report
	}

	if actualIndex != expected.VideoIndex {
		listeners := e.snapshotListenersLocked()
		channel := e.channelID
		e.mu.Unlock()
		report := DriftReport{
			Action:          ActionSeek,
			Rate:            1.0,
			TargetOffset:    expected.OffsetInVideo,
			NeedsServerSync: true,
			Reason:          ReasonWrongVideo,
			Confidence:      expected.Confidence,
		}
		e.notify(listeners, Event{Type: EventDrift, Report: &report, Channel: channel})
		return report
	}

	driftMS := (actualOffsetSeconds - expected.OffsetInVideo) * 1000

	e.drift = append(e.drift, driftMS)
	if len(e.drift) > e.opts.DriftRingSize {
		e.drift = e.drift[len(e.drift)-e.opts.DriftRingSize:]
	}
	anomaly := e.anomalyLocked()

	listeners := e.snapshotListenersLocked()
	channel := e.channelID
	e.mu.Unlock()

	report := DriftReport{
		DriftMS:    driftMS,
		Rate:       1.0,
		Confidence: expected.Confidence,
	}

	abs := math.Abs(driftMS)
	switch {
	case abs < rateBands[0].maxMS:
		report.Action = ActionNone
	case abs >= seekThresholdMS:
		report.Action = ActionSeek
		report.TargetOffset = expected.OffsetInVideo
		report.NeedsServerSync = true
		report.Reason = ReasonCriticalDrift
	default:
		report.Action = ActionRateAdjust
		report.Rate = rateFor(driftMS)
	}

	if anomaly && !report.NeedsServerSync {
		report.NeedsServerSync = true
		report.Reason = ReasonAnomaly
	}

	if report.Action != ActionNone || report.NeedsServerSync {
		e.notify(listeners, Event{Type: EventDrift, Report: &report, Channel: channel})
	}
	return report
}

// DriftHistory returns a copy of the retained drift samples, oldest first
func (e *Engine) DriftHistory() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]float64, len(e.drift))
	copy(out, e.drift)
	return out
}

// rateFor picks the playback rate for a drift magnitude. Ahead of the
// prediction plays slower, behind plays faster.
func rateFor(driftMS float64) float64 {
	abs := math.Abs(driftMS)
	var nudge float64
	for _, band := range rateBands {
		if abs < band.maxMS {
			nudge = band.nudge
			break
		}
		nudge = band.nudge
	}
	if driftMS > 0 {
		return 1.0 - nudge
	}
	return 1.0 + nudge
}

// anomalyLocked reports whether the most recent samples all exceed the
// anomaly threshold in the same direction; callers hold e.mu.
func (e *Engine) anomalyLocked() bool {
	if len(e.drift) < e.opts.AnomalyRun {
		return false
	}

	recent := e.drift[len(e.drift)-e.opts.AnomalyRun:]
	positive := recent[0] > 0
	for _, d := range recent {
		if math.Abs(d) <= e.opts.AnomalyThresholdMS {
			return false
		}
		if (d > 0) != positive {
			return false
		}
	}
	return true
}

func (e *Engine) notify(listeners []Listener, ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}
