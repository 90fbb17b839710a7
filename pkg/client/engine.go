// Package client implements the predictive playback engine that mirrors the
// server's position calculation locally. It estimates the clock offset to
// the server NTP-style, predicts what a channel should be showing, watches
// the player for drift, and decides when a server reconciliation is needed.
package client

import (
	"errors"
	"sync"
	"time"

	"github.com/retrocast/retrocast/internal/clock"
	"github.com/retrocast/retrocast/internal/timeline"
)

// Engine errors
var (
	// ErrInvalidServerState is returned when an initialization payload is
	// missing its manifest or sync fields.
	ErrInvalidServerState = errors.New("invalid server state")

	// ErrSyncUnderdetermined is returned when too few clock samples
	// succeeded; the prior offset estimate is kept.
	ErrSyncUnderdetermined = errors.New("clock sync underdetermined")

	// ErrNotInitialized is returned when an operation needs a manifest
	// that has not been loaded yet.
	ErrNotInitialized = errors.New("engine not initialized")
)

// Manifest is the client-side copy of the channel timeline description.
type Manifest struct {
	ChannelID     string          `json:"channel_id"`
	ChannelName   string          `json:"channel_name"`
	Items         []timeline.Item `json:"items"`
	TotalDuration int64           `json:"total_duration"`
	EpochMS       int64           `json:"epoch_ms"`
	ServerTimeMS  int64           `json:"server_time_ms"`
}

// ServerState carries the sync fields every position and manifest response
// includes, plus the manifest itself when one was fetched.
type ServerState struct {
	Manifest     *Manifest `json:"manifest,omitempty"`
	EpochMS      int64     `json:"epoch_ms"`
	ServerTimeMS int64     `json:"server_time_ms"`
}

// Prediction is the engine's local answer to "what should be playing",
// with a confidence score reflecting the freshness of the last server
// reconciliation.
type Prediction struct {
	timeline.Position
	Confidence float64 `json:"confidence"`
}

// Event is delivered synchronously to listeners when the engine reacts to
// drift or applies a correction.
type Event struct {
	Type    string       `json:"type"`
	Report  *DriftReport `json:"report,omitempty"`
	Channel string       `json:"channel"`
}

// Event types
const (
	EventDrift     = "drift"
	EventCorrected = "corrected"
	EventReset     = "reset"
)

// Listener receives engine events. Listeners run on the engine's calling
// goroutine; they must not block.
type Listener func(Event)

// Options tunes the engine. Zero values take the defaults below.
type Options struct {
	SampleCount          int           // clock sync samples per run (5)
	InterSampleDelay     time.Duration // spacing between samples (50ms)
	KeepBest             int           // lowest-RTT samples averaged (3)
	RTTWindow            int           // retained RTT averages (5)
	DriftRingSize        int           // retained drift samples (10)
	AnomalyRun           int           // consecutive samples declaring an anomaly (5)
	AnomalyThresholdMS   float64       // per-sample magnitude for an anomaly (500)
	Alpha                float64       // weight of a new clock offset sample (0.3)
	FullConfidenceWindow time.Duration // full trust after a sync (30s)
	ConfidenceDecay      time.Duration // linear decay span after the window (5m)
	ConfidenceFloor      float64       // lowest confidence (0.5)
	Now                  func() time.Time
}

func (o Options) withDefaults() Options {
	if o.SampleCount == 0 {
		o.SampleCount = 5
	}
	if o.InterSampleDelay == 0 {
		o.InterSampleDelay = 50 * time.Millisecond
	}
	if o.KeepBest == 0 {
		o.KeepBest = 3
	}
	if o.RTTWindow == 0 {
		o.RTTWindow = 5
	}
	if o.DriftRingSize == 0 {
		o.DriftRingSize = 10
	}
	if o.AnomalyRun == 0 {
		o.AnomalyRun = 5
	}
	if o.AnomalyThresholdMS == 0 {
		o.AnomalyThresholdMS = 500
	}
	if o.Alpha == 0 {
		o.Alpha = 0.3
	}
	if o.FullConfidenceWindow == 0 {
		o.FullConfidenceWindow = 30 * time.Second
	}
	if o.ConfidenceDecay == 0 {
		o.ConfidenceDecay = 5 * time.Minute
	}
	if o.ConfidenceFloor == 0 {
		o.ConfidenceFloor = 0.5
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// Engine predicts playback for one channel. All operations are safe for
// use from a single logical task; internal state is mutex-guarded so a
// listener callback can safely re-enter read paths.
type Engine struct {
	opts Options

	mu               sync.Mutex
	channelID        string
	manifest         *Manifest
	playlist         *timeline.Playlist
	epochMS          int64
	clk              *clock.AdjustedClock
	rtts             []float64
	drift            []float64
	lastServerSyncMS int64
	listeners        []Listener
}

// nowFunc adapts Options.Now to the clock source interface
type nowFunc func() time.Time

func (f nowFunc) Now() time.Time {
	return f()
}

// New creates an engine with the given options
func New(opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		opts: opts,
		clk:  clock.NewAdjustedClock(nowFunc(opts.Now), opts.Alpha),
	}
}

// Initialize loads a channel's manifest and sync fields and performs a
// single-sample clock update. Must be called before predictions.
func (e *Engine) Initialize(channelID string, state ServerState) error {
	if state.Manifest == nil || state.ServerTimeMS == 0 || state.EpochMS == 0 {
		return ErrInvalidServerState
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.channelID = channelID
	e.manifest = state.Manifest
	e.playlist = timeline.NewPlaylist(state.Manifest.Items)
	e.epochMS = state.EpochMS

	now := e.opts.Now().UnixMilli()
	e.clk.Observe(float64(now - state.ServerTimeMS))
	e.lastServerSyncMS = now
	return nil
}

// AddListener registers a listener for drift and correction events
func (e *Engine) AddListener(fn Listener) {
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

// ExpectedState runs the position calculation locally against the
// skew-corrected clock. Returns nil before initialization or for an empty
// manifest.
func (e *Engine) ExpectedState() *Prediction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.expectedStateLocked()
}

// ClockOffsetMS returns the current clock offset estimate
func (e *Engine) ClockOffsetMS() float64 {
	e.mu.Lock()
	clk := e.clk
	e.mu.Unlock()
	return clk.OffsetMS()
}

// ApplyServerCorrection folds a reconciliation response into the engine:
// the clock offset is re-estimated, a changed epoch is adopted, a changed
// total duration rebuilds the manifest index, and the drift history is
// cleared so confidence returns to full.
func (e *Engine) ApplyServerCorrection(state ServerState) {
	e.mu.Lock()

	now := e.opts.Now().UnixMilli()
	if state.ServerTimeMS != 0 {
		e.clk.Observe(float64(now - state.ServerTimeMS))
	}
	if state.EpochMS != 0 && state.EpochMS != e.epochMS {
		e.epochMS = state.EpochMS
	}
	if state.Manifest != nil && (e.manifest == nil || state.Manifest.TotalDuration != e.manifest.TotalDuration) {
		e.manifest = state.Manifest
		e.playlist = timeline.NewPlaylist(state.Manifest.Items)
	}

	e.drift = nil
	e.lastServerSyncMS = now
	channel := e.channelID
	listeners := e.snapshotListenersLocked()
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(Event{Type: EventCorrected, Channel: channel})
	}
}

// Reset drops all engine state. Safe after a channel switch.
func (e *Engine) Reset() {
	e.mu.Lock()
	channel := e.channelID
	listeners := e.snapshotListenersLocked()
	e.channelID = ""
	e.manifest = nil
	e.playlist = nil
	e.epochMS = 0
	e.clk = clock.NewAdjustedClock(nowFunc(e.opts.Now), e.opts.Alpha)
	e.rtts = nil
	e.drift = nil
	e.lastServerSyncMS = 0
	e.listeners = nil
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(Event{Type: EventReset, Channel: channel})
	}
}

// expectedStateLocked computes the prediction; callers hold e.mu
func (e *Engine) expectedStateLocked() *Prediction {
	if e.playlist == nil || e.epochMS == 0 {
		return nil
	}

	now := e.clk.SkewAdjustedNow()
	pos := timeline.Compute(e.playlist, time.UnixMilli(e.epochMS).UTC(), now, 0)
	if pos.VideoIndex < 0 {
		return nil
	}

	return &Prediction{
		Position:   pos,
		Confidence: e.confidenceLocked(),
	}
}

// confidenceLocked scores trust in local predictions: full inside the
// post-sync window, then a linear decay down to the floor.
func (e *Engine) confidenceLocked() float64 {
	if e.lastServerSyncMS == 0 {
		return e.opts.ConfidenceFloor
	}

	since := time.Duration(e.opts.Now().UnixMilli()-e.lastServerSyncMS) * time.Millisecond
	if since <= e.opts.FullConfidenceWindow {
		return 1.0
	}

	decayed := since - e.opts.FullConfidenceWindow
	if decayed >= e.opts.ConfidenceDecay {
		return e.opts.ConfidenceFloor
	}

	span := 1.0 - e.opts.ConfidenceFloor
	return 1.0 - span*float64(decayed)/float64(e.opts.ConfidenceDecay)
}

// snapshotListenersLocked copies the listener set; callers hold e.mu
func (e *Engine) snapshotListenersLocked() []Listener {
	out := make([]Listener, len(e.listeners))
	copy(out, e.listeners)
	return out
}
