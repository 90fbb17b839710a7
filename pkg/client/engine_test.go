package client

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrocast/retrocast/internal/timeline"
)

// fakeNow is a settable clock injected through Options.Now
type fakeNow struct {
	t time.Time
}

func (f *fakeNow) now() time.Time { return f.t }

func (f *fakeNow) advance(d time.Duration) { f.t = f.t.Add(d) }

var testBase = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testManifest() *Manifest {
	return &Manifest{
		ChannelID:   "0d9a5c1e-6b2f-4f3a-9c8d-1e2f3a4b5c6d",
		ChannelName: "Retro Toons",
		Items: []timeline.Item{
			{ID: uuid.New(), ExternalRef: "ref-1", Title: "Opening", DurationSeconds: 600},
			{ID: uuid.New(), ExternalRef: "ref-2", Title: "Feature", DurationSeconds: 900},
			{ID: uuid.New(), ExternalRef: "ref-3", Title: "Closing", DurationSeconds: 300},
		},
		TotalDuration: 1800,
		EpochMS:       testBase.UnixMilli(),
		ServerTimeMS:  testBase.UnixMilli(),
	}
}

// newTestEngine returns an engine pinned to a fake clock sitting at the
// epoch, already initialized with the test manifest.
func newTestEngine(t *testing.T) (*Engine, *fakeNow) {
	t.Helper()

	fc := &fakeNow{t: testBase}
	e := New(Options{Now: fc.now})

	m := testManifest()
	require.NoError(t, e.Initialize(m.ChannelID, ServerState{
		Manifest:     m,
		EpochMS:      m.EpochMS,
		ServerTimeMS: m.EpochMS,
	}))
	return e, fc
}

func TestInitialize_RejectsIncompleteState(t *testing.T) {
	e := New(Options{})

	err := e.Initialize("ch", ServerState{EpochMS: 1, ServerTimeMS: 1})
	assert.ErrorIs(t, err, ErrInvalidServerState)

	err = e.Initialize("ch", ServerState{Manifest: testManifest(), ServerTimeMS: 1})
	assert.ErrorIs(t, err, ErrInvalidServerState)

	assert.Nil(t, e.ExpectedState())
}

func TestExpectedState_MirrorsServerCalculation(t *testing.T) {
	e, fc := newTestEngine(t)

	fc.advance(1020 * time.Second)

	p := e.ExpectedState()
	require.NotNil(t, p)
	assert.Equal(t, 1, p.VideoIndex)
	assert.InDelta(t, 420.0, p.OffsetInVideo, 0.001)
	assert.InDelta(t, 480.0, p.TimeRemaining, 0.001)
	assert.Equal(t, 2, p.NextIndex)
	assert.Equal(t, 1.0, p.Confidence)
}

func TestExpectedState_AppliesClockOffset(t *testing.T) {
	fc := &fakeNow{t: testBase}
	e := New(Options{Now: fc.now})

	m := testManifest()
	// The local clock runs 100s ahead of the server at initialization
	// time, so the single-sample offset captures the full skew.
	fc.advance(100 * time.Second)
	require.NoError(t, e.Initialize(m.ChannelID, ServerState{
		Manifest:     m,
		EpochMS:      m.EpochMS,
		ServerTimeMS: m.EpochMS,
	}))
	assert.InDelta(t, 100000.0, e.ClockOffsetMS(), 0.001)

	fc.advance(1020 * time.Second)

	p := e.ExpectedState()
	require.NotNil(t, p)
	// Skew-corrected server time is 1020s past the epoch despite the
	// local clock reading 1120s.
	assert.Equal(t, 1, p.VideoIndex)
	assert.InDelta(t, 420.0, p.OffsetInVideo, 0.001)
}

func TestClockOffset_HonorsConfiguredWeight(t *testing.T) {
	fc := &fakeNow{t: testBase}
	e := New(Options{Now: fc.now, Alpha: 0.5})

	m := testManifest()
	fc.advance(1 * time.Second)
	require.NoError(t, e.Initialize(m.ChannelID, ServerState{
		Manifest:     m,
		EpochMS:      m.EpochMS,
		ServerTimeMS: m.EpochMS,
	}))
	assert.InDelta(t, 1000.0, e.ClockOffsetMS(), 0.001)

	// A correction reporting no skew halves the estimate at weight 0.5.
	e.ApplyServerCorrection(ServerState{ServerTimeMS: fc.now().UnixMilli()})
	assert.InDelta(t, 500.0, e.ClockOffsetMS(), 0.001)
}

func TestConfidence_DecaysAfterWindow(t *testing.T) {
	e, fc := newTestEngine(t)

	fc.advance(25 * time.Second)
	p := e.ExpectedState()
	require.NotNil(t, p)
	assert.Equal(t, 1.0, p.Confidence)

	// Halfway through the decay span: 30s window + 2.5 of 5 minutes.
	fc.advance(5*time.Second + 150*time.Second)
	p = e.ExpectedState()
	require.NotNil(t, p)
	assert.InDelta(t, 0.75, p.Confidence, 0.001)

	fc.advance(10 * time.Minute)
	p = e.ExpectedState()
	require.NotNil(t, p)
	assert.Equal(t, 0.5, p.Confidence)
}

func TestApplyServerCorrection_RestoresFullConfidence(t *testing.T) {
	e, fc := newTestEngine(t)

	fc.advance(10 * time.Minute)
	p := e.ExpectedState()
	require.NotNil(t, p)
	assert.Equal(t, 0.5, p.Confidence)

	// Record some drift so the clear is observable.
	e.CheckDrift(p.VideoIndex, p.OffsetInVideo+0.3)
	assert.NotEmpty(t, e.DriftHistory())

	e.ApplyServerCorrection(ServerState{
		EpochMS:      testBase.UnixMilli(),
		ServerTimeMS: fc.t.UnixMilli(),
	})

	assert.Empty(t, e.DriftHistory())
	p = e.ExpectedState()
	require.NotNil(t, p)
	assert.Equal(t, 1.0, p.Confidence)
}

func TestApplyServerCorrection_RebuildsChangedManifest(t *testing.T) {
	e, fc := newTestEngine(t)

	updated := testManifest()
	updated.Items = append(updated.Items, timeline.Item{
		ID: uuid.New(), ExternalRef: "ref-4", Title: "Bonus", DurationSeconds: 200,
	})
	updated.TotalDuration = 2000

	e.ApplyServerCorrection(ServerState{
		Manifest:     updated,
		EpochMS:      testBase.UnixMilli(),
		ServerTimeMS: fc.t.UnixMilli(),
	})

	// 1850s lands inside the appended item under the new layout.
	fc.advance(1850 * time.Second)
	p := e.ExpectedState()
	require.NotNil(t, p)
	assert.Equal(t, 3, p.VideoIndex)
	assert.InDelta(t, 50.0, p.OffsetInVideo, 0.001)
}

func TestApplyServerCorrection_AdoptsNewEpoch(t *testing.T) {
	e, fc := newTestEngine(t)

	shifted := testBase.Add(-600 * time.Second)
	e.ApplyServerCorrection(ServerState{
		EpochMS:      shifted.UnixMilli(),
		ServerTimeMS: fc.t.UnixMilli(),
	})

	p := e.ExpectedState()
	require.NotNil(t, p)
	assert.Equal(t, 1, p.VideoIndex)
	assert.InDelta(t, 0.0, p.OffsetInVideo, 0.001)
}

func TestReset_DropsStateAndNotifies(t *testing.T) {
	e, _ := newTestEngine(t)

	var events []Event
	e.AddListener(func(ev Event) { events = append(events, ev) })

	e.Reset()

	assert.Nil(t, e.ExpectedState())
	assert.Zero(t, e.ClockOffsetMS())
	require.Len(t, events, 1)
	assert.Equal(t, EventReset, events[0].Type)
}
