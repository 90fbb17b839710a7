package client

import (
	"context"
	"sort"
	"time"
)

// SampleFunc fetches the server's current wall clock in epoch milliseconds.
// Implementations typically hit the health or position endpoint and return
// its server_time_ms field.
type SampleFunc func(ctx context.Context) (int64, error)

// sample is one completed round trip
type sample struct {
	offsetMS float64
	rttMS    float64
}

// PerformClockSync estimates the client-to-server clock offset by taking
// several spaced round-trip samples, discarding the slowest, and averaging
// the rest. The offset convention is client minus server: a positive offset
// means the local clock runs ahead.
//
// If fewer samples succeed than are needed for a trustworthy average, the
// prior estimate is kept and ErrSyncUnderdetermined is returned.
func (e *Engine) PerformClockSync(ctx context.Context, fetch SampleFunc) error {
	samples := make([]sample, 0, e.opts.SampleCount)

	for i := 0; i < e.opts.SampleCount; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.opts.InterSampleDelay):
			}
		}

		t0 := e.opts.Now()
		serverMS, err := fetch(ctx)
		if err != nil {
			continue
		}
		t1 := e.opts.Now()

		rtt := float64(t1.Sub(t0).Milliseconds())
		// The server's reading is assumed to sit at the round trip's
		// midpoint.
		offset := float64(t1.UnixMilli()) - (float64(serverMS) + rtt/2)
		samples = append(samples, sample{offsetMS: offset, rttMS: rtt})
	}

	if len(samples) < e.opts.KeepBest {
		return ErrSyncUnderdetermined
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].rttMS < samples[j].rttMS })
	best := samples[:e.opts.KeepBest]

	var offsetSum, rttSum float64
	for _, s := range best {
		offsetSum += s.offsetMS
		rttSum += s.rttMS
	}
	avgOffset := offsetSum / float64(len(best))
	avgRTT := rttSum / float64(len(best))

	e.mu.Lock()
	e.clk.Observe(avgOffset)
	e.rtts = append(e.rtts, avgRTT)
	if len(e.rtts) > e.opts.RTTWindow {
		e.rtts = e.rtts[len(e.rtts)-e.opts.RTTWindow:]
	}
	e.mu.Unlock()

	return nil
}

// AverageRTT returns the mean of the retained per-sync RTT averages, or 0
// when no sync has completed.
func (e *Engine) AverageRTT() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.rtts) == 0 {
		return 0
	}
	var sum float64
	for _, r := range e.rtts {
		sum += r
	}
	return sum / float64(len(e.rtts))
}
