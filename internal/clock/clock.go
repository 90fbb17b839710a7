// Package clock provides the engine's wall-clock sources, including a
// skew-adjusted clock that folds in offset observations against a reference.
package clock

import (
	"sync"
	"time"
)

// defaultAlpha weights new offset samples against the running estimate.
const defaultAlpha = 0.3

// Clock is the capability the engine needs from a time source.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the operating system clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// AdjustedClock wraps a Clock with a signed millisecond offset estimating
// local skew against a reference (typically the server). Calls are
// non-blocking and constant time.
type AdjustedClock struct {
	mu        sync.Mutex
	base      Clock
	alpha     float64
	offsetMS  float64
	hasSample bool
}

// NewAdjustedClock creates an adjusted clock over base with no initial skew.
// A non-positive alpha takes the default weight.
func NewAdjustedClock(base Clock, alpha float64) *AdjustedClock {
	if alpha <= 0 {
		alpha = defaultAlpha
	}
	return &AdjustedClock{base: base, alpha: alpha}
}

// Now returns the raw time of the underlying clock
func (c *AdjustedClock) Now() time.Time {
	return c.base.Now()
}

// SkewAdjustedNow returns the current time corrected by the offset
// estimate. Offset is local-minus-reference, so the correction subtracts.
func (c *AdjustedClock) SkewAdjustedNow() time.Time {
	c.mu.Lock()
	offset := c.offsetMS
	c.mu.Unlock()
	return c.base.Now().Add(-time.Duration(offset * float64(time.Millisecond)))
}

// Observe folds a new offset sample into the estimate. The first sample is
// taken verbatim; later samples are weighted by alpha against the prior:
// offset = alpha*sample + (1-alpha)*prior.
func (c *AdjustedClock) Observe(sampleMS float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasSample {
		c.offsetMS = sampleMS
		c.hasSample = true
		return
	}
	c.offsetMS = c.alpha*sampleMS + (1-c.alpha)*c.offsetMS
}

// OffsetMS returns the current offset estimate in milliseconds
func (c *AdjustedClock) OffsetMS() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offsetMS
}
