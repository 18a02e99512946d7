// Package highlight computes which word of a spoken line is current while
// its audio plays. A fused clock smooths the audio element's jittery
// position reporting, and a frame-rate scheduler maps the compensated time
// onto word timing segments.
package highlight

import (
	"sync"
	"time"
)

// DefaultRecalibrateThreshold is the drift between the audio position and
// the wall-clock estimate beyond which the estimate snaps back to the audio
// position.
const DefaultRecalibrateThreshold = 100 * time.Millisecond

// Clock fuses two time sources into one playback-position estimate: the
// audio session's reported position (authoritative but jittery) and a
// wall-clock extrapolation from the last calibration point (smooth but
// drifting). Estimate returns the extrapolation and recalibrates it
// whenever it strays more than the threshold from the audio position.
//
// Safe for concurrent use, though in practice only the scheduler goroutine
// reads it.
type Clock struct {
	source    func() time.Duration
	threshold time.Duration
	onRecal   func(drift time.Duration)

	mu           sync.Mutex
	base         time.Duration
	calibratedAt time.Time
}

// NewClock builds a Clock over an audio position source, calibrated once at
// start. A threshold of zero uses [DefaultRecalibrateThreshold].
func NewClock(source func() time.Duration, start time.Time, threshold time.Duration) *Clock {
	if threshold <= 0 {
		threshold = DefaultRecalibrateThreshold
	}
	return &Clock{
		source:       source,
		threshold:    threshold,
		calibratedAt: start,
	}
}

// OnRecalibrate registers fn to be called with the absolute drift each time
// the estimate snaps back to the audio position. Set it before the scheduler
// starts reading the clock; fn must not call back into the Clock.
func (c *Clock) OnRecalibrate(fn func(drift time.Duration)) {
	c.mu.Lock()
	c.onRecal = fn
	c.mu.Unlock()
}

// Estimate returns the fused playback position at wall time now.
func (c *Clock) Estimate(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	wall := c.base + now.Sub(c.calibratedAt)
	audio := c.source()

	// Position 0 usually means the element has not started reporting yet;
	// trust the wall extrapolation until it does.
	if audio > 0 {
		drift := wall - audio
		if drift < 0 {
			drift = -drift
		}
		if drift > c.threshold {
			c.base = audio
			c.calibratedAt = now
			wall = audio
			if c.onRecal != nil {
				c.onRecal(drift)
			}
		}
	}
	if wall < 0 {
		wall = 0
	}
	return wall
}
