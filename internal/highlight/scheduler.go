package highlight

import (
	"context"
	"time"

	"github.com/sversen/novella/internal/align"
)

const (
	// DefaultPredictionOffset is added to the measured playback position
	// before matching against word segments. It compensates perceptual and
	// reporting lag so transitions feel synchronised instead of trailing.
	DefaultPredictionOffset = 75 * time.Millisecond

	// DefaultFrameInterval approximates a display refresh at 60 Hz.
	DefaultFrameInterval = 16 * time.Millisecond

	// doneFraction is the share of clip duration past which the scheduler
	// stops, avoiding residual highlight flicker at clip end.
	doneFraction = 0.95
)

// SchedulerConfig configures one [Scheduler] run for a single line.
type SchedulerConfig struct {
	// Clock supplies the fused playback position.
	Clock *Clock

	// Words is the line's timing segments. May be empty, in which case the
	// word index is interpolated from WordCount and Duration.
	Words []align.WordTimestamp

	// WordCount is the number of displayable words in the line, used only
	// for the interpolation fallback.
	WordCount int

	// Duration is the total clip length. Zero disables both interpolation
	// and the 95% termination rule.
	Duration time.Duration

	// PredictionOffset overrides [DefaultPredictionOffset] when positive.
	PredictionOffset time.Duration

	// FrameInterval overrides [DefaultFrameInterval] when positive.
	FrameInterval time.Duration

	// OnWord receives each change of the current word index. Called from
	// the scheduler goroutine; it must not block for a frame's length.
	OnWord func(index int)
}

// Scheduler is the per-line highlight loop. It holds no persisted state:
// everything is derived from the clock and the word list, so a new
// Scheduler can be started at any moment for the same line.
type Scheduler struct {
	cfg SchedulerConfig
}

// NewScheduler builds a Scheduler. Defaults are applied for zero-valued
// knobs.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.PredictionOffset <= 0 {
		cfg.PredictionOffset = DefaultPredictionOffset
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	return &Scheduler{cfg: cfg}
}

// Run drives the highlight loop until ctx is cancelled, the estimated
// progress passes 95% of the clip, or the final segment is reached. Each
// frame re-derives the current word index from the fused clock; no state
// carries over beyond suppressing duplicate emissions.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t := s.cfg.Clock.Estimate(now) + s.cfg.PredictionOffset
			idx := s.indexAt(t)
			if idx >= 0 && idx != last {
				last = idx
				if s.cfg.OnWord != nil {
					s.cfg.OnWord(idx)
				}
			}
			if s.finished(t, idx) {
				return
			}
		}
	}
}

// indexAt maps a compensated playback position to a word index, or -1 when
// nothing should be highlighted.
//
// With timing segments: the segment containing t wins; otherwise the
// segment with the minimum distance to either boundary is a best-effort
// match, so a word is always highlighted once playback has started.
// Without segments: the index is interpolated linearly across the clip.
func (s *Scheduler) indexAt(t time.Duration) int {
	tm := t.Milliseconds()

	if len(s.cfg.Words) > 0 {
		bestIdx, bestDist := -1, int64(-1)
		for i, w := range s.cfg.Words {
			if w.StartMS <= tm && tm <= w.EndMS {
				return i
			}
			d := tm - w.EndMS
			if tm < w.StartMS {
				d = w.StartMS - tm
			}
			if bestDist < 0 || d < bestDist {
				bestIdx, bestDist = i, d
			}
		}
		return bestIdx
	}

	if s.cfg.WordCount > 0 && s.cfg.Duration > 0 {
		idx := int(float64(tm) / float64(s.cfg.Duration.Milliseconds()) * float64(s.cfg.WordCount))
		if idx < 0 {
			idx = 0
		}
		if idx >= s.cfg.WordCount {
			idx = s.cfg.WordCount - 1
		}
		return idx
	}
	return -1
}

// finished reports whether the loop should stop: estimated progress past
// 95% of the clip, or the final segment reached.
func (s *Scheduler) finished(t time.Duration, idx int) bool {
	if s.cfg.Duration > 0 && float64(t) >= doneFraction*float64(s.cfg.Duration) {
		return true
	}
	return len(s.cfg.Words) > 0 && idx == len(s.cfg.Words)-1
}
