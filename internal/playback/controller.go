// Package playback implements the state machine that drives line-by-line
// story playback: cache lookup versus fresh synthesis, the single-flight
// generation guard, highlight scheduling, and scene/beat advancement.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sversen/novella/internal/align"
	"github.com/sversen/novella/internal/audiocache"
	"github.com/sversen/novella/internal/highlight"
	"github.com/sversen/novella/internal/media"
	"github.com/sversen/novella/internal/observe"
	"github.com/sversen/novella/internal/script"
	"github.com/sversen/novella/pkg/audio"
	"github.com/sversen/novella/pkg/speech"
)

var (
	// ErrBusy is returned when a play request arrives while a generation is
	// already in flight. Requests are dropped, never queued; the caller must
	// re-trigger explicitly.
	ErrBusy = errors.New("playback: generation already in flight")

	// ErrNoScene is returned by operations that require a loaded scene.
	ErrNoScene = errors.New("playback: no scene loaded")

	// ErrUnknownScene is returned when the requested scene id does not exist.
	ErrUnknownScene = errors.New("playback: unknown scene")

	// ErrUnknownChoice is returned by Choose for an id that is not among the
	// current choices.
	ErrUnknownChoice = errors.New("playback: unknown choice")
)

// Config wires a [Controller]'s collaborators. Provider and Prefetcher may
// be nil; lines then play text-only and media is not prefetched.
type Config struct {
	Provider   speech.Provider
	Cache      *audiocache.Cache
	Player     audio.Player
	Resolver   *script.Resolver
	Scenes     script.SceneSource
	Prefetcher *media.Prefetcher
	Metrics    *observe.Metrics
	Logger     *slog.Logger

	// Language is the active story language, used for cache queries and
	// narrator voice selection.
	Language string

	// Scheduler knobs; zero values select the package defaults.
	PredictionOffset     time.Duration
	RecalibrateThreshold time.Duration
	FrameInterval        time.Duration

	// OnState receives a snapshot after every observable state change.
	// Called outside the controller's lock, so it may call back into the
	// controller; it must not block for long.
	OnState func(Snapshot)

	// OnHighlight receives word index changes for the playing line.
	OnHighlight func(lineIndex, wordIndex int)
}

// Controller owns the playback pointers for one player session. All
// exported methods are safe for concurrent use.
type Controller struct {
	cfg Config

	flight *semaphore.Weighted

	mu          sync.Mutex
	state       State
	scene       *script.Scene
	beatIndex   int
	lineIndex   int
	lines       []script.Line
	audioSource AudioSource
	audioErr    string
	wordIndex   int
	locked      bool
	epoch       uint64
	session     audio.Session
	cancelLine  context.CancelFunc
}

// New builds an idle Controller.
func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Controller{
		cfg:       cfg,
		flight:    semaphore.NewWeighted(1),
		state:     StateIdle,
		wordIndex: -1,
	}
}

// LoadScene resets the controller onto the named scene: any in-flight audio
// is torn down, pointers reset, and the first beat's lines are parsed.
func (c *Controller) LoadScene(ctx context.Context, sceneID string) error {
	if c.cfg.Scenes == nil {
		return ErrUnknownScene
	}
	scene, ok := c.cfg.Scenes.Scene(sceneID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScene, sceneID)
	}

	c.mu.Lock()
	c.unwindLocked()
	c.scene = scene
	c.beatIndex = 0
	c.audioErr = ""
	c.loadBeatLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.prefetch(ctx, scene)
	c.notify(snap)
	return nil
}

// PlayLine triggers audio for the current line. The single-flight guard is
// acquired atomically before any asynchronous work starts; if it is held,
// the request is dropped with [ErrBusy]. Lines that are not spoken report a
// recoverable error through the snapshot instead.
func (c *Controller) PlayLine(ctx context.Context) error {
	c.mu.Lock()

	if c.scene == nil {
		c.mu.Unlock()
		return ErrNoScene
	}
	if c.state != StateLineActive && c.state != StateEnded {
		c.mu.Unlock()
		return fmt.Errorf("playback: cannot play in state %s", c.state)
	}
	line, ok := c.currentLineLocked()
	if !ok {
		c.mu.Unlock()
		return ErrNoScene
	}

	if !line.IsSpoken {
		// Configuration error: recoverable, no lock held, no state change.
		c.audioErr = fmt.Sprintf("no voice assigned for speaker %q", line.Speaker)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return nil
	}

	if !c.flight.TryAcquire(1) {
		c.mu.Unlock()
		return ErrBusy
	}
	c.locked = true
	c.audioErr = ""
	c.epoch++
	epoch := c.epoch

	lineCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancelLine = cancel

	query := audiocache.Query{
		SceneID:   c.scene.ID,
		BeatID:    c.currentBeatIDLocked(),
		BeatIndex: c.beatIndex,
		Speaker:   line.Speaker,
		Language:  c.cfg.Language,
		Text:      line.Text,
	}
	c.mu.Unlock()

	go c.run(lineCtx, epoch, line, query)
	return nil
}

// Advance moves to the next line, beat, choice, or scene end. Any in-flight
// audio is torn down first; advancement is always manual except for the
// media failure case handled internally.
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.Lock()
	if c.scene == nil {
		c.mu.Unlock()
		return ErrNoScene
	}
	c.unwindLocked()
	next := c.advanceLocked()
	snap := c.snapshotLocked()
	scene := c.scene
	c.mu.Unlock()

	if next {
		c.prefetch(ctx, scene)
	}
	c.notify(snap)
	return nil
}

// Skip force-stops current audio, fully unwinding the playback session
// before releasing the guard, then advances immediately.
func (c *Controller) Skip(ctx context.Context) error {
	return c.Advance(ctx)
}

// Choose follows the outgoing choice with the given id. Only valid while
// choices are shown.
func (c *Controller) Choose(ctx context.Context, choiceID string) error {
	c.mu.Lock()
	if c.scene == nil {
		c.mu.Unlock()
		return ErrNoScene
	}
	if c.state != StateChoicesShown {
		c.mu.Unlock()
		return fmt.Errorf("playback: cannot choose in state %s", c.state)
	}

	var target string
	for _, ch := range c.scene.Choices {
		if ch.ID == choiceID {
			target = ch.Target
			break
		}
	}
	c.mu.Unlock()

	if target == "" {
		return fmt.Errorf("%w: %q", ErrUnknownChoice, choiceID)
	}
	return c.LoadScene(ctx, target)
}

// Close tears down any in-flight audio and returns the controller to idle.
func (c *Controller) Close() {
	c.mu.Lock()
	c.unwindLocked()
	c.scene = nil
	c.lines = nil
	c.beatIndex = 0
	c.lineIndex = 0
	c.audioErr = ""
	c.state = StateIdle
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.cfg.Prefetcher != nil {
		c.cfg.Prefetcher.Reset()
	}
	c.notify(snap)
}

// Snapshot returns a copy of the observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// run is the asynchronous generation/playback pipeline for one line. Every
// state application is validated against the epoch captured at acquisition
// so results arriving after a scene change, skip, or close are discarded.
func (c *Controller) run(ctx context.Context, epoch uint64, line script.Line, query audiocache.Query) {
	ctx, span := observe.StartLineSpan(ctx, query.SceneID, query.BeatID, line.Speaker)
	defer span.End()

	entry, err := c.lookup(ctx, epoch, query)
	if err != nil {
		return
	}

	if entry == nil {
		entry, err = c.generate(ctx, epoch, line, query)
		if err != nil || entry == nil {
			return
		}
	}

	c.play(ctx, epoch, line, entry)
}

// lookup runs the cache ladder. A non-nil entry short-circuits generation.
func (c *Controller) lookup(ctx context.Context, epoch uint64, query audiocache.Query) (*audiocache.Entry, error) {
	if c.cfg.Cache == nil {
		return nil, nil
	}

	entry, strategy, err := c.cfg.Cache.Find(ctx, query)
	c.cfg.Metrics.RecordCacheLookup(ctx, string(strategy))
	if err != nil {
		c.fail(epoch, "audio cache unavailable", err)
		return nil, err
	}
	if entry == nil || len(entry.Audio) == 0 {
		return nil, nil
	}

	c.transition(epoch, StateCacheHit, SourceCache)
	return entry, nil
}

// generate synthesises fresh audio and records it in the cache.
func (c *Controller) generate(ctx context.Context, epoch uint64, line script.Line, query audiocache.Query) (*audiocache.Entry, error) {
	if c.cfg.Provider == nil {
		err := errors.New("no speech provider configured")
		c.fail(epoch, "speech synthesis unavailable", err)
		return nil, err
	}

	if !c.transition(epoch, StateGenerating, SourceFresh) {
		return nil, context.Canceled
	}

	start := time.Now()
	res, err := c.cfg.Provider.Generate(ctx, line.Text, line.VoiceID)
	c.cfg.Metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.cfg.Metrics.RecordProviderError(ctx, c.cfg.Provider.Name())
		c.fail(epoch, "speech synthesis failed", err)
		return nil, err
	}

	entry := &audiocache.Entry{
		Audio:     res.Audio,
		MIMEType:  res.MIMEType,
		Alignment: res.Alignment,
	}
	if c.cfg.Cache != nil {
		key := audiocache.Key(query)
		if err := c.cfg.Cache.Record(ctx, key, *entry); err != nil {
			// Recording is best-effort: playback proceeds with the fresh
			// result even when persistence fails.
			c.cfg.Logger.Warn("failed to record generated audio",
				"key", key, "err", err)
		}
	}
	return entry, nil
}

// play starts the audio session and the highlight scheduler for the line.
func (c *Controller) play(ctx context.Context, epoch uint64, line script.Line, entry *audiocache.Entry) {
	if c.cfg.Player == nil {
		c.fail(epoch, "no audio output available", errors.New("player not configured"))
		return
	}

	c.mu.Lock()
	stale := epoch != c.epoch
	c.mu.Unlock()
	if stale {
		return
	}

	clip := audio.Clip{Data: entry.Audio, MIMEType: entry.MIMEType}
	sess, err := c.cfg.Player.Play(ctx, clip)
	if err != nil {
		// Media failure: the one case that advances automatically, since
		// the clip itself cannot be retried meaningfully.
		c.failAndAdvance(epoch, "audio playback failed", err)
		return
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		sess.Stop()
		return
	}
	c.state = StatePlaying
	c.session = sess
	c.wordIndex = -1
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	c.cfg.Metrics.RecordLinePlayed(ctx, string(snap.AudioSource))

	words := align.ToWordTimestamps(entry.Alignment)
	clock := highlight.NewClock(sess.Position, time.Now(), c.cfg.RecalibrateThreshold)
	clock.OnRecalibrate(func(drift time.Duration) {
		c.cfg.Metrics.RecordHighlightDrift(ctx, drift)
	})
	sched := highlight.NewScheduler(highlight.SchedulerConfig{
		Clock:            clock,
		Words:            words,
		WordCount:        len(align.Segments(line.Text)),
		Duration:         sess.Duration(),
		PredictionOffset: c.cfg.PredictionOffset,
		FrameInterval:    c.cfg.FrameInterval,
		OnWord: func(idx int) {
			c.setWord(epoch, idx)
		},
	})
	go sched.Run(ctx)

	select {
	case <-sess.Done():
		c.finish(epoch)
	case <-ctx.Done():
		// Unwound elsewhere; nothing to apply.
	}
}

// finish handles the audio-finished signal: releases the guard and enters
// Ended. No automatic advancement happens here.
func (c *Controller) finish(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.state = StateEnded
	c.session = nil
	if c.cancelLine != nil {
		c.cancelLine()
		c.cancelLine = nil
	}
	c.releaseFlightLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// transition applies a state change if the epoch is still current.
func (c *Controller) transition(epoch uint64, s State, src AudioSource) bool {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return false
	}
	c.state = s
	c.audioSource = src
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return true
}

// fail converts an I/O failure into observable state: the message is stored,
// the guard released, and the machine returns to LineActive. Never panics,
// never propagates upward.
func (c *Controller) fail(epoch uint64, msg string, err error) {
	c.cfg.Logger.Warn(msg, "err", err)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.audioErr = msg
	c.audioSource = SourceNone
	c.state = StateLineActive
	c.session = nil
	c.releaseFlightLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// failAndAdvance is fail plus automatic advancement, used only for media
// element failures.
func (c *Controller) failAndAdvance(epoch uint64, msg string, err error) {
	c.cfg.Logger.Warn(msg, "err", err)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.audioSource = SourceNone
	c.session = nil
	c.releaseFlightLocked()
	c.advanceLocked()
	c.audioErr = msg
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// setWord applies a highlight index change from the scheduler goroutine.
func (c *Controller) setWord(epoch uint64, idx int) {
	c.mu.Lock()
	if epoch != c.epoch || c.state != StatePlaying {
		c.mu.Unlock()
		return
	}
	c.wordIndex = idx
	lineIdx := c.lineIndex
	c.mu.Unlock()

	if c.cfg.OnHighlight != nil {
		c.cfg.OnHighlight(lineIdx, idx)
	}
}

// advanceLocked moves the pointers: next line, next beat, single-choice
// auto-follow, choices, or scene end. Returns true when a new beat's lines
// were loaded. Caller holds c.mu.
func (c *Controller) advanceLocked() bool {
	c.audioErr = ""
	if c.lineIndex+1 < len(c.lines) {
		c.lineIndex++
		c.state = StateLineActive
		return false
	}

	if c.beatIndex+1 < len(c.scene.Beats) {
		c.beatIndex++
		c.loadBeatLocked()
		return true
	}

	switch len(c.scene.Choices) {
	case 0:
		c.state = StateSceneEnded
	case 1:
		// Single outgoing choice: follow it without asking.
		target := c.scene.Choices[0].Target
		if c.cfg.Scenes != nil {
			if scene, ok := c.cfg.Scenes.Scene(target); ok {
				c.scene = scene
				c.beatIndex = 0
				c.loadBeatLocked()
				return true
			}
		}
		c.cfg.Logger.Warn("choice targets unknown scene", "target", target)
		c.state = StateSceneEnded
	default:
		c.state = StateChoicesShown
	}
	return false
}

// loadBeatLocked parses the current beat (or unstructured scene content)
// into lines and resets the line pointer. Caller holds c.mu.
func (c *Controller) loadBeatLocked() {
	if len(c.scene.Beats) > 0 {
		c.lines = script.ParseBeat(c.scene.Beats[c.beatIndex], c.cfg.Resolver)
	} else {
		c.lines = script.ParseScene(c.scene.Content, c.cfg.Resolver)
	}
	c.lineIndex = 0
	c.wordIndex = -1
	c.audioSource = SourceNone
	c.audioErr = ""

	if len(c.lines) == 0 {
		// Nothing displayable; fall through to choices or scene end.
		c.advanceEmptyLocked()
		return
	}
	c.state = StateLineActive
}

// advanceEmptyLocked resolves the terminal state for a scene whose current
// beat produced no lines. Caller holds c.mu.
func (c *Controller) advanceEmptyLocked() {
	if c.beatIndex+1 < len(c.scene.Beats) {
		c.beatIndex++
		c.loadBeatLocked()
		return
	}
	switch len(c.scene.Choices) {
	case 0:
		c.state = StateSceneEnded
	case 1:
		c.state = StateSceneEnded
		if c.cfg.Scenes != nil {
			if scene, ok := c.cfg.Scenes.Scene(c.scene.Choices[0].Target); ok {
				c.scene = scene
				c.beatIndex = 0
				c.loadBeatLocked()
			}
		}
	default:
		c.state = StateChoicesShown
	}
}

// unwindLocked tears down in-flight audio: the session is stopped, the line
// context cancelled, the epoch bumped so late results are discarded, and
// the guard released. Caller holds c.mu.
func (c *Controller) unwindLocked() {
	if c.session != nil {
		c.session.Stop()
		c.session = nil
	}
	if c.cancelLine != nil {
		c.cancelLine()
		c.cancelLine = nil
	}
	c.epoch++
	c.releaseFlightLocked()
	c.audioSource = SourceNone
	c.wordIndex = -1
}

// releaseFlightLocked releases the single-flight guard exactly once.
// Caller holds c.mu.
func (c *Controller) releaseFlightLocked() {
	if c.locked {
		c.flight.Release(1)
		c.locked = false
	}
}

func (c *Controller) currentLineLocked() (script.Line, bool) {
	if c.lineIndex < 0 || c.lineIndex >= len(c.lines) {
		return script.Line{}, false
	}
	return c.lines[c.lineIndex], true
}

func (c *Controller) currentBeatIDLocked() string {
	if c.scene == nil || c.beatIndex >= len(c.scene.Beats) {
		return ""
	}
	return c.scene.Beats[c.beatIndex].ID
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:       c.state,
		BeatIndex:   c.beatIndex,
		LineIndex:   c.lineIndex,
		AudioSource: c.audioSource,
		AudioError:  c.audioErr,
		WordIndex:   c.wordIndex,
		Locked:      c.locked,
	}
	if c.scene != nil {
		snap.SceneID = c.scene.ID
		snap.Choices = append([]script.Choice(nil), c.scene.Choices...)
	}
	snap.Lines = append([]script.Line(nil), c.lines...)
	return snap
}

// prefetch resolves the scene's media refs in the background.
func (c *Controller) prefetch(ctx context.Context, scene *script.Scene) {
	if c.cfg.Prefetcher == nil || scene == nil {
		return
	}
	go func() {
		if err := c.cfg.Prefetcher.PrefetchScene(context.WithoutCancel(ctx), scene); err != nil {
			c.cfg.Logger.Warn("media prefetch failed", "scene", scene.ID, "err", err)
		}
	}()
}

func (c *Controller) notify(snap Snapshot) {
	if c.cfg.OnState != nil {
		c.cfg.OnState(snap)
	}
}
