// Package mock provides test doubles for the audio.Player and audio.Session
// interfaces. The Session's position is set manually by the test, which makes
// highlight timing fully deterministic.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/sversen/novella/pkg/audio"
)

// PlayCall records a single invocation of Play.
type PlayCall struct {
	// Ctx is the context passed to Play.
	Ctx context.Context
	// Clip is the clip passed to Play.
	Clip audio.Clip
}

// Player is a mock implementation of audio.Player.
type Player struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned from Play instead of a session.
	PlayErr error

	// SessionDuration is the duration reported by handed-out sessions.
	// Defaults to one second.
	SessionDuration time.Duration

	// PlayCalls records every invocation of Play.
	PlayCalls []PlayCall

	// Sessions holds every session handed out, in order.
	Sessions []*Session
}

// Play implements audio.Player.
func (p *Player) Play(ctx context.Context, clip audio.Clip) (audio.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.PlayCalls = append(p.PlayCalls, PlayCall{Ctx: ctx, Clip: clip})
	if p.PlayErr != nil {
		return nil, p.PlayErr
	}
	d := p.SessionDuration
	if d == 0 {
		d = time.Second
	}
	s := NewSession(d)
	p.Sessions = append(p.Sessions, s)
	return s, nil
}

// CallCount returns the number of Play invocations so far.
func (p *Player) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.PlayCalls)
}

// LastSession returns the most recently created session, or nil.
func (p *Player) LastSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Sessions) == 0 {
		return nil
	}
	return p.Sessions[len(p.Sessions)-1]
}

// Session is a scripted audio.Session.
type Session struct {
	mu       sync.Mutex
	pos      time.Duration
	duration time.Duration
	stopped  bool

	once sync.Once
	done chan struct{}
}

// NewSession returns a Session reporting the given total duration.
func NewSession(duration time.Duration) *Session {
	return &Session{
		duration: duration,
		done:     make(chan struct{}),
	}
}

// SetPosition sets the position reported by Position.
func (s *Session) SetPosition(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = pos
}

// Finish simulates the clip reaching its end: Done is closed.
func (s *Session) Finish() {
	s.once.Do(func() { close(s.done) })
}

// Stopped reports whether Stop has been called.
func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Position implements audio.Session.
func (s *Session) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Duration implements audio.Session.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// Done implements audio.Session.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stop implements audio.Session.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.Finish()
}
