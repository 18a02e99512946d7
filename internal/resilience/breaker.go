// Package resilience protects playback from a failing speech provider.
//
// The central type is [Breaker], a three-state circuit breaker
// (closed → open → half-open). [WrapProvider] composes it with any
// speech.Provider so that repeated synthesis failures short-circuit to an
// immediate error: lines degrade to silent text quickly instead of every
// advance stalling on a provider timeout.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sversen/novella/pkg/speech"
)

// ErrUnavailable is returned by [Breaker.Do] while the breaker is open and
// the cooldown has not yet elapsed.
var ErrUnavailable = errors.New("resilience: provider temporarily unavailable")

// breakerState is the breaker's operating mode.
type breakerState int

const (
	// stateClosed forwards all calls.
	stateClosed breakerState = iota

	// stateOpen rejects calls until the cooldown elapses.
	stateOpen

	// stateHalfOpen lets a single probe call through; its outcome decides
	// between closing and re-opening.
	stateHalfOpen
)

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// MaxFailures is the number of consecutive failures before the
	// breaker opens. Default: 3.
	MaxFailures int

	// Cooldown is how long the breaker stays open before allowing a
	// probe. Default: 30s.
	Cooldown time.Duration
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a [Breaker]. Zero-value config fields get defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
	}
}

// Do runs fn if the breaker allows it, returning [ErrUnavailable] otherwise.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case stateOpen:
		if time.Since(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrUnavailable
		}
		b.state = stateHalfOpen
		b.probing = false
		slog.Info("breaker half-open, probing provider", "name", b.name)
		fallthrough
	case stateHalfOpen:
		if b.probing {
			b.mu.Unlock()
			return ErrUnavailable
		}
		b.probing = true
	}
	probe := b.state == stateHalfOpen
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.openedAt = time.Now()
		if probe {
			b.state = stateOpen
			slog.Warn("breaker re-opened after failed probe", "name", b.name)
			return err
		}
		b.failures++
		if b.failures >= b.maxFailures {
			b.state = stateOpen
			slog.Warn("breaker opened", "name", b.name, "consecutive_failures", b.failures)
		}
		return err
	}

	if probe {
		slog.Info("breaker closed after successful probe", "name", b.name)
	}
	b.state = stateClosed
	b.failures = 0
	b.probing = false
	return nil
}

// Provider wraps a speech.Provider with a [Breaker].
type Provider struct {
	inner   speech.Provider
	breaker *Breaker
}

// Compile-time interface check.
var _ speech.Provider = (*Provider)(nil)

// WrapProvider guards p with breaker b.
func WrapProvider(p speech.Provider, b *Breaker) *Provider {
	return &Provider{inner: p, breaker: b}
}

// Name implements speech.Provider.
func (p *Provider) Name() string { return p.inner.Name() }

// Generate implements speech.Provider, forwarding through the breaker.
func (p *Provider) Generate(ctx context.Context, text, voiceID string) (*speech.Result, error) {
	var res *speech.Result
	err := p.breaker.Do(func() error {
		var genErr error
		res, genErr = p.inner.Generate(ctx, text, voiceID)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
