// Package mock provides a test double for the speech.Provider interface.
//
// Use Provider to feed controlled synthesis results to consumers and to
// verify which text and voice each call received.
//
// Example:
//
//	p := &mock.Provider{
//	    GenerateResult: &speech.Result{Audio: []byte("clip"), MIMEType: "audio/mpeg"},
//	}
//	res, _ := p.Generate(ctx, "Hi Bob.", "voice-1")
package mock

import (
	"context"
	"sync"

	"github.com/sversen/novella/pkg/speech"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	// Ctx is the context passed to Generate.
	Ctx context.Context
	// Text is the text passed to Generate.
	Text string
	// VoiceID is the voice id passed to Generate.
	VoiceID string
}

// Provider is a mock implementation of speech.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// GenerateResult is returned from Generate when GenerateErr is nil.
	GenerateResult *speech.Result

	// GenerateErr, if non-nil, is returned as the error from Generate.
	GenerateErr error

	// GenerateFunc, if non-nil, overrides both fields above.
	GenerateFunc func(ctx context.Context, text, voiceID string) (*speech.Result, error)

	// Block, if non-nil, is received from before Generate returns. Tests use
	// it to hold a generation in flight.
	Block <-chan struct{}

	// --- Recorded calls ---

	// GenerateCalls records every invocation of Generate.
	GenerateCalls []GenerateCall
}

// Name implements speech.Provider.
func (p *Provider) Name() string { return "mock" }

// Generate implements speech.Provider.
func (p *Provider) Generate(ctx context.Context, text, voiceID string) (*speech.Result, error) {
	p.mu.Lock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Ctx: ctx, Text: text, VoiceID: voiceID})
	block := p.Block
	fn := p.GenerateFunc
	res, err := p.GenerateResult, p.GenerateErr
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fn != nil {
		return fn(ctx, text, voiceID)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &speech.Result{Audio: []byte("mock audio"), MIMEType: "audio/mpeg"}
	}
	return res, nil
}

// CallCount returns the number of Generate invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.GenerateCalls)
}
