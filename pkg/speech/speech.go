// Package speech defines the text-to-speech provider contract consumed by
// the playback core, together with the raw alignment payload shape shared
// between providers, the audio cache, and the alignment converter.
//
// Providers are treated as black boxes: given text and a voice id they
// return audio bytes plus whatever timing data they can produce. Timing data
// is optional — a provider returning audio with no alignment still yields
// playable lines, just with interpolated rather than exact word highlighting.
package speech

import (
	"context"
	"fmt"
)

// RawAlignment is the untrusted, provider-specific timing payload.
//
// Two shapes exist in the wild. Character-synchronised providers fill
// Characters/CharStart/CharEnd (parallel arrays, one entry per character,
// times in seconds). Older payloads carry a pre-segmented word list in
// Legacy instead. Consumers must validate array lengths before use; a
// malformed payload degrades to "no timing available", it is never fatal.
type RawAlignment struct {
	Characters []string  `json:"characters,omitempty"`
	CharStart  []float64 `json:"character_start_times_seconds,omitempty"`
	CharEnd    []float64 `json:"character_end_times_seconds,omitempty"`

	Legacy []LegacyWord `json:"words,omitempty"`
}

// LegacyWord is one entry of the legacy word-array alignment shape.
// Start and End are in seconds.
type LegacyWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Empty reports whether a carries no timing data at all.
func (a *RawAlignment) Empty() bool {
	return a == nil || (len(a.Characters) == 0 && len(a.Legacy) == 0)
}

// Result is a successful synthesis: encoded audio plus optional alignment.
type Result struct {
	// Audio holds the encoded clip bytes.
	Audio []byte

	// MIMEType identifies the audio encoding (e.g. "audio/mpeg").
	MIMEType string

	// Alignment is the provider's raw timing payload, nil when the provider
	// cannot produce one.
	Alignment *RawAlignment
}

// Provider synthesises speech for a single block of text.
//
// Generate must not be called concurrently for the same playback session —
// the playback controller's single-flight guard enforces this. Providers do
// not need their own request serialisation.
type Provider interface {
	// Generate synthesises text with the given voice. Returns a
	// [*ProviderError] on HTTP or network failure.
	Generate(ctx context.Context, text, voiceID string) (*Result, error)

	// Name returns the provider's short identifier (e.g. "elevenlabs").
	Name() string
}

// ProviderError describes a failed provider call. It is recoverable: the
// playback controller surfaces the message and releases the single-flight
// guard so the user can retry the line.
type ProviderError struct {
	// Provider is the short name of the failing provider.
	Provider string

	// Status is the HTTP status code, 0 for transport-level failures.
	Status int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: synthesis failed (HTTP %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: synthesis failed: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error { return e.Err }
