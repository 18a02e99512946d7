// Package elevenlabs provides an ElevenLabs-backed speech provider using the
// with-timestamps synthesis endpoint, which returns character-level alignment
// alongside the audio. It implements the speech.Provider interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sversen/novella/pkg/speech"
)

const (
	synthesizeEndpointFmt = "https://api.elevenlabs.io/v1/text-to-speech/%s/with-timestamps?output_format=%s"
	voicesEndpoint        = "https://api.elevenlabs.io/v1/voices"
	defaultModel          = "eleven_multilingual_v2"
	defaultOutputFmt      = "mp3_44100_128"
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_multilingual_v2").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "mp3_44100_128").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithBaseURL overrides the API base URL. Used by tests to point the
// provider at a local httptest server.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// Provider implements speech.Provider backed by the ElevenLabs HTTP API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	baseURL      string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements [speech.Provider.Name].
func (p *Provider) Name() string { return "elevenlabs" }

// ---- Request/response types ----

// synthesizeRequest is the JSON body sent to the with-timestamps endpoint.
type synthesizeRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// synthesizeResponse is the JSON response from the with-timestamps endpoint.
// Alignment uses the same parallel-array shape as [speech.RawAlignment].
type synthesizeResponse struct {
	AudioBase64 string               `json:"audio_base64"`
	Alignment   *speech.RawAlignment `json:"alignment"`
}

// Generate implements [speech.Provider.Generate]. It POSTs the text to the
// with-timestamps endpoint and decodes the base64 audio plus the
// character-level alignment arrays.
func (p *Provider) Generate(ctx context.Context, text, voiceID string) (*speech.Result, error) {
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voiceID must not be empty")
	}

	body := synthesizeRequest{
		Text:    text,
		ModelID: p.model,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf(synthesizeEndpointFmt, voiceID, p.outputFormat)
	if p.baseURL != "" {
		url = fmt.Sprintf(p.baseURL+"/v1/text-to-speech/%s/with-timestamps?output_format=%s", voiceID, p.outputFormat)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &speech.ProviderError{Provider: "elevenlabs", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &speech.ProviderError{
			Provider: "elevenlabs",
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("unexpected status: %s", bytes.TrimSpace(msg)),
		}
	}

	var sr synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, &speech.ProviderError{Provider: "elevenlabs", Err: fmt.Errorf("decode response: %w", err)}
	}

	audio, err := base64.StdEncoding.DecodeString(sr.AudioBase64)
	if err != nil {
		return nil, &speech.ProviderError{Provider: "elevenlabs", Err: fmt.Errorf("decode audio: %w", err)}
	}

	return &speech.Result{
		Audio:     audio,
		MIMEType:  "audio/mpeg",
		Alignment: sr.Alignment,
	}, nil
}

// ---- ListVoices ----

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// Voice describes an available ElevenLabs voice.
type Voice struct {
	ID       string
	Name     string
	Metadata map[string]string
}

// ListVoices returns all voices available for the configured API key.
func (p *Provider) ListVoices(ctx context.Context) ([]Voice, error) {
	url := voicesEndpoint
	if p.baseURL != "" {
		url = p.baseURL + "/v1/voices"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: unexpected status %d", resp.StatusCode)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	return voicesFromResponse(vr), nil
}

// voicesFromResponse converts the API response into Voice values.
func voicesFromResponse(vr voicesResponse) []Voice {
	voices := make([]Voice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		meta := make(map[string]string, len(v.Labels)+1)
		for k, val := range v.Labels {
			meta[k] = val
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		voices = append(voices, Voice{
			ID:       v.VoiceID,
			Name:     v.Name,
			Metadata: meta,
		})
	}
	return voices
}
