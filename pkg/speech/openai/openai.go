// Package openai provides an OpenAI-backed speech provider using the audio
// speech API. OpenAI synthesis returns no timing data, so lines spoken
// through this provider fall back to interpolated word highlighting.
package openai

import (
	"context"
	"fmt"
	"io"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/sversen/novella/pkg/speech"
)

const defaultModel = oai.SpeechModelTTS1

// Option is a functional option for configuring the OpenAI Provider.
type Option func(*Provider)

// WithModel sets the speech model (e.g. "tts-1", "tts-1-hd").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = oai.SpeechModel(model)
	}
}

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// Provider implements speech.Provider backed by the OpenAI audio API.
type Provider struct {
	client  oai.Client
	model   oai.SpeechModel
	baseURL string
}

// New constructs a new OpenAI speech Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	p := &Provider{model: defaultModel}
	for _, o := range opts {
		o(p)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if p.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(p.baseURL))
	}
	p.client = oai.NewClient(reqOpts...)
	return p, nil
}

// Name implements [speech.Provider.Name].
func (p *Provider) Name() string { return "openai" }

// Generate implements [speech.Provider.Generate]. The OpenAI speech endpoint
// streams encoded MP3 bytes and provides no alignment, so Result.Alignment
// is always nil.
func (p *Provider) Generate(ctx context.Context, text, voiceID string) (*speech.Result, error) {
	if voiceID == "" {
		return nil, fmt.Errorf("openai: voiceID must not be empty")
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          p.model,
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(voiceID),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, &speech.ProviderError{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &speech.ProviderError{Provider: "openai", Err: fmt.Errorf("read audio: %w", err)}
	}

	return &speech.Result{
		Audio:    audio,
		MIMEType: "audio/mpeg",
	}, nil
}
