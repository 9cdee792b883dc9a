// Package openai provides a synthesis provider backed by the OpenAI speech
// API (POST /audio/speech). Responses are requested as WAV and converted to
// the pipeline's mono working rate.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/provider/synth"
)

const (
	// DefaultModel is the default OpenAI speech model.
	DefaultModel = oai.SpeechModelTTS1

	// DefaultVoice is used when neither the request nor the provider names one.
	DefaultVoice = "alloy"

	// The speech endpoint accepts speeds in this closed range.
	minSpeed = 0.25
	maxSpeed = 4.0
)

// Ensure Provider implements the synth.Provider interface.
var _ synth.Provider = (*Provider)(nil)

// Provider implements synth.Provider using the OpenAI speech API.
type Provider struct {
	client oai.Client
	model  string
	voice  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	voice   string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithVoice sets the default voice (e.g. "alloy", "onyx").
func WithVoice(voice string) Option {
	return func(c *config) {
		c.voice = voice
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI speech Provider.
// If model is empty, DefaultModel (tts-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai synth: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{voice: DefaultVoice}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model, voice: cfg.voice}, nil
}

// Synthesize implements synth.Provider. Speed is passed natively, clamped to
// the range the endpoint accepts.
func (p *Provider) Synthesize(ctx context.Context, req synth.Request) (audio.Waveform, error) {
	if strings.TrimSpace(req.Text) == "" {
		return audio.Waveform{}, synth.ErrEmptyText
	}
	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatWAV,
		Speed:          param.NewOpt(min(max(req.SpeedOrDefault(), minSpeed), maxSpeed)),
	})
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("openai synth: speech: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("openai synth: read response: %w", err)
	}
	w, err := audio.DecodeWAV(body)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("openai synth: %w", err)
	}
	conv := audio.FormatConverter{Target: audio.SampleRate}
	return conv.Convert(w.Samples, w.SampleRate, 1), nil
}

// Ready implements synth.Provider by retrieving the configured model.
func (p *Provider) Ready(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.model); err != nil {
		return fmt.Errorf("openai synth: model %q: %w", p.model, err)
	}
	return nil
}

// ModelID returns the configured speech model.
func (p *Provider) ModelID() string {
	return p.model
}
