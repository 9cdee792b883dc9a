// Package engine orchestrates one expressive utterance end to end: prosody
// resolution, text transformation, synthesis through a [synth.Provider], the
// effects chain and, optionally, writing the result to a WAV file.
//
// An [Orchestrator] owns an [effects.Chain] and serialises calls to it, so a
// single Orchestrator may be shared between goroutines. Throughput is bounded
// by the synthesis backend, not by the effects pass.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/effects"
	"github.com/MrWong99/prosodia/pkg/emotion"
	"github.com/MrWong99/prosodia/pkg/prosody"
	"github.com/MrWong99/prosodia/pkg/provider/synth"
)

// Request describes one utterance to render.
type Request struct {
	// Text is the original utterance. Breath placement is keyed off its
	// sentence terminators.
	Text string

	// Context selects emotion, urgency and relationship stage. Empty fields
	// take their defaults.
	Context prosody.Context

	// Voice overrides the provider's default voice when non-empty.
	Voice string
}

// Result is a rendered utterance and the values that shaped it.
type Result struct {
	Waveform    audio.Waveform
	Text        string
	Emotion     emotion.Profile
	Parameters  prosody.Parameters
	Profile     effects.Profile
	Speed       float64
	SynthTime   time.Duration
	EffectsTime time.Duration
}

// Orchestrator renders [Request]s. Create one with [New].
type Orchestrator struct {
	provider synth.Provider
	metrics  *observe.Metrics
	timeout  time.Duration

	mu    sync.Mutex
	chain *effects.Chain
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithSynthTimeout bounds each call to the synthesis backend. Zero leaves
// only the caller's context in effect.
func WithSynthTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// New returns an Orchestrator that synthesises with p and post-processes
// with chain. Both are required.
func New(p synth.Provider, chain *effects.Chain, opts ...Option) (*Orchestrator, error) {
	if p == nil {
		return nil, errors.New("engine: synthesis provider must not be nil")
	}
	if chain == nil {
		return nil, errors.New("engine: effects chain must not be nil")
	}
	o := &Orchestrator{
		provider: p,
		chain:    chain,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o, nil
}

// Ready reports whether the synthesis backend can accept requests.
func (o *Orchestrator) Ready(ctx context.Context) error {
	if err := o.provider.Ready(ctx); err != nil {
		return fmt.Errorf("engine: synthesis backend not ready: %w", err)
	}
	return nil
}

// Speak renders req into a waveform at [audio.SampleRate].
//
// The speaking speed handed to the backend is the product of the emotion's
// rate and the resolved prosody rate. Unknown emotions fall back to neutral.
func (o *Orchestrator) Speak(ctx context.Context, req Request) (*Result, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("engine: %w", synth.ErrEmptyText)
	}
	pc := req.Context.WithDefaults()

	ctx, span := observe.StartSpan(ctx, "engine.Speak")
	defer span.End()
	span.SetAttributes(
		attribute.String("emotion", string(pc.Emotion)),
		attribute.String("urgency", string(pc.Urgency)),
		attribute.String("stage", string(pc.Stage)),
	)
	log := observe.Logger(ctx)

	if !emotion.Known(pc.Emotion) {
		log.Warn("engine: unknown emotion, using neutral", "emotion", pc.Emotion)
	}
	ep := emotion.Lookup(pc.Emotion)
	params := prosody.Resolve(pc)
	text := prosody.Transform(req.Text, params)
	profile := effects.Resolve(ep, params)
	if words := prosody.Emphasis(req.Text); len(words) > 0 {
		log.Debug("engine: emphasis candidates", "words", words)
	}

	log.Info("engine: synthesizing",
		"emotion", ep.ID,
		"description", ep.Description,
		"speed", profile.Rate,
	)

	start := time.Now()
	w, err := o.synthesize(ctx, synth.Request{
		Text:  text,
		Speed: profile.Rate,
		Voice: req.Voice,
	})
	synthTime := time.Since(start)
	observe.Since(ctx, o.metrics.SynthesisDuration, start, observe.Attr("emotion", string(ep.ID)))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("engine: synthesize: %w", err)
	}
	if w.SampleRate != audio.SampleRate {
		w = (&audio.FormatConverter{Target: audio.SampleRate}).Convert(w.Samples, w.SampleRate, 1)
	}

	start = time.Now()
	o.mu.Lock()
	samples, err := o.chain.Apply(w.Samples, profile, req.Text)
	o.mu.Unlock()
	effectsTime := time.Since(start)
	observe.Since(ctx, o.metrics.EffectsDuration, start, observe.Attr("emotion", string(ep.ID)))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("engine: effects: %w", err)
	}

	out := audio.Waveform{Samples: samples, SampleRate: audio.SampleRate}
	log.Debug("engine: utterance rendered",
		"seconds", out.Seconds(),
		"synth_time", synthTime,
		"effects_time", effectsTime,
	)
	return &Result{
		Waveform:    out,
		Text:        text,
		Emotion:     ep,
		Parameters:  params,
		Profile:     profile,
		Speed:       profile.Rate,
		SynthTime:   synthTime,
		EffectsTime: effectsTime,
	}, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, req synth.Request) (audio.Waveform, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return o.provider.Synthesize(ctx, req)
}

// SpeakToFile renders req and writes it to path as 16-bit PCM mono WAV.
func (o *Orchestrator) SpeakToFile(ctx context.Context, req Request, path string) (*Result, error) {
	res, err := o.Speak(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := audio.WriteFile(path, res.Waveform); err != nil {
		return nil, fmt.Errorf("engine: write %s: %w", path, err)
	}
	observe.Logger(ctx).Info("engine: audio saved", "path", path, "seconds", res.Waveform.Seconds())
	return res, nil
}
