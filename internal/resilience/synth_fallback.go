package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/provider/synth"
)

// SynthFallback implements [synth.Provider] with failover across several
// synthesis backends. Each backend has its own circuit breaker. A failed
// backend is not retried within the same call.
type SynthFallback struct {
	group   *FallbackGroup[namedSynth]
	metrics *observe.Metrics
}

type namedSynth struct {
	name string
	synth.Provider
}

// Compile-time interface assertion.
var _ synth.Provider = (*SynthFallback)(nil)

// NewSynthFallback creates a [SynthFallback] with primary as the preferred
// backend. A nil metrics uses [observe.DefaultMetrics].
func NewSynthFallback(primary synth.Provider, primaryName string, cfg FallbackConfig, metrics *observe.Metrics) *SynthFallback {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &SynthFallback{
		group:   NewFallbackGroup(namedSynth{primaryName, primary}, primaryName, cfg),
		metrics: metrics,
	}
}

// AddFallback registers an additional backend.
func (f *SynthFallback) AddFallback(name string, p synth.Provider) {
	f.group.AddFallback(name, namedSynth{name, p})
}

// Backends returns the backend names in failover order.
func (f *SynthFallback) Backends() []string {
	return f.group.Names()
}

// Synthesize renders req with the first healthy backend. Every attempt is
// counted per backend in the provider request metrics.
func (f *SynthFallback) Synthesize(ctx context.Context, req synth.Request) (audio.Waveform, error) {
	w, served, err := ExecuteWithResult(ctx, f.group, func(p namedSynth) (audio.Waveform, error) {
		w, err := p.Synthesize(ctx, req)
		status := "ok"
		if err != nil {
			status = "error"
		}
		f.metrics.RecordProviderRequest(ctx, p.name, status)
		return w, err
	})
	if err != nil {
		observe.Logger(ctx).Warn("resilience: no synthesis backend succeeded", "breakers", f.group.States())
		return audio.Waveform{}, fmt.Errorf("synthesize: %w", err)
	}
	observe.Logger(ctx).Debug("resilience: synthesized", "provider", served)
	return w, nil
}

// Ready succeeds when at least one backend is ready. Readiness probes do not
// go through the breakers.
func (f *SynthFallback) Ready(ctx context.Context) error {
	var errs []error
	for _, e := range f.group.entries {
		err := e.value.Ready(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
	}
	return errors.Join(errs...)
}
