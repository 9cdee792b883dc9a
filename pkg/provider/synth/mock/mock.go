// Package mock provides a test double for the synth.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Result: mock.Sine(220, 1)}
//	w, _ := p.Synthesize(ctx, synth.Request{Text: "Hello."})
//	// p.Calls[0].Request.Text == "Hello."
package mock

import (
	"context"
	"math"
	"sync"

	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/provider/synth"
)

// Call records a single invocation of Synthesize.
type Call struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Request is the request passed to Synthesize.
	Request synth.Request
}

// Provider is a mock implementation of synth.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Result is returned by Synthesize. Its samples are copied per call.
	Result audio.Waveform

	// Err, if non-nil, is returned from Synthesize instead of Result.
	Err error

	// ReadyErr is returned by Ready.
	ReadyErr error

	// --- Call records ---

	// Calls records every call to Synthesize in order.
	Calls []Call

	// ReadyCalls counts calls to Ready.
	ReadyCalls int
}

// Synthesize records the call and returns a copy of Result, or Err.
func (p *Provider) Synthesize(ctx context.Context, req synth.Request) (audio.Waveform, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, Call{Ctx: ctx, Request: req})
	if p.Err != nil {
		return audio.Waveform{}, p.Err
	}
	return p.Result.Clone(), nil
}

// Ready records the call and returns ReadyErr.
func (p *Provider) Ready(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReadyCalls++
	return p.ReadyErr
}

// CallCount returns the number of Synthesize calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
	p.ReadyCalls = 0
}

// Sine returns a half-amplitude sine tone at [audio.SampleRate].
func Sine(hz, seconds float64) audio.Waveform {
	n := int(seconds * audio.SampleRate)
	x := make([]float64, n)
	for i := range x {
		x[i] = 0.5 * math.Sin(2*math.Pi*hz*float64(i)/audio.SampleRate)
	}
	return audio.Waveform{Samples: x, SampleRate: audio.SampleRate}
}

// Ensure Provider implements synth.Provider at compile time.
var _ synth.Provider = (*Provider)(nil)
