// Package synth defines the Provider interface for speech synthesis backends.
//
// A synthesis provider turns one utterance of text into a mono waveform at
// the pipeline's working rate ([audio.SampleRate]). The neural model behind
// it is treated as a black box: callers pass the already-transformed text and
// a speaking-speed factor and receive samples back.
//
// Implementations must be safe for concurrent use.
package synth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/dsp"
)

// ErrEmptyText is returned by providers when the request carries no text.
var ErrEmptyText = errors.New("synth: text must not be empty")

// Request is a single synthesis call.
type Request struct {
	// Text is the utterance to speak, including any pause spacing.
	Text string

	// Speed is the speaking-rate factor. 1.0 is the model's natural pace,
	// values below 1 slow speech down. Zero is treated as 1.0.
	Speed float64

	// Voice is the provider-specific voice or speaker identifier. Empty
	// selects the provider default.
	Voice string
}

// SpeedOrDefault returns r.Speed, or 1.0 when it is not positive.
func (r Request) SpeedOrDefault() float64 {
	if r.Speed <= 0 {
		return 1.0
	}
	return r.Speed
}

// Provider is the abstraction over any synthesis backend.
type Provider interface {
	// Synthesize renders req into a mono waveform at [audio.SampleRate].
	// Returns an error if the backend fails or ctx is cancelled.
	Synthesize(ctx context.Context, req Request) (audio.Waveform, error)

	// Ready reports whether the backend can currently accept requests. It is
	// used as a readiness probe and as the preflight check before a batch.
	Ready(ctx context.Context) error
}

// ApplySpeed emulates a speaking-rate change for backends that have no
// native speed control by time-stretching w with s. Speeds within 0.1 % of
// 1.0 and a nil shifter leave w untouched.
func ApplySpeed(w audio.Waveform, speed float64, s dsp.Shifter) audio.Waveform {
	if speed <= 0 || (speed > 0.999 && speed < 1.001) {
		return w
	}
	if s == nil {
		slog.Warn("synth: no time-stretch capability, speed ignored", "speed", speed)
		return w
	}
	return audio.Waveform{Samples: s.TimeStretch(w.Samples, speed), SampleRate: w.SampleRate}
}
