// Package audio holds the waveform type shared by the synthesis, effects and
// analysis packages, plus WAV file I/O and sample-format conversion.
package audio

import (
	"math"
	"time"
)

// SampleRate is the working rate of the whole pipeline in Hz. Synthesis
// backends are resampled to it and every written file uses it.
const SampleRate = 22050

// Waveform is a mono sequence of floating-point samples in [-1, 1] at a fixed
// sample rate. Effect steps may mutate Samples in place.
type Waveform struct {
	// Samples holds the mono signal.
	Samples []float64

	// SampleRate in Hz.
	SampleRate int
}

// Duration returns the playback length of w.
func (w Waveform) Duration() time.Duration {
	return time.Duration(w.Seconds() * float64(time.Second))
}

// Seconds returns the playback length of w in seconds. A waveform with a
// non-positive sample rate has zero duration.
func (w Waveform) Seconds() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Clone returns a deep copy of w.
func (w Waveform) Clone() Waveform {
	return Waveform{
		Samples:    append([]float64(nil), w.Samples...),
		SampleRate: w.SampleRate,
	}
}

// Peak returns the maximum absolute sample value of w.
func (w Waveform) Peak() float64 {
	return Peak(w.Samples)
}

// Peak returns the maximum absolute value in x, or 0 for an empty slice.
func Peak(x []float64) float64 {
	var peak float64
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}
