// Package dsp is the numerical toolkit behind the effects chain and the
// acoustic analyzer: Butterworth filtering, short-time Fourier transforms and
// phase-vocoder time stretching / pitch shifting.
//
// The effects chain consumes the toolkit through the [FilterBank] and
// [Shifter] capability interfaces. Either may be absent at runtime, in which
// case the dependent effect steps become the identity.
package dsp

// FilterBank applies zero-phase Butterworth filters. Implementations return a
// new slice and never modify x.
type FilterBank interface {
	// LowPass attenuates content above cutoff Hz.
	LowPass(x []float64, sampleRate, order int, cutoff float64) []float64

	// HighPass attenuates content below cutoff Hz.
	HighPass(x []float64, sampleRate, order int, cutoff float64) []float64

	// BandPass keeps content between low and high Hz.
	BandPass(x []float64, sampleRate, order int, low, high float64) []float64
}

// Shifter changes the tempo or pitch of a signal independently of each other.
// Implementations return a new slice and never modify x.
type Shifter interface {
	// TimeStretch speeds x up by rate (rate > 1 is faster), preserving pitch.
	// The result has round(len(x)/rate) samples.
	TimeStretch(x []float64, rate float64) []float64

	// PitchShift moves x by semitones, preserving duration.
	PitchShift(x []float64, sampleRate int, semitones float64) []float64
}

// Toolkit bundles both capabilities. A nil field means the capability is not
// available.
type Toolkit struct {
	Filters FilterBank
	Shifter Shifter
}

// Default returns the full toolkit backed by [Butterworth] and [PhaseVocoder].
func Default() Toolkit {
	return Toolkit{
		Filters: Butterworth{},
		Shifter: PhaseVocoder{},
	}
}
