package dsp

import (
	"math"
	"math/cmplx"

	"github.com/MrWong99/prosodia/pkg/audio"
)

var _ Shifter = PhaseVocoder{}

// PhaseVocoder is a [Shifter] that time-stretches with an STFT phase vocoder
// and pitch-shifts by stretching then resampling back to the original length.
// Zero values select [DefaultFFTSize] and [DefaultHop].
type PhaseVocoder struct {
	FFTSize int
	Hop     int
}

func (v PhaseVocoder) sizes() (int, int) {
	n, hop := v.FFTSize, v.Hop
	if n <= 0 {
		n = DefaultFFTSize
	}
	if hop <= 0 {
		hop = n / 4
	}
	return n, hop
}

// TimeStretch implements [Shifter].
func (v PhaseVocoder) TimeStretch(x []float64, rate float64) []float64 {
	if rate <= 0 || rate == 1 || len(x) == 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return append([]float64(nil), x...)
	}
	n, hop := v.sizes()
	length := int(math.Round(float64(len(x)) / rate))

	frames := STFT(x, n, hop)
	stretched := stretchFrames(frames, rate, n, hop)
	return ISTFT(stretched, n, hop, length)
}

// PitchShift implements [Shifter].
func (v PhaseVocoder) PitchShift(x []float64, sampleRate int, semitones float64) []float64 {
	if semitones == 0 || len(x) == 0 || math.IsNaN(semitones) {
		return append([]float64(nil), x...)
	}
	rate := math.Pow(2, -semitones/12)
	stretched := v.TimeStretch(x, rate)
	// Resampling from sampleRate/rate down to sampleRate restores len(x).
	return audio.ResampleRatio(stretched, 1/rate, len(x))
}

// stretchFrames resamples the frame sequence at steps of rate, interpolating
// magnitudes linearly and accumulating phase from the measured per-bin
// frequency deviation.
func stretchFrames(frames [][]complex128, rate float64, nFFT, hop int) [][]complex128 {
	bins := len(frames[0])
	advance := make([]float64, bins)
	for k := range advance {
		advance[k] = 2 * math.Pi * float64(hop) * float64(k) / float64(nFFT)
	}

	phase := make([]float64, bins)
	for k, c := range frames[0] {
		phase[k] = cmplx.Phase(c)
	}

	zero := make([]complex128, bins)
	at := func(i int) []complex128 {
		if i < len(frames) {
			return frames[i]
		}
		return zero
	}

	var out [][]complex128
	for step := 0.0; step < float64(len(frames)); step += rate {
		i := int(step)
		alpha := step - float64(i)
		left, right := at(i), at(i+1)

		frame := make([]complex128, bins)
		for k := range frame {
			mag := (1-alpha)*cmplx.Abs(left[k]) + alpha*cmplx.Abs(right[k])
			frame[k] = cmplx.Rect(mag, phase[k])

			dphi := cmplx.Phase(right[k]) - cmplx.Phase(left[k]) - advance[k]
			dphi -= 2 * math.Pi * math.Round(dphi/(2*math.Pi))
			phase[k] += advance[k] + dphi
		}
		out = append(out, frame)
	}
	return out
}
