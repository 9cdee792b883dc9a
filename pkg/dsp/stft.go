package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// DefaultFFTSize is the frame length used by the analyzer and the vocoder.
	DefaultFFTSize = 2048

	// DefaultHop is the frame advance in samples.
	DefaultHop = 512
)

// Hann returns a periodic Hann window of length n, suitable for STFT
// analysis and overlap-add synthesis.
func Hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// Frequencies returns the centre frequency in Hz of each of the nFFT/2+1 bins.
func Frequencies(sampleRate, nFFT int) []float64 {
	f := make([]float64, nFFT/2+1)
	for i := range f {
		f[i] = float64(i) * float64(sampleRate) / float64(nFFT)
	}
	return f
}

// CenterPad pads x by pad samples on each side. Reflection padding is used
// when x is long enough, zero padding otherwise.
func CenterPad(x []float64, pad int) []float64 {
	n := len(x)
	out := make([]float64, n+2*pad)
	copy(out[pad:], x)
	if n <= pad {
		return out
	}
	for i := 1; i <= pad; i++ {
		out[pad-i] = x[i]
		out[pad+n-1+i] = x[n-1-i]
	}
	return out
}

// STFT computes the centred short-time Fourier transform of x with a
// periodic Hann window. Frame t is centred on sample t*hop; each frame holds
// nFFT/2+1 unnormalised coefficients.
func STFT(x []float64, nFFT, hop int) [][]complex128 {
	padded := CenterPad(x, nFFT/2)
	if len(padded) < nFFT {
		padded = append(padded, make([]float64, nFFT-len(padded))...)
	}
	window := Hann(nFFT)
	fft := fourier.NewFFT(nFFT)

	nFrames := 1 + (len(padded)-nFFT)/hop
	frames := make([][]complex128, nFrames)
	buf := make([]float64, nFFT)
	for t := range frames {
		start := t * hop
		for i := range buf {
			buf[i] = padded[start+i] * window[i]
		}
		frames[t] = fft.Coefficients(nil, buf)
	}
	return frames
}

// ISTFT inverts [STFT] by windowed overlap-add, normalising by the summed
// squared window, and returns exactly length samples.
func ISTFT(frames [][]complex128, nFFT, hop, length int) []float64 {
	if length <= 0 {
		return nil
	}
	if len(frames) == 0 {
		return make([]float64, length)
	}
	window := Hann(nFFT)
	fft := fourier.NewFFT(nFFT)

	total := nFFT + hop*(len(frames)-1)
	y := make([]float64, total)
	norm := make([]float64, total)
	buf := make([]float64, nFFT)
	scale := 1 / float64(nFFT)
	for t, frame := range frames {
		fft.Sequence(buf, frame)
		start := t * hop
		for i, v := range buf {
			y[start+i] += v * scale * window[i]
			norm[start+i] += window[i] * window[i]
		}
	}
	for i := range y {
		if norm[i] > 1e-10 {
			y[i] /= norm[i]
		}
	}

	out := make([]float64, length)
	offset := nFFT / 2
	if offset < len(y) {
		copy(out, y[offset:])
	}
	return out
}

// Magnitudes returns |X| for each STFT frame.
func Magnitudes(frames [][]complex128) [][]float64 {
	mags := make([][]float64, len(frames))
	for t, frame := range frames {
		m := make([]float64, len(frame))
		for k, c := range frame {
			m[k] = cmplx.Abs(c)
		}
		mags[t] = m
	}
	return mags
}
