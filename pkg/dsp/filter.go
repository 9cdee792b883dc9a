package dsp

import "math"

var _ FilterBank = Butterworth{}

// Butterworth is a [FilterBank] built from cascaded biquad sections designed
// with the bilinear transform (prewarped at the cutoff) and applied forwards
// then backwards for zero phase. A cutoff outside (0, Nyquist) leaves the
// signal unchanged.
type Butterworth struct{}

// biquad is one second-order section in direct form II transposed, with a0
// normalised to 1. First-order sections leave b2 and a2 at zero.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// dcGain returns the section's response at 0 Hz.
func (s biquad) dcGain() float64 {
	den := 1 + s.a1 + s.a2
	if den == 0 {
		return 0
	}
	return (s.b0 + s.b1 + s.b2) / den
}

// run filters x in place. The state is initialised to the steady state for a
// constant input equal to x[0], which suppresses the start-up transient.
func (s biquad) run(x []float64) {
	if len(x) == 0 {
		return
	}
	u := x[0]
	y := s.dcGain() * u
	z1 := y - s.b0*u
	z2 := s.b2*u - s.a2*y
	for i, in := range x {
		out := s.b0*in + z1
		z1 = s.b1*in - s.a1*out + z2
		z2 = s.b2*in - s.a2*out
		x[i] = out
	}
}

// poleRadius returns the largest pole magnitude of the section.
func (s biquad) poleRadius() float64 {
	if s.a2 == 0 {
		return math.Abs(s.a1)
	}
	return math.Sqrt(math.Abs(s.a2))
}

// butterQ returns the quality factors of the second-order sections of an
// order-n Butterworth prototype.
func butterQ(n int) []float64 {
	qs := make([]float64, 0, n/2)
	for k := range n / 2 {
		qs = append(qs, 1/(2*math.Sin(math.Pi*float64(2*k+1)/float64(2*n))))
	}
	return qs
}

func designLowPass(order int, cutoff float64, sampleRate int) []biquad {
	w0 := 2 * math.Pi * cutoff / float64(sampleRate)
	cos, sin := math.Cos(w0), math.Sin(w0)

	var sections []biquad
	for _, q := range butterQ(order) {
		alpha := sin / (2 * q)
		a0 := 1 + alpha
		sections = append(sections, biquad{
			b0: (1 - cos) / 2 / a0,
			b1: (1 - cos) / a0,
			b2: (1 - cos) / 2 / a0,
			a1: -2 * cos / a0,
			a2: (1 - alpha) / a0,
		})
	}
	if order%2 == 1 {
		k := math.Tan(w0 / 2)
		b0 := k / (1 + k)
		sections = append(sections, biquad{b0: b0, b1: b0, a1: (k - 1) / (k + 1)})
	}
	return sections
}

func designHighPass(order int, cutoff float64, sampleRate int) []biquad {
	w0 := 2 * math.Pi * cutoff / float64(sampleRate)
	cos, sin := math.Cos(w0), math.Sin(w0)

	var sections []biquad
	for _, q := range butterQ(order) {
		alpha := sin / (2 * q)
		a0 := 1 + alpha
		sections = append(sections, biquad{
			b0: (1 + cos) / 2 / a0,
			b1: -(1 + cos) / a0,
			b2: (1 + cos) / 2 / a0,
			a1: -2 * cos / a0,
			a2: (1 - alpha) / a0,
		})
	}
	if order%2 == 1 {
		k := math.Tan(w0 / 2)
		b0 := 1 / (1 + k)
		sections = append(sections, biquad{b0: b0, b1: -b0, a1: (k - 1) / (k + 1)})
	}
	return sections
}

// validCutoff reports whether cutoff lies strictly inside (0, Nyquist).
func validCutoff(cutoff float64, sampleRate int) bool {
	return sampleRate > 0 && cutoff > 0 && cutoff < float64(sampleRate)/2
}

// LowPass implements [FilterBank].
func (Butterworth) LowPass(x []float64, sampleRate, order int, cutoff float64) []float64 {
	if order <= 0 || !validCutoff(cutoff, sampleRate) {
		return append([]float64(nil), x...)
	}
	return filtfilt(designLowPass(order, cutoff, sampleRate), x)
}

// HighPass implements [FilterBank].
func (Butterworth) HighPass(x []float64, sampleRate, order int, cutoff float64) []float64 {
	if order <= 0 || !validCutoff(cutoff, sampleRate) {
		return append([]float64(nil), x...)
	}
	return filtfilt(designHighPass(order, cutoff, sampleRate), x)
}

// BandPass implements [FilterBank] as a high-pass at low cascaded with a
// low-pass at high, each of the given order.
func (Butterworth) BandPass(x []float64, sampleRate, order int, low, high float64) []float64 {
	if order <= 0 || low >= high || !validCutoff(low, sampleRate) || !validCutoff(high, sampleRate) {
		return append([]float64(nil), x...)
	}
	sections := append(designHighPass(order, low, sampleRate), designLowPass(order, high, sampleRate)...)
	return filtfilt(sections, x)
}

// padLength returns how many samples of odd extension each edge of an n-sample
// signal gets: long enough for the slowest pole to decay to 1e-3, and never
// shorter than three times the cascade order.
func padLength(sections []biquad, n int) int {
	pad := 3 * (2*len(sections) + 1)
	for _, s := range sections {
		r := s.poleRadius()
		if r <= 0 || r >= 1 {
			continue
		}
		if k := int(math.Ceil(math.Log(1e-3) / math.Log(r))); k > pad {
			pad = k
		}
	}
	return min(pad, n-1)
}

// filtfilt runs the cascade forwards and backwards over an odd-extended copy
// of x and returns the unpadded centre.
func filtfilt(sections []biquad, x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	pad := padLength(sections, n)

	ext := make([]float64, n+2*pad)
	for i := range pad {
		ext[pad-1-i] = 2*x[0] - x[i+1]
		ext[pad+n+i] = 2*x[n-1] - x[n-2-i]
	}
	copy(ext[pad:], x)

	for _, s := range sections {
		s.run(ext)
	}
	reverse(ext)
	for _, s := range sections {
		s.run(ext)
	}
	reverse(ext)

	out := make([]float64, n)
	copy(out, ext[pad:pad+n])
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
