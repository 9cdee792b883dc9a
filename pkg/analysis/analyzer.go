package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/dsp"
)

// Analysis defaults.
const (
	DefaultPitchMinHz      = 80.0
	DefaultPitchMaxHz      = 400.0
	DefaultVoicedThreshold = 0.1
	DefaultRolloffPercent  = 0.85

	// peakRelThreshold keeps spectral peaks above this fraction of the
	// frame maximum.
	peakRelThreshold = 0.1

	zeroThreshold = 1e-10
	amin          = 1e-10
	topDB         = 80.0

	startBPM  = 120.0
	stdOctave = 1.0
	maxBPM    = 320.0

	// acSeconds is the longest period considered by the tempo estimator.
	acSeconds = 8.0
)

// Analyzer extracts [Metrics] from waveforms. The zero value is not usable;
// construct with [New].
type Analyzer struct {
	nFFT            int
	hop             int
	pitchMinHz      float64
	pitchMaxHz      float64
	voicedThreshold float64
	rolloffPercent  float64
}

// Option configures an [Analyzer].
type Option func(*Analyzer)

// WithFrame overrides the STFT frame and hop size.
func WithFrame(nFFT, hop int) Option {
	return func(a *Analyzer) {
		if nFFT > 0 && hop > 0 {
			a.nFFT = nFFT
			a.hop = hop
		}
	}
}

// WithPitchRange overrides the pitch search band in Hz.
func WithPitchRange(minHz, maxHz float64) Option {
	return func(a *Analyzer) {
		if minHz > 0 && maxHz > minHz {
			a.pitchMinHz = minHz
			a.pitchMaxHz = maxHz
		}
	}
}

// New creates an analyzer with the default frame (2048/512), an 80–400 Hz
// pitch band and a 0.1 voicing threshold.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		nFFT:            dsp.DefaultFFTSize,
		hop:             dsp.DefaultHop,
		pitchMinHz:      DefaultPitchMinHz,
		pitchMaxHz:      DefaultPitchMaxHz,
		voicedThreshold: DefaultVoicedThreshold,
		rolloffPercent:  DefaultRolloffPercent,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// AnalyzeFile loads a WAV file at its native rate and analyzes it. A missing
// file yields an error wrapping [os.ErrNotExist].
func (a *Analyzer) AnalyzeFile(path string) (*Metrics, error) {
	w, err := audio.ReadFile(path, 0)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	m := a.Analyze(w)
	return &m, nil
}

// Analyze measures w. Empty or silent input yields zero-valued metrics
// (duration aside), never NaN.
func (a *Analyzer) Analyze(w audio.Waveform) Metrics {
	m := Metrics{Duration: w.Seconds()}
	if len(w.Samples) == 0 || w.SampleRate <= 0 {
		return m
	}

	mags := dsp.Magnitudes(dsp.STFT(w.Samples, a.nFFT, a.hop))
	freqs := dsp.Frequencies(w.SampleRate, a.nFFT)

	if pitches := a.trackPitch(mags, freqs); len(pitches) > 0 {
		m.PitchMean, m.PitchStd = stat.PopMeanStdDev(pitches, nil)
		m.PitchMin = floats.Min(pitches)
		m.PitchMax = floats.Max(pitches)
	}

	m.TempoBPM = a.tempo(mags, w.SampleRate)
	m.ZCRMean = stat.Mean(a.zeroCrossingRate(w.Samples), nil)

	centroids, rolloffs, bandwidths := a.spectralShape(mags, freqs)
	m.SpectralCentroidMean, m.SpectralCentroidStd = stat.PopMeanStdDev(centroids, nil)
	m.SpectralRolloffMean = stat.Mean(rolloffs, nil)
	m.SpectralBandwidthMean = stat.Mean(bandwidths, nil)

	m.RMSMean, m.RMSStd = stat.PopMeanStdDev(a.rms(w.Samples), nil)
	m.DynamicRange = dynamicRange(w.Samples)
	return m
}

// trackPitch returns one pitch estimate per voiced frame. Within the pitch
// band, local spectral maxima above a tenth of the frame maximum are refined
// by parabolic interpolation; the strongest refined peak is kept when its
// magnitude exceeds the voicing threshold.
func (a *Analyzer) trackPitch(mags [][]float64, freqs []float64) []float64 {
	var pitches []float64
	for _, s := range mags {
		ref := peakRelThreshold * floats.Max(s)
		var bestPitch, bestMag float64
		for i := 1; i < len(s)-1; i++ {
			if freqs[i] < a.pitchMinHz || freqs[i] >= a.pitchMaxHz {
				continue
			}
			if s[i] <= ref || s[i] <= s[i-1] || s[i] < s[i+1] {
				continue
			}
			avg := 0.5 * (s[i+1] - s[i-1])
			curve := 2*s[i] - s[i-1] - s[i+1]
			shift := 0.0
			if math.Abs(curve) > 1e-12 {
				shift = avg / curve
			}
			mag := s[i] + 0.5*avg*shift
			if mag > bestMag {
				bestMag = mag
				bestPitch = (float64(i) + shift) * (freqs[1] - freqs[0])
			}
		}
		if bestPitch > 0 && bestMag > a.voicedThreshold {
			pitches = append(pitches, bestPitch)
		}
	}
	return pitches
}

// onsetEnvelope is the mean positive frame-to-frame increase of the
// log-power spectrum, floored 80 dB below its peak.
func onsetEnvelope(mags [][]float64) []float64 {
	if len(mags) < 2 {
		return nil
	}
	db := make([][]float64, len(mags))
	peak := math.Inf(-1)
	for t, s := range mags {
		row := make([]float64, len(s))
		for k, v := range s {
			row[k] = 10 * math.Log10(max(v*v, amin))
			peak = max(peak, row[k])
		}
		db[t] = row
	}
	floor := peak - topDB

	env := make([]float64, len(mags))
	for t := 1; t < len(db); t++ {
		var sum float64
		for k := range db[t] {
			if d := max(db[t][k], floor) - max(db[t-1][k], floor); d > 0 {
				sum += d
			}
		}
		env[t] = sum / float64(len(db[t]))
	}
	return env
}

// tempo estimates a single BPM value from the autocorrelation of the onset
// envelope, weighted by a log-normal prior centred on 120 BPM. A flat
// envelope yields 0.
func (a *Analyzer) tempo(mags [][]float64, sampleRate int) float64 {
	env := onsetEnvelope(mags)
	if len(env) < 2 {
		return 0
	}

	maxLag := min(len(env)-1, int(acSeconds*float64(sampleRate)/float64(a.hop)))
	ac0 := floats.Dot(env, env)
	if ac0 <= 0 {
		return 0
	}

	framesPerMinute := 60 * float64(sampleRate) / float64(a.hop)
	bestScore := math.Inf(-1)
	bestBPM := 0.0
	for lag := 1; lag <= maxLag; lag++ {
		bpm := framesPerMinute / float64(lag)
		if bpm > maxBPM {
			continue
		}
		ac := floats.Dot(env[:len(env)-lag], env[lag:]) / ac0
		prior := -0.5 * math.Pow((math.Log2(bpm)-math.Log2(startBPM))/stdOctave, 2)
		score := math.Log1p(1e6*max(ac, 0)) + prior
		if score > bestScore {
			bestScore = score
			bestBPM = bpm
		}
	}
	return bestBPM
}

// frames slices x into overlapping frames of length n centred on multiples
// of hop. The padding repeats the edge samples when edge is set and is zero
// otherwise.
func frames(x []float64, n, hop int, edge bool) [][]float64 {
	pad := n / 2
	padded := make([]float64, len(x)+2*pad)
	copy(padded[pad:], x)
	if edge && len(x) > 0 {
		for i := range pad {
			padded[i] = x[0]
			padded[pad+len(x)+i] = x[len(x)-1]
		}
	}
	count := 1 + (len(padded)-n)/hop
	out := make([][]float64, count)
	for t := range out {
		out[t] = padded[t*hop : t*hop+n]
	}
	return out
}

func (a *Analyzer) zeroCrossingRate(x []float64) []float64 {
	fs := frames(x, a.nFFT, a.hop, true)
	rates := make([]float64, len(fs))
	for t, f := range fs {
		crossings := 0
		for i := 1; i < len(f); i++ {
			if signbit(f[i]) != signbit(f[i-1]) {
				crossings++
			}
		}
		rates[t] = float64(crossings) / float64(len(f))
	}
	return rates
}

// signbit treats near-zero samples as positive.
func signbit(v float64) bool {
	return v < -zeroThreshold
}

func (a *Analyzer) rms(x []float64) []float64 {
	fs := frames(x, a.nFFT, a.hop, false)
	out := make([]float64, len(fs))
	for t, f := range fs {
		out[t] = math.Sqrt(floats.Dot(f, f) / float64(len(f)))
	}
	return out
}

// spectralShape returns the per-frame centroid, rolloff and bandwidth of the
// magnitude spectrogram. Silent frames have zero centroid and bandwidth.
func (a *Analyzer) spectralShape(mags [][]float64, freqs []float64) (centroids, rolloffs, bandwidths []float64) {
	centroids = make([]float64, len(mags))
	rolloffs = make([]float64, len(mags))
	bandwidths = make([]float64, len(mags))
	for t, s := range mags {
		total := floats.Sum(s)

		threshold := a.rolloffPercent * total
		var cum float64
		for k, v := range s {
			cum += v
			if cum >= threshold {
				rolloffs[t] = freqs[k]
				break
			}
		}

		if total <= 0 {
			continue
		}
		centroid := floats.Dot(freqs, s) / total
		var spread float64
		for k, v := range s {
			d := freqs[k] - centroid
			spread += v / total * d * d
		}
		centroids[t] = centroid
		bandwidths[t] = math.Sqrt(spread)
	}
	return centroids, rolloffs, bandwidths
}

// dynamicRange is the spread between the largest and smallest absolute
// sample values.
func dynamicRange(x []float64) float64 {
	lo, hi := math.Inf(1), 0.0
	for _, v := range x {
		a := math.Abs(v)
		lo = min(lo, a)
		hi = max(hi, a)
	}
	if math.IsInf(lo, 1) {
		return 0
	}
	return hi - lo
}
