// Package effects applies a resolved emotion/prosody profile to a raw
// synthesized waveform: pitch, volume, breathiness, tension, articulation
// shaping, compression, breath sounds, micro-variation and normalisation.
//
// Filtering and pitch/tempo steps depend on optional [dsp] capabilities. When
// a capability is absent its steps are skipped and a warning is logged once.
package effects

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/dsp"
)

// ErrInvalidRatio is returned when the compression ratio is not positive.
var ErrInvalidRatio = errors.New("effects: compression ratio must be positive")

// Chain defaults.
const (
	DefaultThresholdDB = -20.0
	DefaultRatio       = 2.5

	// OutputPeak is the peak level of the final normalisation.
	OutputPeak = 0.95

	breathinessHeadroom = 0.9
	breathinessNoise    = 0.015
	breathinessOn       = 0.5
	breathinessLowCut   = 0.4

	tensionOn    = 0.6
	tensionGain  = 0.2
	tensionHz    = 2000.0
	tensionOrder = 2

	clarityLowHz  = 3000.0
	clarityHighHz = 6000.0
	clarityOrder  = 2
	clarityGain   = 0.10

	harshnessHz    = 7500.0
	harshnessOrder = 3

	variationStretch = 0.02
	variationPitch   = 0.01
	variationNoise   = 0.0005
)

// Chain is the ordered audio effects pipeline. A Chain owns its random
// source and is not safe for concurrent use.
type Chain struct {
	sampleRate  int
	filters     dsp.FilterBank
	shifter     dsp.Shifter
	rng         *rand.Rand
	thresholdDB float64
	ratio       float64
	clarity     bool
	variations  bool
	logger      *slog.Logger

	warnFilters sync.Once
	warnShifter sync.Once
}

// Option configures a [Chain].
type Option func(*Chain)

// WithToolkit sets both DSP capabilities. Nil fields disable the dependent
// steps. The default is [dsp.Default].
func WithToolkit(tk dsp.Toolkit) Option {
	return func(c *Chain) {
		c.filters = tk.Filters
		c.shifter = tk.Shifter
	}
}

// WithRand sets the random source used for noise, breath jitter and
// micro-variation. A fixed seed makes [Chain.Apply] reproducible.
func WithRand(r *rand.Rand) Option {
	return func(c *Chain) {
		if r != nil {
			c.rng = r
		}
	}
}

// WithSeed is shorthand for WithRand with a PCG source seeded from seed.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// WithCompression overrides the compressor threshold (dBFS) and ratio.
func WithCompression(thresholdDB, ratio float64) Option {
	return func(c *Chain) {
		c.thresholdDB = thresholdDB
		c.ratio = ratio
	}
}

// WithClarityBoost toggles the 3–6 kHz consonant-clarity boost. Default on.
func WithClarityBoost(on bool) Option {
	return func(c *Chain) { c.clarity = on }
}

// WithVariations toggles breath insertion and micro-variation. Default on.
func WithVariations(on bool) Option {
	return func(c *Chain) { c.variations = on }
}

// WithSampleRate sets the rate of the waveforms passed to Apply. Default
// [audio.SampleRate].
func WithSampleRate(rate int) Option {
	return func(c *Chain) {
		if rate > 0 {
			c.sampleRate = rate
		}
	}
}

// WithLogger sets the logger for capability warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a chain. An invalid compression ratio is a configuration error.
func New(opts ...Option) (*Chain, error) {
	tk := dsp.Default()
	c := &Chain{
		sampleRate:  audio.SampleRate,
		filters:     tk.Filters,
		shifter:     tk.Shifter,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		thresholdDB: DefaultThresholdDB,
		ratio:       DefaultRatio,
		clarity:     true,
		variations:  true,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.ratio <= 0 || math.IsNaN(c.ratio) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidRatio, c.ratio)
	}
	return c, nil
}

// Apply runs every effect step over a copy of samples in this fixed order:
// pitch shift, volume, breathiness, tension, consonant clarity, harshness
// low-pass, compression, breath insertion, micro-variation, normalisation.
// text is the original (untransformed) utterance; its sentence terminators
// place the breath sounds.
func (c *Chain) Apply(samples []float64, p Profile, text string) ([]float64, error) {
	x := slices.Clone(samples)

	x = c.pitchShift(x, p.PitchShift*12)

	if p.Volume != 1 {
		scale(x, p.Volume)
	}

	if p.Breathiness > breathinessOn {
		Normalize(x, breathinessHeadroom)
		c.addNoise(x, (p.Breathiness-breathinessOn)*breathinessNoise)
	}

	if p.Tension > tensionOn {
		if edge := c.highPass(x, tensionOrder, tensionHz); edge != nil {
			mix(x, edge, (p.Tension-tensionOn)*tensionGain)
		}
	}

	if c.clarity {
		if band := c.bandPass(x, clarityOrder, clarityLowHz, clarityHighHz); band != nil {
			mix(x, band, clarityGain)
		}
	}

	if p.Breathiness < breathinessLowCut {
		if lp := c.lowPass(x, harshnessOrder, harshnessHz); lp != nil {
			x = lp
		}
	}

	x, err := Compress(x, c.thresholdDB, c.ratio)
	if err != nil {
		return nil, err
	}

	if c.variations {
		InsertBreaths(x, text, c.sampleRate, c.rng, c.filters)
		x = c.microVary(x)
	}

	Normalize(x, OutputPeak)
	return x, nil
}

// microVary applies a small random time-stretch and pitch shift, then adds
// near-inaudible broadband noise.
func (c *Chain) microVary(x []float64) []float64 {
	if stretch := uniform(c.rng, variationStretch); stretch != 0 {
		x = c.timeStretch(x, 1+stretch)
	}
	if shift := uniform(c.rng, variationPitch); shift != 0 {
		x = c.pitchShift(x, shift*12)
	}
	c.addNoise(x, variationNoise)
	return x
}

func (c *Chain) pitchShift(x []float64, semitones float64) []float64 {
	if semitones == 0 {
		return x
	}
	if c.shifter == nil {
		c.warnMissingShifter()
		return x
	}
	return c.shifter.PitchShift(x, c.sampleRate, semitones)
}

func (c *Chain) timeStretch(x []float64, rate float64) []float64 {
	if c.shifter == nil {
		c.warnMissingShifter()
		return x
	}
	return c.shifter.TimeStretch(x, rate)
}

// highPass, bandPass and lowPass return nil when no filter bank is available.
func (c *Chain) highPass(x []float64, order int, hz float64) []float64 {
	if c.filters == nil {
		c.warnMissingFilters()
		return nil
	}
	return c.filters.HighPass(x, c.sampleRate, order, hz)
}

func (c *Chain) bandPass(x []float64, order int, lo, hi float64) []float64 {
	if c.filters == nil {
		c.warnMissingFilters()
		return nil
	}
	return c.filters.BandPass(x, c.sampleRate, order, lo, hi)
}

func (c *Chain) lowPass(x []float64, order int, hz float64) []float64 {
	if c.filters == nil {
		c.warnMissingFilters()
		return nil
	}
	return c.filters.LowPass(x, c.sampleRate, order, hz)
}

func (c *Chain) warnMissingFilters() {
	c.warnFilters.Do(func() {
		c.logger.Warn("effects: filter toolkit unavailable, filtering steps disabled")
	})
}

func (c *Chain) warnMissingShifter() {
	c.warnShifter.Do(func() {
		c.logger.Warn("effects: pitch/tempo toolkit unavailable, pitch and stretch steps disabled")
	})
}

func (c *Chain) addNoise(x []float64, sigma float64) {
	for i := range x {
		x[i] += c.rng.NormFloat64() * sigma
	}
}

// uniform draws from U(-width, width).
func uniform(r *rand.Rand, width float64) float64 {
	return (r.Float64()*2 - 1) * width
}

func scale(x []float64, g float64) {
	for i := range x {
		x[i] *= g
	}
}

// mix adds gain*y into x sample by sample.
func mix(x, y []float64, gain float64) {
	for i := range min(len(x), len(y)) {
		x[i] += y[i] * gain
	}
}

// Normalize scales x in place so its peak absolute value equals peak. A
// silent signal is left untouched.
func Normalize(x []float64, peak float64) {
	m := audio.Peak(x)
	if m == 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return
	}
	scale(x, peak/m)
}

// Compress applies a static RMS compressor: when the signal RMS exceeds the
// threshold, the whole signal is attenuated by (1 − 1/ratio) of the excess in
// dB. Silent, non-finite or below-threshold input is returned unchanged. A
// ratio ≤ 0 returns [ErrInvalidRatio] before the audio is touched.
func Compress(x []float64, thresholdDB, ratio float64) ([]float64, error) {
	if ratio <= 0 || math.IsNaN(ratio) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidRatio, ratio)
	}
	rms := RMS(x)
	if rms <= 0 || math.IsNaN(rms) || math.IsInf(rms, 0) {
		return x, nil
	}
	threshold := math.Pow(10, thresholdDB/20)
	if rms <= threshold {
		return x, nil
	}
	excessDB := 20 * math.Log10(rms/threshold)
	reductionDB := excessDB * (1 - 1/ratio)
	scale(x, math.Pow(10, -reductionDB/20))
	return x, nil
}

// RMS returns the root-mean-square level of x, or 0 for an empty slice.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}
