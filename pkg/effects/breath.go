package effects

import (
	"math/rand/v2"
	"strings"

	"github.com/MrWong99/prosodia/pkg/dsp"
)

// Breath sound shaping and placement.
const (
	BreathDurationMS = 120

	// BreathEndBuffer is the number of trailing samples in which no breath
	// is placed.
	BreathEndBuffer = 1000

	breathLevel       = 0.05
	breathLowPassHz   = 800.0
	breathLowPassOrd  = 3
	breathSpeechMix   = 0.95
	breathMix         = 0.3
	breathPositionVar = 0.05
)

// BreathSound synthesizes a short, quiet breath: Gaussian noise under a
// linear fade-in/fade-out envelope (a quarter of the length each), low-passed
// at 800 Hz when filters is non-nil.
func BreathSound(sampleRate int, rng *rand.Rand, filters dsp.FilterBank) []float64 {
	n := BreathDurationMS * sampleRate / 1000
	if n <= 0 {
		return nil
	}
	breath := make([]float64, n)
	for i := range breath {
		breath[i] = rng.NormFloat64()
	}

	fade := n / 4
	for i := range fade {
		g := 1.0
		if fade > 1 {
			g = float64(i) / float64(fade-1)
		}
		breath[i] *= g
		breath[n-1-i] *= g
	}
	scale(breath, breathLevel)

	if filters != nil {
		breath = filters.LowPass(breath, sampleRate, breathLowPassOrd, breathLowPassHz)
	}
	return breath
}

// SentenceCount counts the sentence terminators '.', '!' and '?' in text.
func SentenceCount(text string) int {
	return strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
}

// InsertBreaths mixes count−1 breath sounds into x in place, where count is
// the number of sentence terminators in text. Breath i is placed at i/count
// of the waveform, jittered by up to ±5% of the inter-breath span, and only
// when it starts before the trailing [BreathEndBuffer]. It returns the start
// positions of the breaths actually mixed.
func InsertBreaths(x []float64, text string, sampleRate int, rng *rand.Rand, filters dsp.FilterBank) []int {
	count := SentenceCount(text)
	if count <= 1 {
		return nil
	}

	n := len(x)
	span := float64(n) / float64(count)
	var placed []int
	for i := 1; i < count; i++ {
		pos := int(float64(i)/float64(count)*float64(n)) + int(uniform(rng, breathPositionVar)*span)
		if pos < 0 || pos >= n-BreathEndBuffer {
			continue
		}
		breath := BreathSound(sampleRate, rng, filters)
		end := min(pos+len(breath), n)
		for j := pos; j < end; j++ {
			x[j] = x[j]*breathSpeechMix + breath[j-pos]*breathMix
		}
		placed = append(placed, pos)
	}
	return placed
}
