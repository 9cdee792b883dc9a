// Package prosody resolves a delivery context (emotion, urgency and
// relationship stage) into multiplicative prosody parameters, and rewrites
// input text with whitespace pause markers the synthesizer turns into timing.
package prosody

import "github.com/MrWong99/prosodia/pkg/emotion"

// Urgency is how pressing an utterance is.
type Urgency string

// Urgency levels.
const (
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Stage is the narrative relationship between speaker and listener.
type Stage string

// Relationship stages.
const (
	StageHostile     Stage = "hostile"
	StageCurious     Stage = "curious"
	StageCooperative Stage = "cooperative"
)

// Floor is the smallest value any resolved multiplier may take.
const Floor = 0.05

// Context selects how an utterance should be delivered. Zero fields take the
// neutral / normal / cooperative defaults.
type Context struct {
	Emotion emotion.ID
	Urgency Urgency
	Stage   Stage
}

// WithDefaults returns c with empty fields filled in.
func (c Context) WithDefaults() Context {
	if c.Emotion == "" {
		c.Emotion = emotion.Neutral
	}
	if c.Urgency == "" {
		c.Urgency = UrgencyNormal
	}
	if c.Stage == "" {
		c.Stage = StageCooperative
	}
	return c
}

// Parameters are the resolved prosody multipliers. They are derived from a
// [Context] on every call and never persisted.
type Parameters struct {
	Pitch           float64 `json:"pitch"`
	Rate            float64 `json:"rate"`
	Volume          float64 `json:"volume"`
	PauseMultiplier float64 `json:"pause_multiplier"`
}

// factors scales each field of a Parameters value.
type factors struct {
	pitch, rate, volume, pause float64
}

var identity = factors{1, 1, 1, 1}

func (p Parameters) scale(f factors) Parameters {
	return Parameters{
		Pitch:           p.Pitch * f.pitch,
		Rate:            p.Rate * f.rate,
		Volume:          p.Volume * f.volume,
		PauseMultiplier: p.PauseMultiplier * f.pause,
	}
}

func (p Parameters) clamp() Parameters {
	p.Pitch = max(p.Pitch, Floor)
	p.Rate = max(p.Rate, Floor)
	p.Volume = max(p.Volume, Floor)
	p.PauseMultiplier = max(p.PauseMultiplier, Floor)
	return p
}

func stageBase(s Stage) Parameters {
	switch s {
	case StageHostile:
		return Parameters{Pitch: 0.90, Rate: 0.95, Volume: 1.05, PauseMultiplier: 1.2}
	case StageCurious:
		return Parameters{Pitch: 0.97, Rate: 0.93, Volume: 1.0, PauseMultiplier: 1.15}
	default:
		return Parameters{Pitch: 0.95, Rate: 0.90, Volume: 1.0, PauseMultiplier: 1.25}
	}
}

// emotionFactors lists the emotions that adjust the stage base. Emotions not
// listed pass through unchanged.
var emotionFactors = map[emotion.ID]factors{
	emotion.Excited:       {pitch: 1.03, rate: 1.08, volume: 1, pause: 1.0},
	emotion.Worried:       {pitch: 0.96, rate: 0.92, volume: 1, pause: 1.3},
	emotion.Contemplative: {pitch: 1, rate: 0.88, volume: 1, pause: 1.4},
	emotion.Angry:         {pitch: 1, rate: 0.98, volume: 1, pause: 1.15},
	emotion.Hostile:       {pitch: 1, rate: 1, volume: 1, pause: 1.2},
}

func urgencyFactors(u Urgency) factors {
	switch u {
	case UrgencyCritical:
		return factors{pitch: 1, rate: 1.15, volume: 1.15, pause: 0.85}
	case UrgencyHigh:
		return factors{pitch: 1, rate: 1.08, volume: 1.08, pause: 0.95}
	default:
		return identity
	}
}

// Resolve derives the prosody parameters for c: the relationship stage seeds
// the base, then emotion and urgency factors are multiplied in, in that
// order. Every multiplier is clamped to at least [Floor].
func Resolve(c Context) Parameters {
	c = c.WithDefaults()

	p := stageBase(c.Stage)
	if f, ok := emotionFactors[c.Emotion]; ok {
		p = p.scale(f)
	}
	p = p.scale(urgencyFactors(c.Urgency))
	return p.clamp()
}
