package effects

import (
	"github.com/MrWong99/prosodia/pkg/emotion"
	"github.com/MrWong99/prosodia/pkg/prosody"
)

// Profile is the merged emotion profile and prosody parameters that drive one
// pass of the effects chain.
type Profile struct {
	Emotion     emotion.ID `json:"emotion"`
	PitchShift  float64    `json:"pitch_shift"`
	Rate        float64    `json:"rate"`
	Volume      float64    `json:"volume"`
	Tension     float64    `json:"tension"`
	Breathiness float64    `json:"breathiness"`
}

// Resolve merges an emotion profile with resolved prosody parameters. Pitch
// shift, rate and volume become products of both sources; tension and
// breathiness come from the emotion profile alone.
func Resolve(e emotion.Profile, p prosody.Parameters) Profile {
	return Profile{
		Emotion:     e.ID,
		PitchShift:  e.PitchShift * p.Pitch,
		Rate:        e.Rate * p.Rate,
		Volume:      e.Volume * p.Volume,
		Tension:     e.Tension,
		Breathiness: e.Breathiness,
	}
}
