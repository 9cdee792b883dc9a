// Package emotion holds the static table of emotion profiles: the baseline
// acoustic colouring applied to synthesized speech for each named affect.
package emotion

import (
	"cmp"
	"slices"
)

// ID names an emotion profile.
type ID string

// Known emotion profiles.
const (
	Hostile       ID = "hostile"
	Angry         ID = "angry"
	Curious       ID = "curious"
	Fascinated    ID = "fascinated"
	Cooperative   ID = "cooperative"
	Friendly      ID = "friendly"
	Excited       ID = "excited"
	Worried       ID = "worried"
	Contemplative ID = "contemplative"
	Urgent        ID = "urgent"
	Neutral       ID = "neutral"
)

// Profile is the immutable acoustic target for one emotion.
type Profile struct {
	ID ID

	// PitchShift is a signed fraction; the effects chain shifts by
	// PitchShift*12 semitones.
	PitchShift float64

	// Rate is the speaking-speed multiplier.
	Rate float64

	// Volume is the amplitude multiplier.
	Volume float64

	// Tension in [0, 1] drives the high-frequency edge boost.
	Tension float64

	// Breathiness in [0, 1] drives additive noise and the harshness cut.
	Breathiness float64

	Description string
}

var profiles = map[ID]Profile{
	Hostile:       {ID: Hostile, PitchShift: -0.10, Rate: 0.85, Volume: 1.05, Tension: 0.75, Breathiness: 0.15, Description: "Cold, measured threat"},
	Angry:         {ID: Angry, PitchShift: -0.08, Rate: 0.90, Volume: 1.10, Tension: 0.80, Breathiness: 0.10, Description: "Controlled anger, deliberate"},
	Curious:       {ID: Curious, PitchShift: -0.03, Rate: 0.90, Volume: 1.00, Tension: 0.55, Breathiness: 0.25, Description: "Dry, intellectual curiosity"},
	Fascinated:    {ID: Fascinated, PitchShift: -0.01, Rate: 0.92, Volume: 1.02, Tension: 0.60, Breathiness: 0.28, Description: "Controlled fascination, intellectual wonder"},
	Cooperative:   {ID: Cooperative, PitchShift: -0.05, Rate: 0.90, Volume: 0.98, Tension: 0.45, Breathiness: 0.35, Description: "Reserved warmth, subtle affection"},
	Friendly:      {ID: Friendly, PitchShift: -0.04, Rate: 0.92, Volume: 1.00, Tension: 0.42, Breathiness: 0.38, Description: "Measured friendliness, controlled"},
	Excited:       {ID: Excited, PitchShift: -0.02, Rate: 1.08, Volume: 1.12, Tension: 0.65, Breathiness: 0.25, Description: "Controlled excitement, never manic"},
	Worried:       {ID: Worried, PitchShift: -0.06, Rate: 0.88, Volume: 0.95, Tension: 0.68, Breathiness: 0.30, Description: "Controlled concern, measured"},
	Contemplative: {ID: Contemplative, PitchShift: -0.07, Rate: 0.82, Volume: 0.90, Tension: 0.32, Breathiness: 0.40, Description: "Deep thought, measured reflection"},
	Urgent:        {ID: Urgent, PitchShift: -0.02, Rate: 1.10, Volume: 1.15, Tension: 0.70, Breathiness: 0.20, Description: "Controlled urgency, never panicked"},
	Neutral:       {ID: Neutral, PitchShift: -0.05, Rate: 0.90, Volume: 1.00, Tension: 0.50, Breathiness: 0.30, Description: "Calm, measured baseline"},
}

// Lookup returns the profile for id. Unknown ids resolve to the neutral
// profile.
func Lookup(id ID) Profile {
	if p, ok := profiles[id]; ok {
		return p
	}
	return profiles[Neutral]
}

// Known reports whether id names a profile in the table.
func Known(id ID) bool {
	_, ok := profiles[id]
	return ok
}

// All returns every profile sorted by id.
func All() []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Profile) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// IDs returns every known id sorted alphabetically.
func IDs() []ID {
	all := All()
	ids := make([]ID, len(all))
	for i, p := range all {
		ids[i] = p.ID
	}
	return ids
}
