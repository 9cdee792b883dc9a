package validate

import "fmt"

// Check is the outcome of one target evaluation.
type Check struct {
	Metric      string  `json:"metric"`
	Target      string  `json:"target"`
	Actual      string  `json:"actual"`
	Value       float64 `json:"value"`
	MeetsTarget bool    `json:"meets_target"`
	Notes       string  `json:"notes"`
}

// Result is the aggregate verdict. MeetsTargets is the AND of Checks and is
// true when there are none. Skipped names targets that had no data.
type Result struct {
	MeetsTargets bool     `json:"meets_targets"`
	Checks       []Check  `json:"checks"`
	Skipped      []string `json:"skipped,omitempty"`
}

// Target is an acceptance band for one averaged change. Low and High are
// inclusive percentages.
type Target struct {
	Metric  string
	Nominal string
	Low     float64
	High    float64
	Notes   string

	format string
	value  func(AverageChanges) *float64
}

// Contains reports whether v lies inside the band.
func (t Target) Contains(v float64) bool {
	return v >= t.Low && v <= t.High
}

// Targets is the voice profile every run is checked against.
var Targets = []Target{
	{
		Metric:  "Pitch Reduction",
		Nominal: "-8.0%",
		Low:     -11,
		High:    -5,
		Notes:   "Lower pitch for mature voice quality",
		format:  "%.1f%%",
		value:   func(c AverageChanges) *float64 { return c.PitchChangePercent },
	},
	{
		Metric:  "Speaking Rate",
		Nominal: "-10.0% slower",
		Low:     -15,
		High:    -5,
		Notes:   "Measured, deliberate pacing",
		format:  "%.1f%%",
		value:   func(c AverageChanges) *float64 { return c.TempoChangePercent },
	},
	{
		Metric:  "Articulation Clarity",
		Nominal: "+15.0%",
		Low:     5,
		High:    25,
		Notes:   "Crisp, sharp enunciation",
		format:  "%+.1f%%",
		value:   func(c AverageChanges) *float64 { return c.ArticulationChangePercent },
	},
}

// ValidateTargets bands the averaged changes of s against [Targets].
func ValidateTargets(s Summary) Result {
	r := Result{MeetsTargets: true, Checks: []Check{}}
	for _, t := range Targets {
		v := t.value(s.AverageChanges)
		if v == nil {
			r.Skipped = append(r.Skipped, t.Metric)
			continue
		}
		ok := t.Contains(*v)
		r.Checks = append(r.Checks, Check{
			Metric:      t.Metric,
			Target:      t.Nominal,
			Actual:      fmt.Sprintf(t.format, *v),
			Value:       *v,
			MeetsTarget: ok,
			Notes:       t.Notes,
		})
		r.MeetsTargets = r.MeetsTargets && ok
	}
	return r
}
