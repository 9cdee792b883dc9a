package validate

import (
	"gonum.org/v1/gonum/stat"

	"github.com/MrWong99/prosodia/pkg/analysis"
)

// Differences are the percentage changes of a test sample relative to its
// baseline. Pitch, tempo and articulation are nil unless both values were
// strictly positive.
type Differences struct {
	PitchChangePercent        *float64 `json:"pitch_change_percent,omitempty"`
	TempoChangePercent        *float64 `json:"tempo_change_percent,omitempty"`
	ArticulationChangePercent *float64 `json:"articulation_change_percent,omitempty"`
	DurationChangePercent     float64  `json:"duration_change_percent"`
}

// Compare computes test relative to baseline. The duration change is 0 when
// the baseline has no duration.
func Compare(baseline, test analysis.Metrics) Differences {
	d := Differences{
		PitchChangePercent:        positiveChange(baseline.PitchMean, test.PitchMean),
		TempoChangePercent:        positiveChange(baseline.TempoBPM, test.TempoBPM),
		ArticulationChangePercent: positiveChange(baseline.SpectralCentroidMean, test.SpectralCentroidMean),
	}
	if baseline.Duration != 0 {
		d.DurationChangePercent = percentChange(baseline.Duration, test.Duration)
	}
	return d
}

func percentChange(base, test float64) float64 {
	return (test - base) / base * 100
}

func positiveChange(base, test float64) *float64 {
	if base <= 0 || test <= 0 {
		return nil
	}
	v := percentChange(base, test)
	return &v
}

// AverageMetrics are means over the analysed test samples. Each field is nil
// when no sample contributed.
type AverageMetrics struct {
	PitchMean            *float64 `json:"pitch_mean,omitempty"`
	PitchStd             *float64 `json:"pitch_std,omitempty"`
	TempoMean            *float64 `json:"tempo_mean,omitempty"`
	SpectralCentroidMean *float64 `json:"spectral_centroid_mean,omitempty"`
}

// AverageChanges are means of the per-sample [Differences]. Each field is
// nil when no sample produced that difference.
type AverageChanges struct {
	PitchChangePercent        *float64 `json:"pitch_change_percent,omitempty"`
	TempoChangePercent        *float64 `json:"tempo_change_percent,omitempty"`
	ArticulationChangePercent *float64 `json:"articulation_change_percent,omitempty"`
	DurationChangePercent     *float64 `json:"duration_change_percent,omitempty"`
}

// Summary aggregates a run.
type Summary struct {
	TotalSamples        int            `json:"total_samples"`
	SamplesWithBaseline int            `json:"samples_with_baseline"`
	AverageMetrics      AverageMetrics `json:"average_metrics"`
	AverageChanges      AverageChanges `json:"average_changes"`
}

// Summarize aggregates the analysed samples. Pitch averages consider voiced
// samples only and the tempo average only samples with a detected tempo.
// The pitch spread is the population standard deviation of the per-sample
// means.
func Summarize(samples []SampleResult) Summary {
	s := Summary{TotalSamples: len(samples)}

	var pitches, tempos, centroids []float64
	var dPitch, dTempo, dArt, dDur []float64
	for _, r := range samples {
		if r.BaselineMetrics != nil {
			s.SamplesWithBaseline++
		}
		if m := r.TestMetrics; m != nil {
			if m.PitchMean > 0 {
				pitches = append(pitches, m.PitchMean)
			}
			if m.TempoBPM > 0 {
				tempos = append(tempos, m.TempoBPM)
			}
			centroids = append(centroids, m.SpectralCentroidMean)
		}
		if d := r.Differences; d != nil {
			dPitch = appendIf(dPitch, d.PitchChangePercent)
			dTempo = appendIf(dTempo, d.TempoChangePercent)
			dArt = appendIf(dArt, d.ArticulationChangePercent)
			dDur = append(dDur, d.DurationChangePercent)
		}
	}

	if len(pitches) > 0 {
		m, sd := stat.PopMeanStdDev(pitches, nil)
		s.AverageMetrics.PitchMean, s.AverageMetrics.PitchStd = &m, &sd
	}
	s.AverageMetrics.TempoMean = average(tempos)
	s.AverageMetrics.SpectralCentroidMean = average(centroids)

	s.AverageChanges = AverageChanges{
		PitchChangePercent:        average(dPitch),
		TempoChangePercent:        average(dTempo),
		ArticulationChangePercent: average(dArt),
		DurationChangePercent:     average(dDur),
	}
	return s
}

func appendIf(xs []float64, v *float64) []float64 {
	if v == nil {
		return xs
	}
	return append(xs, *v)
}

func average(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	m := stat.Mean(xs, nil)
	return &m
}
