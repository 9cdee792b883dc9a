package validate

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/prosodia/pkg/analysis"
)

func ptr(v float64) *float64 { return &v }

func approx(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Errorf("%s: got nil, want %v", name, want)
		return
	}
	if math.Abs(*got-want) > 1e-6 {
		t.Errorf("%s: got %v, want %v", name, *got, want)
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	t.Run("pitch 220 to 200", func(t *testing.T) {
		t.Parallel()
		d := Compare(
			analysis.Metrics{PitchMean: 220, TempoBPM: 120, SpectralCentroidMean: 2000, Duration: 2},
			analysis.Metrics{PitchMean: 200, TempoBPM: 108, SpectralCentroidMean: 2300, Duration: 2.5},
		)
		approx(t, "pitch", d.PitchChangePercent, -9.090909)
		approx(t, "tempo", d.TempoChangePercent, -10)
		approx(t, "articulation", d.ArticulationChangePercent, 15)
		if math.Abs(d.DurationChangePercent-25) > 1e-9 {
			t.Errorf("duration: got %v, want 25", d.DurationChangePercent)
		}
	})

	t.Run("non-positive values are not compared", func(t *testing.T) {
		t.Parallel()
		d := Compare(
			analysis.Metrics{PitchMean: 0, TempoBPM: 120, SpectralCentroidMean: 2000, Duration: 1},
			analysis.Metrics{PitchMean: 180, TempoBPM: 0, SpectralCentroidMean: 2000, Duration: 1},
		)
		if d.PitchChangePercent != nil {
			t.Errorf("pitch: got %v, want nil", *d.PitchChangePercent)
		}
		if d.TempoChangePercent != nil {
			t.Errorf("tempo: got %v, want nil", *d.TempoChangePercent)
		}
		approx(t, "articulation", d.ArticulationChangePercent, 0)
	})

	t.Run("zero baseline duration", func(t *testing.T) {
		t.Parallel()
		d := Compare(analysis.Metrics{}, analysis.Metrics{Duration: 3})
		if d.DurationChangePercent != 0 {
			t.Errorf("duration: got %v, want 0", d.DurationChangePercent)
		}
		if math.IsNaN(d.DurationChangePercent) || math.IsInf(d.DurationChangePercent, 0) {
			t.Error("duration change is not finite")
		}
	})
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	samples := []SampleResult{
		{
			TestMetrics:     &analysis.Metrics{PitchMean: 200, TempoBPM: 100, SpectralCentroidMean: 2000},
			BaselineMetrics: &analysis.Metrics{},
			Differences:     &Differences{PitchChangePercent: ptr(-8), TempoChangePercent: ptr(-12), DurationChangePercent: 10},
		},
		{
			TestMetrics:     &analysis.Metrics{PitchMean: 220, TempoBPM: 0, SpectralCentroidMean: 3000},
			BaselineMetrics: &analysis.Metrics{},
			Differences:     &Differences{PitchChangePercent: ptr(-10), DurationChangePercent: 20},
		},
		{
			TestMetrics: &analysis.Metrics{PitchMean: 0, SpectralCentroidMean: 4000},
		},
	}

	s := Summarize(samples)
	if s.TotalSamples != 3 {
		t.Errorf("total: got %d, want 3", s.TotalSamples)
	}
	if s.SamplesWithBaseline != 2 {
		t.Errorf("with baseline: got %d, want 2", s.SamplesWithBaseline)
	}
	approx(t, "pitch_mean", s.AverageMetrics.PitchMean, 210)
	approx(t, "pitch_std", s.AverageMetrics.PitchStd, 10)
	approx(t, "tempo_mean", s.AverageMetrics.TempoMean, 100)
	approx(t, "centroid", s.AverageMetrics.SpectralCentroidMean, 3000)
	approx(t, "pitch change", s.AverageChanges.PitchChangePercent, -9)
	approx(t, "tempo change", s.AverageChanges.TempoChangePercent, -12)
	approx(t, "duration change", s.AverageChanges.DurationChangePercent, 15)
	if s.AverageChanges.ArticulationChangePercent != nil {
		t.Errorf("articulation change: got %v, want nil", *s.AverageChanges.ArticulationChangePercent)
	}
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()
	got := Summarize(nil)
	want := Summary{}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Summarize(nil) mismatch (-want +got):\n%s", diff)
	}
}
