package validate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/prosodia/pkg/analysis"
)

func sampleReport() *Report {
	d := Compare(analysis.Metrics{PitchMean: 220, Duration: 1}, analysis.Metrics{PitchMean: 200, Duration: 1})
	samples := []SampleResult{{
		Name:            "test_hostile_01",
		Emotion:         "hostile",
		Category:        "dialogue",
		TestPath:        "/tmp/t/test_hostile_01.wav",
		BaselineMetrics: &analysis.Metrics{PitchMean: 220, Duration: 1},
		TestMetrics:     &analysis.Metrics{PitchMean: 200, Duration: 1},
		Differences:     &d,
	}}
	s := Summarize(samples)
	return &Report{
		RunID:      "run-1",
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Generation: &Generation{Attempted: 8, Succeeded: 7},
		Samples:    samples,
		Summary:    s,
		Validation: ValidateTargets(s),
	}
}

func TestWriteReport_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "report.json")
	want := sampleReport()

	if err := WriteReport(path, want); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	got, err := ReadReport(path)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteReport_StableKeys(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteReport(path, sampleReport()); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"run_id", "timestamp", "samples", "summary", "validation"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}
	for _, sub := range []string{`"pitch_change_percent"`, `"meets_targets"`, `"skipped"`, `"test_metrics"`, `"total_samples"`} {
		if !strings.Contains(string(data), sub) {
			t.Errorf("report should contain %s", sub)
		}
	}
}

func TestRender(t *testing.T) {
	t.Parallel()
	r := sampleReport()
	r.Validation.Checks = append(r.Validation.Checks, Check{Metric: "Speaking Rate", Target: "-10.0% slower", Actual: "-2.0%", Notes: "Measured, deliberate pacing"})
	r.Validation.MeetsTargets = false

	var b strings.Builder
	if err := Render(&b, r); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		"Samples Generated: 7/8",
		"Mean Pitch: 200.0 Hz",
		"Pitch: -9.1%",
		"✓ PASS - Pitch Reduction",
		"✗ FAIL - Speaking Rate",
		"SKIPPED - Articulation Clarity",
		"OVERALL: ⚠ SOME TARGETS NOT MET",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRender_Overall(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{
			name:   "all met",
			result: Result{MeetsTargets: true, Checks: []Check{{Metric: "Pitch Reduction", MeetsTarget: true}}},
			want:   "OVERALL: ✓ ALL TARGETS MET",
		},
		{
			name:   "one missed",
			result: Result{Checks: []Check{{Metric: "Pitch Reduction"}}},
			want:   "OVERALL: ⚠ SOME TARGETS NOT MET",
		},
		{
			name:   "all skipped",
			result: Result{MeetsTargets: true, Checks: []Check{}, Skipped: []string{"Pitch Reduction", "Speaking Rate", "Articulation Clarity"}},
			want:   "OVERALL: ⚠ NO TARGETS COULD BE EVALUATED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sampleReport()
			r.Validation = tt.result

			var b strings.Builder
			if err := Render(&b, r); err != nil {
				t.Fatalf("Render: %v", err)
			}
			out := b.String()
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
		})
	}
}
