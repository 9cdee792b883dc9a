package validate

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrWong99/prosodia/pkg/analysis"
	"github.com/MrWong99/prosodia/pkg/emotion"
)

// SampleResult is the analysis of one generated sample. BaselineMetrics and
// Differences are nil when no baseline was found.
type SampleResult struct {
	Name            string            `json:"name"`
	Emotion         emotion.ID        `json:"emotion"`
	Category        string            `json:"category"`
	TestPath        string            `json:"test_path"`
	BaselinePath    string            `json:"baseline_path,omitempty"`
	BaselineMetrics *analysis.Metrics `json:"baseline_metrics"`
	TestMetrics     *analysis.Metrics `json:"test_metrics"`
	Differences     *Differences      `json:"differences"`
}

// Generation counts the samples produced before analysis.
type Generation struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
}

// Report is the full outcome of a validation run.
type Report struct {
	RunID      string         `json:"run_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Generation *Generation    `json:"generation,omitempty"`
	Samples    []SampleResult `json:"samples"`
	Summary    Summary        `json:"summary"`
	Validation Result         `json:"validation"`
}

// WriteReport writes r to path as indented JSON, creating parent
// directories as needed.
func WriteReport(path string, r *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("validate: create report dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("validate: encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("validate: write report: %w", err)
	}
	return nil
}

// ReadReport loads a report written by [WriteReport].
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("validate: read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("validate: decode report %s: %w", path, err)
	}
	return &r, nil
}

var rule = strings.Repeat("=", 60)

// Render writes a human-readable summary of r to w.
func Render(w io.Writer, r *Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nVOICE PROFILE VALIDATION REPORT\n%s\n\n", rule, rule)
	if g := r.Generation; g != nil {
		fmt.Fprintf(&b, "Samples Generated: %d/%d\n", g.Succeeded, g.Attempted)
	}
	fmt.Fprintf(&b, "Total Samples Analyzed: %d\n", r.Summary.TotalSamples)
	fmt.Fprintf(&b, "Samples with Baseline: %d\n\n", r.Summary.SamplesWithBaseline)

	am := r.Summary.AverageMetrics
	b.WriteString("Average Test Sample Metrics:\n")
	writeOpt(&b, "  Mean Pitch: %.1f Hz\n", am.PitchMean)
	writeOpt(&b, "  Tempo: %.1f BPM\n", am.TempoMean)
	writeOpt(&b, "  Spectral Centroid: %.1f Hz\n", am.SpectralCentroidMean)
	b.WriteString("\n")

	ac := r.Summary.AverageChanges
	if ac.PitchChangePercent != nil || ac.TempoChangePercent != nil || ac.ArticulationChangePercent != nil {
		b.WriteString("Average Changes from Baseline:\n")
		writeOpt(&b, "  Pitch: %+.1f%%\n", ac.PitchChangePercent)
		writeOpt(&b, "  Tempo: %+.1f%%\n", ac.TempoChangePercent)
		writeOpt(&b, "  Articulation: %+.1f%%\n", ac.ArticulationChangePercent)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s\nTARGET VALIDATION\n%s\n\n", rule, rule)
	for _, c := range r.Validation.Checks {
		status := "✓ PASS"
		if !c.MeetsTarget {
			status = "✗ FAIL"
		}
		fmt.Fprintf(&b, "%s - %s\n  Target: %s\n  Actual: %s\n  Notes: %s\n\n", status, c.Metric, c.Target, c.Actual, c.Notes)
	}
	for _, name := range r.Validation.Skipped {
		fmt.Fprintf(&b, "- SKIPPED - %s (no comparable samples)\n", name)
	}
	if len(r.Validation.Skipped) > 0 {
		b.WriteString("\n")
	}

	var overall string
	switch {
	case len(r.Validation.Checks) == 0:
		overall = "⚠ NO TARGETS COULD BE EVALUATED"
	case !r.Validation.MeetsTargets:
		overall = "⚠ SOME TARGETS NOT MET"
	default:
		overall = "✓ ALL TARGETS MET"
	}
	fmt.Fprintf(&b, "%s\nOVERALL: %s\n%s\n", rule, overall, rule)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeOpt(b *strings.Builder, format string, v *float64) {
	if v != nil {
		fmt.Fprintf(b, format, *v)
	}
}
