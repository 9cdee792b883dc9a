package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/pkg/analysis"
)

// FileAnalyzer measures a WAV file. [*analysis.Analyzer] satisfies it.
type FileAnalyzer interface {
	AnalyzeFile(path string) (*analysis.Metrics, error)
}

var _ FileAnalyzer = (*analysis.Analyzer)(nil)

// Validator runs the compare-and-validate pass.
type Validator struct {
	analyzer FileAnalyzer
	metrics  *observe.Metrics
	now      func() time.Time
	newID    func() string
}

// Option configures a [Validator].
type Option func(*Validator)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(v *Validator) {
		if m != nil {
			v.metrics = m
		}
	}
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New returns a Validator that measures files with a.
func New(a FileAnalyzer, opts ...Option) *Validator {
	v := &Validator{
		analyzer: a,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(v)
	}
	if v.metrics == nil {
		v.metrics = observe.DefaultMetrics()
	}
	return v
}

// CompareAndValidate analyses every sample's generated file in testDir,
// pairs it with a baseline from baselineDir, and validates the averaged
// changes. Samples whose test file is missing or unreadable are skipped;
// samples without a usable baseline are analysed but not differenced.
//
// The run ID is taken from ctx (see [observe.WithRunID]) or generated. An
// error is returned only when testDir is missing or ctx is cancelled.
func (v *Validator) CompareAndValidate(ctx context.Context, baselineDir, testDir string, samples []Sample) (*Report, error) {
	if fi, err := os.Stat(testDir); err != nil {
		return nil, fmt.Errorf("validate: test directory: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("validate: test directory %s is not a directory", testDir)
	}

	ctx, span := observe.StartSpan(ctx, "validate.CompareAndValidate")
	defer span.End()
	span.SetAttributes(attribute.Int("samples", len(samples)))
	log := observe.Logger(ctx)

	runID := observe.RunID(ctx)
	if runID == "" {
		runID = v.newID()
	}
	report := &Report{
		RunID:     runID,
		Timestamp: v.now().UTC(),
		Samples:   []SampleResult{},
	}

	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("validate: %w", err)
		}
		res, ok := v.compareOne(ctx, log, baselineDir, testDir, s)
		if ok {
			report.Samples = append(report.Samples, res)
		}
	}

	report.Summary = Summarize(report.Samples)
	report.Validation = ValidateTargets(report.Summary)
	for _, c := range report.Validation.Checks {
		v.metrics.RecordCheck(ctx, c.Metric, c.MeetsTarget)
	}
	if len(report.Validation.Skipped) > 0 {
		log.Warn("validate: targets could not be evaluated", "targets", report.Validation.Skipped)
	}
	log.Info("validate: run complete",
		"analyzed", report.Summary.TotalSamples,
		"with_baseline", report.Summary.SamplesWithBaseline,
		"meets_targets", report.Validation.MeetsTargets,
	)
	return report, nil
}

func (v *Validator) compareOne(ctx context.Context, log *slog.Logger, baselineDir, testDir string, s Sample) (SampleResult, bool) {
	log = log.With("sample", s.Name)
	testPath := filepath.Join(testDir, s.FileName())

	testMetrics, err := v.analyze(ctx, testPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("validate: test sample not found, skipping", "path", testPath)
		} else {
			log.Warn("validate: test sample unreadable, skipping", "path", testPath, "err", err)
		}
		return SampleResult{}, false
	}

	res := SampleResult{
		Name:        s.Name,
		Emotion:     s.Emotion,
		Category:    s.Category,
		TestPath:    testPath,
		TestMetrics: testMetrics,
	}

	baselinePath, err := FindBaseline(baselineDir, s)
	if err != nil {
		if errors.Is(err, ErrNoBaseline) {
			log.Info("validate: no baseline, comparing against targets only")
		} else {
			log.Warn("validate: baseline lookup failed", "err", err)
		}
		return res, true
	}
	baseline, err := v.analyze(ctx, baselinePath)
	if err != nil {
		log.Warn("validate: baseline unreadable", "path", baselinePath, "err", err)
		return res, true
	}

	d := Compare(*baseline, *testMetrics)
	res.BaselinePath = baselinePath
	res.BaselineMetrics = baseline
	res.Differences = &d
	log.Debug("validate: sample compared", "baseline", baselinePath)
	return res, true
}

func (v *Validator) analyze(ctx context.Context, path string) (*analysis.Metrics, error) {
	start := time.Now()
	m, err := v.analyzer.AnalyzeFile(path)
	observe.Since(ctx, v.metrics.AnalysisDuration, start)
	return m, err
}
