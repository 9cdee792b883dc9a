// Command prosodia generates a test sample set with the emotional prosody
// pipeline, measures it against baseline recordings and checks the averaged
// changes against the voice profile targets.
//
// Exit codes: 0 success, 1 hard failure, 2 targets not met.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/prosodia/internal/app"
	"github.com/MrWong99/prosodia/internal/config"
	"github.com/MrWong99/prosodia/internal/generate"
	"github.com/MrWong99/prosodia/internal/health"
	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/internal/reportstore/postgres"
	"github.com/MrWong99/prosodia/internal/validate"
	"github.com/MrWong99/prosodia/pkg/analysis"
)

// Run modes.
const (
	modeGenerate = "generate"
	modeAnalyze  = "analyze"
	modeFull     = "full"
)

// Exit codes.
const (
	exitOK            = 0
	exitFailure       = 1
	exitTargetsMissed = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// ---- flags ----
	fs := flag.NewFlagSet("prosodia", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "optional path to the YAML configuration file")
	mode := fs.String("mode", modeFull, "run mode: generate, analyze or full")
	baselineDir := fs.String("baseline-dir", "", "directory of baseline recordings (overrides config)")
	testDir := fs.String("test-dir", "", "directory for generated samples (overrides config)")
	reportPath := fs.String("report", "", "JSON report path (overrides config)")
	synthCommand := fs.String("synth-command", "", "synthesis CLI for subprocess mode (overrides config)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}
	switch *mode {
	case modeGenerate, modeAnalyze, modeFull:
	default:
		fmt.Fprintf(stderr, "prosodia: unknown mode %q (want generate, analyze or full)\n", *mode)
		return exitFailure
	}

	// ---- configuration ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "prosodia: %v\n", err)
		return exitFailure
	}
	vc := &cfg.Validation
	for dst, src := range map[*string]string{
		&vc.BaselineDir:  *baselineDir,
		&vc.TestDir:      *testDir,
		&vc.ReportPath:   *reportPath,
		&vc.SynthCommand: *synthCommand,
	} {
		if src != "" {
			*dst = src
		}
	}

	slog.SetDefault(app.NewLogger(cfg.Server.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	ctx = observe.WithRunID(ctx, runID)
	log := observe.Logger(ctx)
	log.Info("prosodia starting",
		"mode", *mode,
		"baseline_dir", vc.BaselineDir,
		"test_dir", vc.TestDir,
		"generator", vc.Mode,
	)

	// ---- telemetry ----
	if cfg.Server.ListenAddr != "" {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "prosodia", RunID: runID})
		if err != nil {
			log.Error("failed to initialise telemetry", "err", err)
			return exitFailure
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("telemetry shutdown", "err", err)
			}
		}()
	}
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		log.Error("failed to create metrics", "err", err)
		return exitFailure
	}

	b := &batch{
		cfg:        cfg,
		configPath: *configPath,
		mode:       *mode,
		samples:    samplesFrom(vc.Samples),
		metrics:    metrics,
		progress:   &health.Progress{},
		stdout:     stdout,
	}
	checkers, err := b.prepare(ctx)
	if err != nil {
		log.Error("startup failed", "err", err)
		return exitFailure
	}

	if cfg.Server.ListenAddr == "" {
		return b.run(ctx)
	}

	// ---- health server beside the batch ----
	srv := health.NewServer(cfg.Server.ListenAddr, health.New(b.progress, checkers...), metrics)
	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	code := exitOK
	g.Go(func() error { return health.Serve(srvCtx, srv) })
	g.Go(func() error {
		defer stopServer()
		code = b.run(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("health server failed", "err", err)
		return exitFailure
	}
	return code
}

// samplesFrom converts configured samples, falling back to the built-in set.
func samplesFrom(cfg []config.SampleConfig) []validate.Sample {
	if len(cfg) == 0 {
		return validate.DefaultSamples()
	}
	out := make([]validate.Sample, len(cfg))
	for i, s := range cfg {
		out[i] = validate.Sample{Text: s.Text, Emotion: s.Emotion, Category: s.Category, Name: s.Name}
	}
	return out
}

// batch is one generate and/or analyze run.
type batch struct {
	cfg        *config.Config
	configPath string
	mode       string
	samples    []validate.Sample
	metrics    *observe.Metrics
	progress   *health.Progress
	stdout     io.Writer

	generator generate.Generator
}

// prepare builds the sample generator and verifies it is usable. It returns
// the readiness checks for /readyz.
func (b *batch) prepare(ctx context.Context) ([]health.Checker, error) {
	vc := b.cfg.Validation
	checkers := []health.Checker{health.DirChecker("baseline_dir", vc.BaselineDir)}
	if b.mode == modeAnalyze {
		return append(checkers, health.DirChecker("test_dir", vc.TestDir)), nil
	}

	switch vc.Mode {
	case config.ModeInProcess:
		reg := config.NewRegistry()
		app.RegisterBuiltinProviders(reg, b.cfg.Synthesis.Timeout)
		eng, err := app.BuildEngine(b.cfg, reg, b.metrics)
		if err != nil {
			return nil, err
		}
		if err := eng.Ready(ctx); err != nil {
			return nil, err
		}
		b.generator = &generate.InProcess{Engine: eng}
		checkers = append(checkers, health.SynthChecker(eng))
	default:
		sub := &generate.Subprocess{Command: vc.SynthCommand, Timeout: vc.Timeout}
		if b.configPath != "" {
			sub.Args = []string{"-config", b.configPath}
		}
		if err := sub.Check(); err != nil {
			return nil, err
		}
		b.generator = sub
		checkers = append(checkers, health.Checker{
			Name:  "synth_command",
			Check: func(context.Context) error { return sub.Check() },
		})
	}
	return checkers, nil
}

func (b *batch) run(ctx context.Context) int {
	log := observe.Logger(ctx)
	vc := b.cfg.Validation

	var gen *validate.Generation
	if b.mode != modeAnalyze {
		runner := &generate.Runner{Generator: b.generator, Progress: b.progress, Metrics: b.metrics}
		res, err := runner.GenerateAll(ctx, vc.TestDir, b.samples)
		if err != nil {
			log.Error("generation aborted", "err", err)
			return exitFailure
		}
		if res.Succeeded == 0 {
			log.Error("no samples generated", "attempted", res.Attempted, "failed", res.Failed)
			return exitFailure
		}
		gen = &validate.Generation{Attempted: res.Attempted, Succeeded: res.Succeeded}
		if b.mode == modeGenerate {
			fmt.Fprintf(b.stdout, "Samples Generated: %d/%d\n", res.Succeeded, res.Attempted)
			return exitOK
		}
	}

	b.progress.Start("analyze", len(b.samples))
	v := validate.New(analysis.New(), validate.WithMetrics(b.metrics))
	report, err := v.CompareAndValidate(ctx, vc.BaselineDir, vc.TestDir, b.samples)
	if err != nil {
		log.Error("validation failed", "err", err)
		return exitFailure
	}
	report.Generation = gen

	if err := validate.WriteReport(vc.ReportPath, report); err != nil {
		log.Error("failed to write report", "err", err)
		return exitFailure
	}
	if err := validate.Render(b.stdout, report); err != nil {
		log.Error("failed to render report", "err", err)
		return exitFailure
	}
	fmt.Fprintf(b.stdout, "\nReport saved to: %s\n", vc.ReportPath)

	if dsn := b.cfg.Store.PostgresDSN; dsn != "" {
		b.persist(ctx, dsn, report)
	}

	if !report.Validation.MeetsTargets {
		return exitTargetsMissed
	}
	return exitOK
}

// persist stores report and logs how this run compares with history. Store
// failures are logged and never fail the run.
func (b *batch) persist(ctx context.Context, dsn string, report *validate.Report) {
	log := observe.Logger(ctx)
	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		log.Warn("report store unavailable", "err", err)
		return
	}
	defer store.Close()

	if err := store.SaveReport(ctx, report); err != nil {
		log.Warn("failed to store report", "err", err)
		return
	}
	log.Info("report stored", "run_id", report.RunID)

	for _, s := range report.Samples {
		if s.TestMetrics == nil {
			continue
		}
		nn, err := store.NearestSamples(ctx, *s.TestMetrics, 1, report.RunID)
		if err != nil {
			log.Warn("nearest sample lookup failed", "sample", s.Name, "err", err)
			return
		}
		if len(nn) > 0 {
			log.Info("closest historical sample",
				"sample", s.Name,
				"match", nn[0].Name,
				"match_run", nn[0].RunID,
				"distance", nn[0].Distance,
			)
		}
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		log.Warn("recent runs lookup failed", "err", err)
		return
	}
	passed := 0
	for _, r := range runs {
		if r.MeetsTargets {
			passed++
		}
	}
	log.Info("recent runs", "count", len(runs), "meeting_targets", passed)
}
