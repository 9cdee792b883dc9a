// Package generate produces the test sample set that validation analyses.
//
// Each sample is rendered to <dir>/<name>.wav by a [Generator]. Two are
// provided: [Subprocess] runs the synthesis CLI once per sample under a
// timeout, and [InProcess] drives an [engine.Orchestrator] directly. A
// failed sample is logged and counted; the batch always continues.
package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrWong99/prosodia/internal/engine"
	"github.com/MrWong99/prosodia/internal/health"
	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/internal/validate"
	"github.com/MrWong99/prosodia/pkg/prosody"
)

// DefaultTimeout bounds one sample in [Subprocess].
const DefaultTimeout = 60 * time.Second

const stderrTail = 200

// Generator renders one sample to outPath.
type Generator interface {
	Generate(ctx context.Context, s validate.Sample, outPath string) error
}

// ---- subprocess ----

// Subprocess runs Command with -text, -emotion and -output flags for every
// sample. Arguments are passed as an argv list, never through a shell.
type Subprocess struct {
	// Command is the synthesis executable, resolved via PATH if relative.
	Command string

	// Args are inserted before the per-sample flags (e.g. "-config", path).
	Args []string

	// Timeout bounds each run. Zero means [DefaultTimeout].
	Timeout time.Duration
}

var _ Generator = (*Subprocess)(nil)

// Check reports whether Command can be found.
func (s *Subprocess) Check() error {
	if _, err := exec.LookPath(s.Command); err != nil {
		return fmt.Errorf("generate: synthesis command %q: %w", s.Command, err)
	}
	return nil
}

// Generate runs the command. It succeeds only when the process exits 0 and
// outPath exists afterwards.
func (s *Subprocess) Generate(ctx context.Context, smp validate.Sample, outPath string) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{}, s.Args...)
	args = append(args, "-text", smp.Text, "-emotion", string(smp.Emotion), "-output", outPath)
	cmd := exec.CommandContext(ctx, s.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("generate: %s timed out after %v", smp.Name, timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > stderrTail {
			msg = msg[:stderrTail]
		}
		return fmt.Errorf("generate: %s: %w: %s", smp.Name, err, msg)
	}
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("generate: %s: command exited cleanly but produced no file: %w", smp.Name, err)
	}
	return nil
}

// ---- in-process ----

// InProcess renders samples with an orchestrator in the current process.
type InProcess struct {
	Engine *engine.Orchestrator

	// Context supplies urgency and relationship stage; the sample's emotion
	// always wins.
	Context prosody.Context

	// Voice is passed through to the synthesis backend.
	Voice string
}

var _ Generator = (*InProcess)(nil)

// Generate renders s to outPath.
func (g *InProcess) Generate(ctx context.Context, s validate.Sample, outPath string) error {
	pc := g.Context
	pc.Emotion = s.Emotion
	if _, err := g.Engine.SpeakToFile(ctx, engine.Request{Text: s.Text, Context: pc, Voice: g.Voice}, outPath); err != nil {
		return fmt.Errorf("generate: %s: %w", s.Name, err)
	}
	return nil
}

// ---- batch ----

// Result counts a batch.
type Result struct {
	Attempted int
	Succeeded int
	Failed    []string
}

// Runner drives a [Generator] over a sample set.
type Runner struct {
	Generator Generator

	// Progress, if set, is advanced per sample for /healthz.
	Progress *health.Progress

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// GenerateAll renders every sample into dir, creating it if needed. Samples
// run sequentially. Only a failure to create dir or a cancelled ctx is
// returned as an error; per-sample failures are counted in the result.
func (r *Runner) GenerateAll(ctx context.Context, dir string, samples []validate.Sample) (Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("generate: create %s: %w", dir, err)
	}
	m := r.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	if r.Progress != nil {
		r.Progress.Start("generate", len(samples))
	}

	ctx, span := observe.StartSpan(ctx, "generate.GenerateAll")
	defer span.End()
	log := observe.Logger(ctx)

	var res Result
	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("generate: %w", err)
		}
		res.Attempted++
		out := filepath.Join(dir, s.FileName())
		log.Info("generate: rendering sample", "sample", s.Name, "emotion", s.Emotion)

		start := time.Now()
		err := r.Generator.Generate(ctx, s, out)
		observe.Since(ctx, m.GenerationDuration, start, observe.Attr("emotion", string(s.Emotion)))
		m.RecordSample(ctx, err == nil)
		if r.Progress != nil {
			r.Progress.Step(err == nil)
		}
		if err != nil {
			log.Warn("generate: sample failed", "sample", s.Name, "err", err)
			res.Failed = append(res.Failed, s.Name)
			continue
		}
		res.Succeeded++
		log.Info("generate: sample written", "sample", s.Name, "path", out)
	}

	log.Info("generate: batch complete", "succeeded", res.Succeeded, "attempted", res.Attempted)
	return res, nil
}
