package generate_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/prosodia/internal/engine"
	"github.com/MrWong99/prosodia/internal/generate"
	"github.com/MrWong99/prosodia/internal/health"
	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/internal/validate"
	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/effects"
	"github.com/MrWong99/prosodia/pkg/emotion"
	"github.com/MrWong99/prosodia/pkg/prosody"
	"github.com/MrWong99/prosodia/pkg/provider/synth/mock"
)

// writeOutput is a POSIX sh script that writes a stub file to the path
// following -output and echoes its arguments to args.txt next to it.
const writeOutput = `
out=""
all="$*"
while [ $# -gt 0 ]; do
  case "$1" in
    -output) out="$2"; shift ;;
  esac
  shift
done
printf 'RIFF' > "$out"
printf '%s' "$all" > "$(dirname "$out")/args.txt"
`

func shell(script string) *generate.Subprocess {
	return &generate.Subprocess{Command: "sh", Args: []string{"-c", script, "sh"}}
}

var sample = validate.Sample{Text: "Warning! Oxygen low!", Emotion: emotion.Urgent, Category: "notification", Name: "alert"}

func TestSubprocess_Success(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	out := filepath.Join(dir, "alert.wav")

	if err := shell(writeOutput).Generate(context.Background(), sample, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	for _, want := range []string{"-text Warning! Oxygen low!", "-emotion urgent", "-output " + out} {
		if !strings.Contains(string(args), want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestSubprocess_Failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		gen     *generate.Subprocess
		wantSub string
	}{
		{
			name:    "non-zero exit",
			gen:     shell("echo 'model not loaded' >&2; exit 3"),
			wantSub: "model not loaded",
		},
		{
			name:    "no output file",
			gen:     shell("exit 0"),
			wantSub: "produced no file",
		},
		{
			name: "timeout",
			gen: &generate.Subprocess{
				Command: "sh",
				Args:    []string{"-c", "exec sleep 5", "sh"},
				Timeout: 100 * time.Millisecond,
			},
			wantSub: "timed out",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.gen.Generate(context.Background(), sample, filepath.Join(t.TempDir(), "alert.wav"))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestSubprocess_Check(t *testing.T) {
	t.Parallel()
	if err := (&generate.Subprocess{Command: "sh"}).Check(); err != nil {
		t.Errorf("sh: unexpected error: %v", err)
	}
	if err := (&generate.Subprocess{Command: "prosodia-definitely-missing"}).Check(); err == nil {
		t.Error("missing command: expected error, got nil")
	}
}

func TestInProcess(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{Result: mock.Sine(200, 0.3)}
	chain, err := effects.New(effects.WithSeed(1), effects.WithVariations(false))
	if err != nil {
		t.Fatalf("effects.New: %v", err)
	}
	eng, err := engine.New(p, chain)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	g := &generate.InProcess{
		Engine:  eng,
		Context: prosody.Context{Emotion: emotion.Friendly, Urgency: prosody.UrgencyCritical},
	}

	out := filepath.Join(t.TempDir(), "alert.wav")
	if err := g.Generate(context.Background(), sample, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := audio.ReadFile(out, 0); err != nil {
		t.Errorf("output unreadable: %v", err)
	}

	wantParams := prosody.Resolve(prosody.Context{Emotion: emotion.Urgent, Urgency: prosody.UrgencyCritical}.WithDefaults())
	wantSpeed := emotion.Lookup(emotion.Urgent).Rate * wantParams.Rate
	if got := p.Calls[0].Request.Speed; got != wantSpeed {
		t.Errorf("speed: got %v, want %v (sample emotion must win)", got, wantSpeed)
	}
}

// fakeGenerator writes a file unless the sample name is in fail.
type fakeGenerator struct {
	fail []string
}

func (f *fakeGenerator) Generate(_ context.Context, s validate.Sample, out string) error {
	if slices.Contains(f.fail, s.Name) {
		return errors.New("synthesis failed")
	}
	return os.WriteFile(out, []byte("RIFF"), 0o644)
}

func TestRunner_GenerateAll(t *testing.T) {
	t.Parallel()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	progress := &health.Progress{}
	r := &generate.Runner{
		Generator: &fakeGenerator{fail: []string{"test_hostile_01", "test_success"}},
		Progress:  progress,
		Metrics:   m,
	}
	dir := filepath.Join(t.TempDir(), "samples")

	res, err := r.GenerateAll(context.Background(), dir, validate.DefaultSamples())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Attempted != 8 || res.Succeeded != 6 {
		t.Errorf("got %d/%d, want 6/8", res.Succeeded, res.Attempted)
	}
	if !slices.Equal(res.Failed, []string{"test_hostile_01", "test_success"}) {
		t.Errorf("failed: got %v", res.Failed)
	}
	if _, err := os.Stat(filepath.Join(dir, "test_greeting_friendly.wav")); err != nil {
		t.Errorf("expected sample file: %v", err)
	}

	snap := progress.Snapshot()
	if snap.Stage != "generate" || snap.Done != 8 || snap.Failed != 2 || snap.Total != 8 {
		t.Errorf("progress: got %+v", snap)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &generate.Runner{Generator: &fakeGenerator{}}
	res, err := r.GenerateAll(ctx, t.TempDir(), validate.DefaultSamples())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if res.Attempted != 0 {
		t.Errorf("attempted: got %d, want 0", res.Attempted)
	}
}
