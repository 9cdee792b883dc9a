// Package command provides a synthesis provider that shells out to an
// external TTS program (for example piper or the coqui "tts" CLI) once per
// utterance and reads back the WAV file it writes.
//
// The command is an argument template. Each argument may contain these
// placeholders:
//
//	{text}          the utterance; when absent the text is written to stdin
//	{output}        path of the WAV file the program must create
//	{speed}         speaking-rate factor (1.0 = natural)
//	{length_scale}  1/speed, as used by VITS-family models
//
// When neither {speed} nor {length_scale} appears, the requested speed is
// applied afterwards with a time stretch.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/dsp"
	"github.com/MrWong99/prosodia/pkg/provider/synth"
)

var _ synth.Provider = (*Provider)(nil)

const (
	phText        = "{text}"
	phOutput      = "{output}"
	phSpeed       = "{speed}"
	phLengthScale = "{length_scale}"

	// stderrTail bounds how much program output is quoted in errors.
	stderrTail = 512
)

// Provider runs an external program per synthesis request.
type Provider struct {
	argv        []string
	tmpDir      string
	shifter     dsp.Shifter
	textOnArgv  bool
	nativeSpeed bool
}

// Option configures a [Provider].
type Option func(*Provider)

// WithTempDir sets the directory for intermediate WAV files. Defaults to
// [os.TempDir].
func WithTempDir(dir string) Option {
	return func(p *Provider) {
		p.tmpDir = dir
	}
}

// WithShifter replaces the time-stretch capability used when the template
// has no speed placeholder.
func WithShifter(s dsp.Shifter) Option {
	return func(p *Provider) {
		p.shifter = s
	}
}

// New parses a whitespace-separated command template. Quoting is not
// interpreted; use [NewArgs] for arguments containing spaces.
func New(template string, opts ...Option) (*Provider, error) {
	return NewArgs(strings.Fields(template), opts...)
}

// NewArgs creates a Provider from an already split argument template.
// The template must name a program and contain an {output} placeholder.
func NewArgs(argv []string, opts ...Option) (*Provider, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("command synth: command must not be empty")
	}
	p := &Provider{
		argv:    append([]string(nil), argv...),
		shifter: dsp.PhaseVocoder{},
	}
	var hasOutput bool
	for _, a := range argv[1:] {
		hasOutput = hasOutput || strings.Contains(a, phOutput)
		p.textOnArgv = p.textOnArgv || strings.Contains(a, phText)
		p.nativeSpeed = p.nativeSpeed || strings.Contains(a, phSpeed) || strings.Contains(a, phLengthScale)
	}
	if !hasOutput {
		return nil, fmt.Errorf("command synth: template must contain %s", phOutput)
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize implements synth.Provider.
func (p *Provider) Synthesize(ctx context.Context, req synth.Request) (audio.Waveform, error) {
	if strings.TrimSpace(req.Text) == "" {
		return audio.Waveform{}, synth.ErrEmptyText
	}

	f, err := os.CreateTemp(p.tmpDir, "prosodia-*.wav")
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("command synth: create temp file: %w", err)
	}
	out := f.Name()
	_ = f.Close()
	defer os.Remove(out)

	speed := req.SpeedOrDefault()
	r := strings.NewReplacer(
		phText, req.Text,
		phOutput, out,
		phSpeed, strconv.FormatFloat(speed, 'f', 4, 64),
		phLengthScale, strconv.FormatFloat(1/speed, 'f', 4, 64),
	)
	args := make([]string, len(p.argv)-1)
	for i, a := range p.argv[1:] {
		args[i] = r.Replace(a)
	}

	cmd := exec.CommandContext(ctx, p.argv[0], args...)
	if !p.textOnArgv {
		cmd.Stdin = strings.NewReader(req.Text)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if len(msg) > stderrTail {
			msg = msg[len(msg)-stderrTail:]
		}
		return audio.Waveform{}, fmt.Errorf("command synth: %s: %w: %s", p.argv[0], err, strings.TrimSpace(msg))
	}

	w, err := audio.ReadFile(out, audio.SampleRate)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("command synth: %w", err)
	}
	if p.nativeSpeed {
		return w, nil
	}
	return synth.ApplySpeed(w, speed, p.shifter), nil
}

// Ready implements synth.Provider by resolving the program on PATH.
func (p *Provider) Ready(context.Context) error {
	if _, err := exec.LookPath(p.argv[0]); err != nil {
		return fmt.Errorf("command synth: %w", err)
	}
	return nil
}
