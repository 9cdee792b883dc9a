// Command prosodia-synth renders one utterance with emotional prosody to a
// WAV file. It is the per-sample synthesis step the validation pipeline runs
// in subprocess mode, and is useful on its own.
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
	"slices"
	"syscall"
	"time"

	"github.com/MrWong99/prosodia/internal/app"
	"github.com/MrWong99/prosodia/internal/config"
	"github.com/MrWong99/prosodia/internal/engine"
	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/pkg/effects"
	"github.com/MrWong99/prosodia/pkg/emotion"
	"github.com/MrWong99/prosodia/pkg/prosody"
)

var (
	urgencies = []prosody.Urgency{prosody.UrgencyNormal, prosody.UrgencyHigh, prosody.UrgencyCritical}
	stages    = []prosody.Stage{prosody.StageHostile, prosody.StageCurious, prosody.StageCooperative}
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("prosodia-synth", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "optional path to the YAML configuration file")
	text := fs.String("text", "", "text to synthesize")
	output := fs.String("output", "", "output WAV path")
	emo := fs.String("emotion", string(emotion.Neutral), "emotion profile (see -list-emotions)")
	urgency := fs.String("urgency", string(prosody.UrgencyNormal), "urgency: normal, high or critical")
	stage := fs.String("relationship", string(prosody.StageCooperative), "relationship stage: hostile, curious or cooperative")
	voice := fs.String("voice", "", "backend voice or speaker override")
	noVariations := fs.Bool("no-variations", false, "disable breath insertion and micro-variations")
	seed := fs.Uint64("seed", 0, "fix the random source (0 = random)")
	listEmotions := fs.Bool("list-emotions", false, "print the emotion profiles and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *listEmotions {
		printEmotions(stdout)
		return 0
	}

	if *text == "" || *output == "" {
		fmt.Fprintln(stderr, "prosodia-synth: -text and -output are required")
		fs.Usage()
		return 2
	}
	if !emotion.Known(emotion.ID(*emo)) {
		fmt.Fprintf(stderr, "prosodia-synth: unknown emotion %q (known: %v)\n", *emo, emotion.IDs())
		return 2
	}
	if !slices.Contains(urgencies, prosody.Urgency(*urgency)) {
		fmt.Fprintf(stderr, "prosodia-synth: unknown urgency %q (known: %v)\n", *urgency, urgencies)
		return 2
	}
	if !slices.Contains(stages, prosody.Stage(*stage)) {
		fmt.Fprintf(stderr, "prosodia-synth: unknown relationship %q (known: %v)\n", *stage, stages)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "prosodia-synth: %v\n", err)
		return 1
	}
	slog.SetDefault(app.NewLogger(cfg.Server.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := config.NewRegistry()
	app.RegisterBuiltinProviders(reg, cfg.Synthesis.Timeout)

	var extra []effects.Option
	if *noVariations {
		extra = append(extra, effects.WithVariations(false))
	}
	if *seed != 0 {
		extra = append(extra, effects.WithSeed(*seed))
	}
	eng, err := app.BuildEngine(cfg, reg, observe.DefaultMetrics(), extra...)
	if err != nil {
		slog.Error("failed to build engine", "err", err)
		return 1
	}
	if err := eng.Ready(ctx); err != nil {
		slog.Error("synthesis backend unavailable", "err", err)
		return 1
	}

	start := time.Now()
	res, err := eng.SpeakToFile(ctx, engine.Request{
		Text: *text,
		Context: prosody.Context{
			Emotion: emotion.ID(*emo),
			Urgency: prosody.Urgency(*urgency),
			Stage:   prosody.Stage(*stage),
		},
		Voice: *voice,
	}, *output)
	if err != nil {
		slog.Error("synthesis failed", "err", err)
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	slog.Info("synthesized",
		"emotion", res.Emotion.ID,
		"speed", res.Speed,
		"seconds", res.Waveform.Seconds(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	fmt.Fprintf(stdout, "SUCCESS: Audio saved to %s\n", *output)
	return 0
}

func printEmotions(w io.Writer) {
	fmt.Fprintln(w, "Available emotions:")
	for _, p := range emotion.All() {
		fmt.Fprintf(w, "  %-14s %s\n", p.ID, p.Description)
		fmt.Fprintf(w, "  %-14s pitch %+.0f%%  rate %.2fx  volume %.2fx\n", "", p.PitchShift*100, p.Rate, p.Volume)
	}
}
