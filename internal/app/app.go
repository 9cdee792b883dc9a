// Package app wires configuration into running prosodia components: the
// logger, the synthesis backend registry, the failover chain, the effects
// chain and the orchestrator. Both commands build on it.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MrWong99/prosodia/internal/config"
	"github.com/MrWong99/prosodia/internal/engine"
	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/internal/resilience"
	"github.com/MrWong99/prosodia/pkg/effects"
	"github.com/MrWong99/prosodia/pkg/provider/synth"
	"github.com/MrWong99/prosodia/pkg/provider/synth/command"
	"github.com/MrWong99/prosodia/pkg/provider/synth/coqui"
	"github.com/MrWong99/prosodia/pkg/provider/synth/openai"
)

// NewLogger returns a text logger on stderr at the given level.
func NewLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// RegisterBuiltinProviders wires the synthesis backends that ship with
// prosodia into reg. timeout bounds HTTP requests of network backends.
func RegisterBuiltinProviders(reg *config.Registry, timeout time.Duration) {
	reg.RegisterSynth("coqui", func(e config.ProviderEntry) (synth.Provider, error) {
		var opts []coqui.Option
		if timeout > 0 {
			opts = append(opts, coqui.WithTimeout(timeout))
		}
		if mode := e.OptionString("api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		if lang := e.OptionString("language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if e.Voice != "" {
			opts = append(opts, coqui.WithVoice(e.Voice))
		}
		return coqui.New(e.BaseURL, opts...)
	})

	reg.RegisterSynth("openai", func(e config.ProviderEntry) (synth.Provider, error) {
		var opts []openai.Option
		if timeout > 0 {
			opts = append(opts, openai.WithTimeout(timeout))
		}
		if e.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(e.BaseURL))
		}
		if e.Voice != "" {
			opts = append(opts, openai.WithVoice(e.Voice))
		}
		return openai.New(e.APIKey, e.Model, opts...)
	})

	reg.RegisterSynth("command", func(e config.ProviderEntry) (synth.Provider, error) {
		var opts []command.Option
		if dir := e.OptionString("temp_dir"); dir != "" {
			opts = append(opts, command.WithTempDir(dir))
		}
		return command.New(e.Command, opts...)
	})
}

// BuildSynth creates the configured backend. With fallbacks configured the
// result is a [resilience.SynthFallback] trying them in order.
func BuildSynth(cfg config.SynthesisConfig, reg *config.Registry, m *observe.Metrics) (synth.Provider, error) {
	primary, err := reg.CreateSynth(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("synthesis provider %q: %w", cfg.Provider.Name, err)
	}
	if len(cfg.Fallbacks) == 0 {
		return primary, nil
	}

	fb := resilience.NewSynthFallback(primary, cfg.Provider.Name, resilience.FallbackConfig{}, m)
	for i, entry := range cfg.Fallbacks {
		p, err := reg.CreateSynth(entry)
		if err != nil {
			return nil, fmt.Errorf("synthesis fallback %d (%q): %w", i, entry.Name, err)
		}
		fb.AddFallback(fmt.Sprintf("%s#%d", entry.Name, i+1), p)
	}
	slog.Info("synthesis failover enabled", "backends", fb.Backends())
	return fb, nil
}

// EffectsOptions translates cfg into chain options. A non-zero seed in
// cfg is overridden by a non-zero seed argument.
func EffectsOptions(cfg config.EffectsConfig, seed uint64) []effects.Option {
	opts := []effects.Option{
		effects.WithCompression(cfg.CompressionThresholdDB, cfg.CompressionRatio),
		effects.WithClarityBoost(!cfg.DisableClarity),
		effects.WithVariations(!cfg.DisableVariations),
	}
	if seed == 0 {
		seed = cfg.Seed
	}
	if seed != 0 {
		opts = append(opts, effects.WithSeed(seed))
	}
	return opts
}

// BuildEngine assembles an orchestrator from cfg. extra options are applied
// to the effects chain after the configured ones.
func BuildEngine(cfg *config.Config, reg *config.Registry, m *observe.Metrics, extra ...effects.Option) (*engine.Orchestrator, error) {
	p, err := BuildSynth(cfg.Synthesis, reg, m)
	if err != nil {
		return nil, err
	}
	chain, err := effects.New(append(EffectsOptions(cfg.Effects, 0), extra...)...)
	if err != nil {
		return nil, err
	}
	return engine.New(p, chain,
		engine.WithMetrics(m),
		engine.WithSynthTimeout(cfg.Synthesis.Timeout),
	)
}
