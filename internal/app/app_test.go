package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/prosodia/internal/app"
	"github.com/MrWong99/prosodia/internal/config"
	"github.com/MrWong99/prosodia/internal/engine"
	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/internal/resilience"
	"github.com/MrWong99/prosodia/pkg/effects"
	"github.com/MrWong99/prosodia/pkg/provider/synth"
	"github.com/MrWong99/prosodia/pkg/provider/synth/mock"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func builtinRegistry() *config.Registry {
	reg := config.NewRegistry()
	app.RegisterBuiltinProviders(reg, 5*time.Second)
	return reg
}

func TestRegisterBuiltinProviders(t *testing.T) {
	t.Parallel()
	got := builtinRegistry().SynthNames()
	want := []string{"command", "coqui", "openai"}
	if !slices.Equal(got, want) {
		t.Errorf("registered: got %v, want %v", got, want)
	}
}

func TestBuiltinFactories(t *testing.T) {
	t.Parallel()
	reg := builtinRegistry()
	tests := []struct {
		name    string
		entry   config.ProviderEntry
		wantErr bool
	}{
		{"coqui standard", config.ProviderEntry{Name: "coqui", BaseURL: "http://localhost:5002"}, false},
		{"coqui xtts", config.ProviderEntry{Name: "coqui", BaseURL: "http://localhost:8020", Voice: "Ana", Options: map[string]any{"api_mode": "xtts", "language": "en"}}, false},
		{"coqui bad mode", config.ProviderEntry{Name: "coqui", BaseURL: "http://localhost:5002", Options: map[string]any{"api_mode": "grpc"}}, true},
		{"coqui no url", config.ProviderEntry{Name: "coqui"}, true},
		{"openai", config.ProviderEntry{Name: "openai", APIKey: "sk-test", Voice: "onyx"}, false},
		{"openai no key", config.ProviderEntry{Name: "openai"}, true},
		{"command", config.ProviderEntry{Name: "command", Command: "piper --output_file {output}"}, false},
		{"command no output", config.ProviderEntry{Name: "command", Command: "piper"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := reg.CreateSynth(tt.entry)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p == nil {
				t.Fatal("provider is nil")
			}
		})
	}
}

func TestBuildSynth(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	primary := &mock.Provider{Err: errors.New("down")}
	backup := &mock.Provider{Result: mock.Sine(200, 0.1)}
	reg.RegisterSynth("primary", func(config.ProviderEntry) (synth.Provider, error) { return primary, nil })
	reg.RegisterSynth("backup", func(config.ProviderEntry) (synth.Provider, error) { return backup, nil })

	t.Run("single backend is returned as is", func(t *testing.T) {
		t.Parallel()
		p, err := app.BuildSynth(config.SynthesisConfig{Provider: config.ProviderEntry{Name: "backup"}}, reg, testMetrics(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p != backup {
			t.Error("expected the backend itself")
		}
	})

	t.Run("fallbacks wrap in failover", func(t *testing.T) {
		t.Parallel()
		cfg := config.SynthesisConfig{
			Provider:  config.ProviderEntry{Name: "primary"},
			Fallbacks: []config.ProviderEntry{{Name: "backup"}},
		}
		p, err := app.BuildSynth(cfg, reg, testMetrics(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		fb, ok := p.(*resilience.SynthFallback)
		if !ok {
			t.Fatalf("got %T, want *resilience.SynthFallback", p)
		}
		if got := fb.Backends(); !slices.Equal(got, []string{"primary", "backup#1"}) {
			t.Errorf("backends: got %v", got)
		}
		if _, err := p.Synthesize(context.Background(), synth.Request{Text: "hi"}); err != nil {
			t.Errorf("failover synthesize: %v", err)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Parallel()
		_, err := app.BuildSynth(config.SynthesisConfig{Provider: config.ProviderEntry{Name: "nope"}}, reg, testMetrics(t))
		if !errors.Is(err, config.ErrProviderNotRegistered) {
			t.Errorf("got %v, want ErrProviderNotRegistered", err)
		}
	})

	t.Run("unknown fallback", func(t *testing.T) {
		t.Parallel()
		cfg := config.SynthesisConfig{
			Provider:  config.ProviderEntry{Name: "primary"},
			Fallbacks: []config.ProviderEntry{{Name: "nope"}},
		}
		_, err := app.BuildSynth(cfg, reg, testMetrics(t))
		if !errors.Is(err, config.ErrProviderNotRegistered) {
			t.Errorf("got %v, want ErrProviderNotRegistered", err)
		}
	})
}

func TestBuildEngine_AgainstCoquiServer(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tts" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(sineWAV(22050, 4410))
	}))
	t.Cleanup(srv.Close)

	cfg, err := config.LoadFromReader(strings.NewReader("synthesis:\n  provider:\n    name: coqui\n    base_url: " + srv.URL + "\n"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	eng, err := app.BuildEngine(cfg, builtinRegistry(), testMetrics(t), effects.WithSeed(3))
	if err != nil {
		t.Fatalf("BuildEngine: %v", err)
	}
	res, err := eng.Speak(context.Background(), engine.Request{Text: "Hello there. How are you?"})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(res.Waveform.Samples) == 0 {
		t.Error("empty waveform")
	}
}

func TestBuildEngine_InvalidRatio(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterSynth("coqui", func(config.ProviderEntry) (synth.Provider, error) { return &mock.Provider{}, nil })
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Effects.CompressionRatio = -2

	_, err := app.BuildEngine(cfg, reg, testMetrics(t))
	if !errors.Is(err, effects.ErrInvalidRatio) {
		t.Errorf("got %v, want ErrInvalidRatio", err)
	}
}

func TestEffectsOptions_SeedOverride(t *testing.T) {
	t.Parallel()
	cfg := config.EffectsConfig{CompressionThresholdDB: -20, CompressionRatio: 2.5, Seed: 1}
	render := func(seed uint64) []float64 {
		chain, err := effects.New(app.EffectsOptions(cfg, seed)...)
		if err != nil {
			t.Fatalf("effects.New: %v", err)
		}
		out, err := chain.Apply(mock.Sine(200, 0.2).Samples, effects.Profile{Rate: 1, Volume: 1, Breathiness: 0.6}, "One. Two. Three.")
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		return out
	}
	a, b, c := render(0), render(1), render(9)
	if !slices.Equal(a, b) {
		t.Error("config seed and identical flag seed should match")
	}
	if slices.Equal(a, c) {
		t.Error("different seeds should differ")
	}
}
