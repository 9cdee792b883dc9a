package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/prosodia/pkg/effects"
	"github.com/MrWong99/prosodia/pkg/emotion"
)

// Defaults for values left unset by file and environment.
const (
	DefaultBaselineDir   = "src/main/resources/audio"
	DefaultTestDir       = "/tmp/voice_test_samples"
	DefaultReportPath    = "/tmp/voice_test_report.json"
	DefaultSynthCommand  = "prosodia-synth"
	DefaultSampleTimeout = 60 * time.Second
	DefaultSynthTimeout  = 30 * time.Second
	DefaultProvider      = "coqui"
	DefaultCoquiURL      = "http://localhost:5002"
)

// ValidProviderNames lists the synthesis backends that ship with prosodia.
// Used by [Validate] to warn about unrecognised names.
var ValidProviderNames = []string{"coqui", "openai", "command"}

// Load builds a [Config] from the YAML file at path (skipped when path is
// empty), then applies .env and PROSODIA_* environment overrides, defaults
// and validation.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. The environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv loads an optional .env file from the working directory and then
// overrides cfg with PROSODIA_* variables, e.g. PROSODIA_SYNTH_PROVIDER_NAME
// or PROSODIA_VALIDATION_TEST_DIR. Unset variables leave cfg untouched.
func ApplyEnv(cfg *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: ignoring unreadable .env file", "err", err)
	}
	if err := env.Parse(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// ApplyDefaults fills zero-valued fields of cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	if cfg.Synthesis.Provider.Name == "" {
		cfg.Synthesis.Provider.Name = DefaultProvider
	}
	if cfg.Synthesis.Provider.Name == "coqui" && cfg.Synthesis.Provider.BaseURL == "" {
		cfg.Synthesis.Provider.BaseURL = DefaultCoquiURL
	}
	if cfg.Synthesis.Timeout == 0 {
		cfg.Synthesis.Timeout = DefaultSynthTimeout
	}

	if cfg.Effects.CompressionThresholdDB == 0 {
		cfg.Effects.CompressionThresholdDB = effects.DefaultThresholdDB
	}
	if cfg.Effects.CompressionRatio == 0 {
		cfg.Effects.CompressionRatio = effects.DefaultRatio
	}

	v := &cfg.Validation
	if v.BaselineDir == "" {
		v.BaselineDir = DefaultBaselineDir
	}
	if v.TestDir == "" {
		v.TestDir = DefaultTestDir
	}
	if v.ReportPath == "" {
		v.ReportPath = DefaultReportPath
	}
	if v.SynthCommand == "" {
		v.SynthCommand = DefaultSynthCommand
	}
	if v.Timeout == 0 {
		v.Timeout = DefaultSampleTimeout
	}
	if v.Mode == "" {
		v.Mode = ModeSubprocess
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	errs = append(errs, validateEntry("synthesis.provider", cfg.Synthesis.Provider)...)
	for i, fb := range cfg.Synthesis.Fallbacks {
		errs = append(errs, validateEntry(fmt.Sprintf("synthesis.fallbacks[%d]", i), fb)...)
	}
	if cfg.Synthesis.Timeout < 0 {
		errs = append(errs, fmt.Errorf("synthesis.timeout %v must not be negative", cfg.Synthesis.Timeout))
	}

	if cfg.Effects.CompressionRatio < 0 {
		errs = append(errs, fmt.Errorf("effects.compression_ratio %.2f: %w", cfg.Effects.CompressionRatio, effects.ErrInvalidRatio))
	}

	v := cfg.Validation
	if v.Mode != "" && !v.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("validation.mode %q is invalid; valid values: subprocess, inprocess", v.Mode))
	}
	if v.Timeout < 0 {
		errs = append(errs, fmt.Errorf("validation.timeout %v must not be negative", v.Timeout))
	}
	seen := make(map[string]int, len(v.Samples))
	for i, s := range v.Samples {
		prefix := fmt.Sprintf("validation.samples[%d]", i)
		if s.Text == "" {
			errs = append(errs, fmt.Errorf("%s.text is required", prefix))
		}
		if s.Category == "" || s.Name == "" {
			errs = append(errs, fmt.Errorf("%s: category and name are required", prefix))
		} else {
			key := s.Category + "/" + s.Name
			if prev, ok := seen[key]; ok {
				errs = append(errs, fmt.Errorf("%s %q is a duplicate of validation.samples[%d]", prefix, key, prev))
			}
			seen[key] = i
		}
		if s.Emotion != "" && !emotion.Known(s.Emotion) {
			slog.Warn("unknown emotion in sample; neutral will be used", "sample", s.Name, "emotion", s.Emotion)
		}
	}

	return errors.Join(errs...)
}

func validateEntry(prefix string, e ProviderEntry) []error {
	var errs []error
	switch e.Name {
	case "":
		errs = append(errs, fmt.Errorf("%s.name is required", prefix))
	case "openai":
		if e.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required for openai", prefix))
		}
	case "command":
		if e.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required for command", prefix))
		}
	}
	if e.Name != "" && !slices.Contains(ValidProviderNames, e.Name) {
		slog.Warn("unknown provider name; may be a typo or third-party provider",
			"field", prefix,
			"name", e.Name,
			"known", ValidProviderNames,
		)
	}
	return errs
}
