package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known speech provider names. Used by [Validate]
// to warn about unrecognised provider names.
var ValidProviderNames = []string{"elevenlabs", "openai", "mock"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider
	if cfg.Provider.Name != "" && !slices.Contains(ValidProviderNames, cfg.Provider.Name) {
		slog.Warn("unknown provider name, may be a typo or third-party provider",
			"name", cfg.Provider.Name,
			"known", ValidProviderNames,
		)
	}
	if cfg.Provider.Name == "elevenlabs" && cfg.Provider.APIKey == "" {
		errs = append(errs, errors.New("provider.api_key is required for elevenlabs"))
	}
	if cfg.Provider.Name == "openai" && cfg.Provider.APIKey == "" {
		errs = append(errs, errors.New("provider.api_key is required for openai"))
	}
	if cfg.Provider.Name == "" {
		slog.Warn("no speech provider configured; lines without cached audio will not be spoken")
	}

	// Cache
	if cfg.Cache.Backend != "" && !cfg.Cache.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("cache.backend %q is invalid; valid values: memory, sqlite, postgres", cfg.Cache.Backend))
	}
	if cfg.Cache.Backend == BackendSQLite && cfg.Cache.Path == "" {
		errs = append(errs, errors.New("cache.path is required when cache.backend is sqlite"))
	}
	if cfg.Cache.Backend == BackendPostgres && cfg.Cache.DSN == "" {
		errs = append(errs, errors.New("cache.dsn is required when cache.backend is postgres"))
	}

	// Voices
	for name, c := range cfg.Voices.Characters {
		if name == "" {
			errs = append(errs, errors.New("voices.characters contains an entry with an empty name"))
		}
		if c.Voice == "" {
			slog.Warn("character has no voice assigned; its lines will fall through to the default voice",
				"character", name)
		}
	}
	if cfg.Voices.FuzzyThreshold != 0 && (cfg.Voices.FuzzyThreshold < 0 || cfg.Voices.FuzzyThreshold > 1) {
		errs = append(errs, fmt.Errorf("voices.fuzzy_threshold %.2f is out of range [0, 1]", cfg.Voices.FuzzyThreshold))
	}

	// Playback
	if p := cfg.Playback.Player; p != "" && p != "local" && p != "mock" {
		errs = append(errs, fmt.Errorf("playback.player %q is invalid; valid values: local, mock", p))
	}
	if cfg.Playback.PredictionOffsetMS < 0 || cfg.Playback.PredictionOffsetMS > 1000 {
		errs = append(errs, fmt.Errorf("playback.prediction_offset_ms %d is out of range [0, 1000]", cfg.Playback.PredictionOffsetMS))
	}
	if cfg.Playback.RecalibrateThresholdMS < 0 {
		errs = append(errs, fmt.Errorf("playback.recalibrate_threshold_ms %d must not be negative", cfg.Playback.RecalibrateThresholdMS))
	}
	if cfg.Playback.FrameIntervalMS < 0 || cfg.Playback.FrameIntervalMS > 1000 {
		errs = append(errs, fmt.Errorf("playback.frame_interval_ms %d is out of range [0, 1000]", cfg.Playback.FrameIntervalMS))
	}

	return errors.Join(errs...)
}
