// Command novella is the playback server for voiced visual novel stories.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sversen/novella/internal/audiocache"
	"github.com/sversen/novella/internal/config"
	"github.com/sversen/novella/internal/health"
	"github.com/sversen/novella/internal/media"
	"github.com/sversen/novella/internal/observe"
	"github.com/sversen/novella/internal/playback"
	"github.com/sversen/novella/internal/resilience"
	"github.com/sversen/novella/internal/script"
	"github.com/sversen/novella/internal/server"
	"github.com/sversen/novella/pkg/audio"
	audiolocal "github.com/sversen/novella/pkg/audio/local"
	audiomock "github.com/sversen/novella/pkg/audio/mock"
	"github.com/sversen/novella/pkg/speech"
	"github.com/sversen/novella/pkg/speech/elevenlabs"
	speechmock "github.com/sversen/novella/pkg/speech/mock"
	"github.com/sversen/novella/pkg/speech/openai"
	"github.com/sversen/novella/pkg/store"
	"github.com/sversen/novella/pkg/store/memstore"
	pgstore "github.com/sversen/novella/pkg/store/postgres"
	"github.com/sversen/novella/pkg/store/sqlite"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	storyPath := flag.String("story", "story.yaml", "path to the story YAML file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "novella: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "novella: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so config hot reload can adjust it.
	logLevel := new(slog.LevelVar)
	logLevel.Set(cfg.Server.LogLevel.SlogLevel())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("novella starting",
		"config", *configPath,
		"story", *storyPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Story ─────────────────────────────────────────────────────────────────
	story, err := script.LoadStory(*storyPath)
	if err != nil {
		slog.Error("failed to load story", "err", err)
		return 1
	}
	language := cfg.Playback.Language
	if language == "" {
		language = story.Meta.Language
	}
	slog.Info("story loaded", "title", story.Meta.Title, "start", story.Meta.Start, "language", language)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:   "novella",
		StoryTitle:    story.Meta.Title,
		StoryLanguage: language,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Cache store backend ───────────────────────────────────────────────────
	kv, blobs, closeStore, err := openStore(ctx, cfg.Cache)
	if err != nil {
		slog.Error("failed to open cache store", "backend", cfg.Cache.Backend, "err", err)
		return 1
	}
	defer closeStore()

	cache, err := audiocache.New(ctx, kv, logger)
	if err != nil {
		slog.Error("failed to open audio cache", "err", err)
		return 1
	}

	// ── Speech provider ───────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	provider, err := buildProvider(cfg, reg)
	if err != nil {
		slog.Error("failed to create speech provider", "name", cfg.Provider.Name, "err", err)
		return 1
	}

	// ── Audio player ──────────────────────────────────────────────────────────
	playerName := cfg.Playback.Player
	if playerName == "" {
		playerName = "local"
	}
	player, err := reg.CreatePlayer(playerName)
	if err != nil {
		slog.Error("failed to create audio player", "name", playerName, "err", err)
		return 1
	}

	// ── Voice resolution ──────────────────────────────────────────────────────
	// The resolver is swapped atomically on config hot reload; new sessions
	// pick up the new voice table.
	var resolver atomic.Pointer[script.Resolver]
	resolver.Store(newResolver(cfg, language))

	prefetcher := media.NewPrefetcher(blobs, logger)

	// ── Gateway ───────────────────────────────────────────────────────────────
	checks := health.New(
		health.StoreChecker(kv),
		health.ProviderChecker(cfg.Provider.Name),
	)

	srv := server.New(server.Config{
		ListenAddr: cfg.Server.ListenAddr,
		Health:     checks,
		Metrics:    metrics,
		Logger:     logger,
		NewController: func(h server.Hooks) *playback.Controller {
			return playback.New(playback.Config{
				Provider:             provider,
				Cache:                cache,
				Player:               player,
				Resolver:             resolver.Load(),
				Scenes:               story,
				Prefetcher:           prefetcher,
				Metrics:              metrics,
				Logger:               logger,
				Language:             language,
				PredictionOffset:     cfg.Playback.PredictionOffset(),
				RecalibrateThreshold: cfg.Playback.RecalibrateThreshold(),
				FrameInterval:        cfg.Playback.FrameInterval(),
				OnState:              h.OnState,
				OnHighlight:          h.OnHighlight,
			})
		},
	})

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			logLevel.Set(diff.NewLogLevel.SlogLevel())
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		if diff.VoicesChanged {
			resolver.Store(newResolver(new, language))
			for _, vc := range diff.VoiceChanges {
				slog.Info("voice assignment changed",
					"character", vc.Name,
					"added", vc.Added,
					"removed", vc.Removed,
				)
			}
			slog.Info("voice table reloaded; applies to new sessions")
		}
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// registerBuiltinProviders wires the speech provider and audio player
// factories that ship with novella into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSpeech("elevenlabs", func(entry config.ProviderEntry) (speech.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.OutputFormat != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(entry.OutputFormat))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterSpeech("openai", func(entry config.ProviderEntry) (speech.Provider, error) {
		var opts []openai.Option
		if entry.Model != "" {
			opts = append(opts, openai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, opts...)
	})

	reg.RegisterSpeech("mock", func(config.ProviderEntry) (speech.Provider, error) {
		return &speechmock.Provider{}, nil
	})

	reg.RegisterPlayer("local", func() (audio.Player, error) {
		return audiolocal.NewPlayer(), nil
	})

	reg.RegisterPlayer("mock", func() (audio.Player, error) {
		return &audiomock.Player{SessionDuration: time.Second}, nil
	})
}

// buildProvider creates the configured speech provider wrapped in a circuit
// breaker, or nil when no provider is configured. With a nil provider,
// uncached lines stay text-only.
func buildProvider(cfg *config.Config, reg *config.Registry) (speech.Provider, error) {
	if cfg.Provider.Name == "" {
		return nil, nil
	}
	p, err := reg.CreateSpeech(cfg.Provider)
	if err != nil {
		return nil, err
	}
	slog.Info("speech provider created", "name", cfg.Provider.Name, "model", cfg.Provider.Model)

	breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: cfg.Provider.Name})
	return resilience.WrapProvider(p, breaker), nil
}

// newResolver builds a voice resolver snapshot from the current config.
func newResolver(cfg *config.Config, language string) *script.Resolver {
	var opts []script.ResolverOption
	if cfg.Voices.FuzzyThreshold != 0 {
		opts = append(opts, script.WithFuzzyThreshold(cfg.Voices.FuzzyThreshold))
	}
	return script.NewResolver(cfg.Voices.Table(), cfg.Voices.Chain(), language, opts...)
}

// openStore opens the configured cache backend and returns its KV and blob
// interfaces plus a close function.
func openStore(ctx context.Context, cc config.CacheConfig) (store.KV, store.BlobStore, func(), error) {
	switch cc.Backend {
	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, cc.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, func() {
			if err := s.Close(); err != nil {
				slog.Warn("sqlite close error", "err", err)
			}
		}, nil

	case config.BackendPostgres:
		s, err := pgstore.New(ctx, cc.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, func() { s.Close() }, nil

	default: // memory
		return memstore.NewKV(), memstore.NewBlobStore(), func() {}, nil
	}
}
