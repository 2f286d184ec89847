package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jarvis/config"
	"jarvis/internal/application"
	"jarvis/internal/domain"
	"jarvis/internal/infra/anyllm"
	"jarvis/internal/infra/cloudstt"
	"jarvis/internal/infra/homeassistant"
	"jarvis/internal/infra/openai"
	"jarvis/internal/infra/pushover"
	"jarvis/internal/infra/resilience"
	"jarvis/internal/infra/rules"
	"jarvis/internal/infra/snapshot"
	"jarvis/internal/infra/whispercpp"
	"jarvis/internal/observe"
)

// app holds everything a subcommand needs to run commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observe.Metrics
	store    *snapshot.Store
	ha       *homeassistant.Client
	pipeline *application.Pipeline
	closers  []func() error
}

func newApp(cfg *config.Config, metrics *observe.Metrics, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		store:   snapshot.NewStore(cfg.Entities.SnapshotPath, logger),
		ha:      homeassistant.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, cfg.HomeAssistant.Timeout, cfg.HomeAssistant.TTSService),
	}

	if err := a.store.Load(); err != nil {
		return nil, fmt.Errorf("loading entity snapshot: %w", err)
	}
	logger.Info("entity snapshot loaded", "path", cfg.Entities.SnapshotPath, "entities", a.store.Current().Len())

	chain, err := a.buildTranscription()
	if err != nil {
		a.Close()
		return nil, err
	}

	resolver, err := buildResolver(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	var notifier application.Notifier = &application.NoopNotifier{}
	if cfg.Pushover.Enabled {
		notifier = pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey)
	}

	router := application.NewResponseRouter(application.SpeakerTable{
		Default: cfg.Speakers.Default,
		Devices: cfg.Speakers.Devices,
		Rooms:   cfg.Speakers.Rooms,
	}, a.ha, notifier, metrics, logger)

	a.pipeline = application.NewPipeline(application.Components{
		Transcriber:   chain,
		Resolver:      resolver,
		Validator:     application.NewValidator(),
		Dispatcher:    application.NewDispatcher(a.ha, metrics, logger),
		Router:        router,
		Snapshots:     a.store,
		FallbackReply: cfg.Intent.FallbackReply,
	}, metrics, logger)

	return a, nil
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// buildTranscription assembles the provider chain in the configured order.
// Remote providers sit behind their own circuit breaker.
func (a *app) buildTranscription() (*application.TranscriptionChain, error) {
	tc := a.cfg.Transcription
	links := make([]application.ChainLink, 0, len(tc.Order))

	for _, name := range tc.Order {
		provider := domain.Provider(name)

		var t application.Transcriber
		switch provider {
		case domain.ProviderWhisper:
			t = openai.NewWhisperClient(tc.Whisper.APIKey, tc.Whisper.Model, tc.Whisper.Language, tc.Whisper.BaseURL, tc.Timeout)
		case domain.ProviderCloudSTT:
			t = cloudstt.NewClient(tc.Cloud.URL, tc.Cloud.APIKey, tc.Cloud.Language, tc.Timeout)
		case domain.ProviderOfflineSTT:
			if tc.Offline.ModelPath != "" {
				native, err := whispercpp.NewNative(tc.Offline.ModelPath, tc.Offline.Language)
				if err != nil {
					return nil, fmt.Errorf("loading offline model: %w", err)
				}
				a.closers = append(a.closers, native.Close)
				t = native
			} else {
				t = whispercpp.NewServerClient(tc.Offline.ServerURL, tc.Offline.Language, tc.Timeout)
			}
		default:
			return nil, fmt.Errorf("unknown transcription provider %q", name)
		}

		// The offline provider is the last resort and is always tried.
		if provider != domain.ProviderOfflineSTT {
			t = resilience.NewGuard(name, t, tc.Breaker.MaxFailures, tc.Breaker.OpenTimeout, a.logger)
		}
		links = append(links, application.ChainLink{Provider: provider, Transcriber: t})
	}

	a.logger.Info("transcription chain configured", "order", tc.Order)
	return application.NewTranscriptionChain(links, tc.Timeout, a.metrics, a.logger), nil
}

func buildResolver(cfg *config.Config, logger *slog.Logger) (application.IntentResolver, error) {
	switch cfg.Intent.Strategy {
	case "rules":
		loaded, err := rules.Load(cfg.Intent.RulesFile, cfg.Intent.Rules)
		if err != nil {
			return nil, fmt.Errorf("loading rules: %w", err)
		}
		logger.Info("rule resolver configured", "rules", len(loaded))
		return application.NewRuleResolver(loaded), nil
	case "model":
		model, err := buildChatModel(cfg.LLM)
		if err != nil {
			return nil, err
		}
		logger.Info("model resolver configured", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
		return application.NewModelResolver(model, logger), nil
	default:
		return nil, fmt.Errorf("unknown intent strategy %q", cfg.Intent.Strategy)
	}
}

func buildChatModel(cfg config.LLMConfig) (application.ChatModel, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewChatClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout), nil
	case "anthropic", "gemini":
		return anyllm.NewChatModel(cfg.Provider, cfg.Model, cfg.APIKey, cfg.BaseURL, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// startTelemetry installs the OpenTelemetry providers when metrics are
// enabled. The returned shutdown is never nil.
func startTelemetry(ctx context.Context, cfg config.TelemetryConfig) (*observe.Metrics, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Metrics {
		return nil, noop, nil
	}

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: cfg.ServiceName})
	if err != nil {
		return nil, noop, fmt.Errorf("initializing telemetry: %w", err)
	}
	return observe.DefaultMetrics(), shutdown, nil
}
