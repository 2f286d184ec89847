package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jarvis/config"
	"jarvis/internal/application"
	"jarvis/internal/infra/audio"
)

func newListenCmd(load configLoader) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run commands from a local audio source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			if source != "" {
				cfg.Listen.Source = source
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, nil, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			src, err := createAudioSource(cfg.Listen, logger)
			if err != nil {
				return err
			}
			return listenLoop(ctx, src, a.pipeline, cfg.Listen.Device, logger)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "audio source: file or microphone (overrides listen.source)")
	return cmd
}

func createAudioSource(cfg config.ListenConfig, logger *slog.Logger) (application.AudioSource, error) {
	switch cfg.Source {
	case "file":
		return audio.NewFileSource(cfg.FileDir, logger), nil
	case "microphone":
		return audio.NewMicrophoneSource(cfg.SampleRate, logger), nil
	default:
		return nil, fmt.Errorf("unknown audio source %q", cfg.Source)
	}
}

type audioHandler interface {
	HandleAudioBytes(ctx context.Context, device string, audio []byte) *application.Response
}

// listenLoop feeds each utterance from src through the pipeline until ctx
// is canceled. A failed read is logged and the loop keeps going.
func listenLoop(ctx context.Context, src application.AudioSource, h audioHandler, device string, logger *slog.Logger) error {
	if err := src.Start(ctx); err != nil {
		return fmt.Errorf("starting %s source: %w", src.Name(), err)
	}
	defer src.Stop()

	logger.Info("listening for commands", "source", src.Name(), "device", device)

	for {
		data, err := src.NextCommand(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error("reading audio", "source", src.Name(), "error", err)
			continue
		}

		resp := h.HandleAudioBytes(ctx, device, data)
		if resp.Error != "" {
			logger.Warn("command failed",
				"request_id", resp.RequestID,
				"kind", resp.Kind,
				"error", resp.Error,
			)
			continue
		}
		logger.Info("command handled",
			"request_id", resp.RequestID,
			"transcript", resp.Transcript,
			"reply", resp.Reply,
		)
	}
}
