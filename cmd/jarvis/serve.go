package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jarvis/internal/infra/httpapi"
)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the voice trigger HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			metrics, shutdownTelemetry, err := startTelemetry(ctx, cfg.Telemetry)
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTelemetry(sctx); err != nil {
					logger.Warn("telemetry shutdown failed", "error", err)
				}
			}()

			a, err := newApp(cfg, metrics, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if cfg.Entities.Watch {
				go func() {
					if err := a.store.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("entity snapshot watcher stopped", "error", err)
					}
				}()
			}

			server := httpapi.NewServer(httpapi.Options{
				Addr:           cfg.Server.Addr,
				ReadTimeout:    cfg.Server.ReadTimeout,
				WriteTimeout:   cfg.Server.WriteTimeout,
				MaxBodyBytes:   cfg.Server.MaxBodyBytes,
				Strategy:       cfg.Intent.Strategy,
				MetricsEnabled: cfg.Telemetry.Metrics,
			}, a.pipeline, a.store, metrics, logger)

			if err := server.Start(ctx); err != nil {
				return err
			}
			logger.Info("jarvis started",
				"addr", cfg.Server.Addr,
				"strategy", cfg.Intent.Strategy,
				"entities", a.store.Current().Len(),
			)

			<-ctx.Done()
			logger.Info("shutting down")
			return server.Stop()
		},
	}
}
