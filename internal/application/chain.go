package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jarvis/internal/domain"
	"jarvis/internal/observe"
)

// ChainLink is one provider slot in a TranscriptionChain.
type ChainLink struct {
	Provider    domain.Provider
	Transcriber Transcriber
}

// TranscriptionChain tries providers strictly in order and returns the
// first non-empty transcript. A provider that errors, times out, panics or
// returns blank text counts as "no result" and the next one is tried.
type TranscriptionChain struct {
	links   []ChainLink
	timeout time.Duration
	metrics *observe.Metrics
	logger  *slog.Logger
}

func NewTranscriptionChain(links []ChainLink, timeout time.Duration, metrics *observe.Metrics, logger *slog.Logger) *TranscriptionChain {
	l := make([]ChainLink, len(links))
	copy(l, links)
	return &TranscriptionChain{
		links:   l,
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
	}
}

// Providers returns the configured provider order.
func (c *TranscriptionChain) Providers() []domain.Provider {
	out := make([]domain.Provider, 0, len(c.links))
	for _, l := range c.links {
		out = append(out, l.Provider)
	}
	return out
}

func (c *TranscriptionChain) Transcribe(ctx context.Context, audio []byte) (domain.TranscriptionResult, error) {
	if len(audio) == 0 {
		return domain.TranscriptionResult{}, domain.NewError(domain.KindInvalidAudio, "Invalid audio data format", nil)
	}

	var attempted []string
	for _, link := range c.links {
		name := string(link.Provider)

		if link.Transcriber == nil {
			c.logger.Debug("transcription provider not configured", "provider", name)
			c.metrics.RecordProviderAttempt(ctx, name, "skipped")
			continue
		}
		if a, ok := link.Transcriber.(Availability); ok && !a.Available() {
			c.logger.Debug("transcription provider unavailable, skipping", "provider", name)
			c.metrics.RecordProviderAttempt(ctx, name, "skipped")
			continue
		}

		attempted = append(attempted, name)
		text, err := c.attempt(ctx, link.Transcriber, audio)
		if err != nil {
			c.logger.Warn("transcription provider failed, trying next", "provider", name, "error", err)
			c.metrics.RecordProviderAttempt(ctx, name, "no_result")
			continue
		}

		c.metrics.RecordProviderAttempt(ctx, name, "ok")
		return domain.TranscriptionResult{Text: text, Provider: link.Provider}, nil
	}

	return domain.TranscriptionResult{}, domain.NewError(
		domain.KindTranscriptionFailed,
		"Could not transcribe audio",
		fmt.Errorf("no provider produced a transcript (attempted: %s)", strings.Join(attempted, ", ")),
	)
}

// attempt runs one provider with its own deadline and converts panics and
// blank output into errors.
func (c *TranscriptionChain) attempt(ctx context.Context, t Transcriber, audio []byte) (text string, err error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("provider panicked: %v", r)
		}
	}()

	text, err = t.Transcribe(ctx, audio)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrNoResult
	}
	return text, nil
}
