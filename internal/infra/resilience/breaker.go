// Package resilience isolates failing transcription providers behind
// circuit breakers.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"jarvis/internal/application"
	"jarvis/internal/domain"
)

// Guard wraps a Transcriber with a circuit breaker. After MaxFailures
// consecutive failures the provider reports itself unavailable until
// OpenTimeout has passed, so the chain skips it without waiting on it.
// Blank audio and canceled requests say nothing about the provider's
// health and never count as failures.
type Guard struct {
	name   string
	inner  application.Transcriber
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

func NewGuard(name string, inner application.Transcriber, maxFailures uint32, openTimeout time.Duration, logger *slog.Logger) *Guard {
	if maxFailures == 0 {
		maxFailures = 5
	}
	g := &Guard{name: name, inner: inner, logger: logger}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: isHealthy,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("transcription provider breaker state changed",
				"provider", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return g
}

func isHealthy(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrNoResult) ||
		errors.Is(err, context.Canceled)
}

// Available is false while the breaker is open or when the wrapped
// provider reports itself unavailable.
func (g *Guard) Available() bool {
	if a, ok := g.inner.(application.Availability); ok && !a.Available() {
		return false
	}
	return g.cb.State() != gobreaker.StateOpen
}

func (g *Guard) State() string {
	return g.cb.State().String()
}

func (g *Guard) Transcribe(ctx context.Context, audio []byte) (string, error) {
	out, err := g.cb.Execute(func() (interface{}, error) {
		return g.inner.Transcribe(ctx, audio)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}
