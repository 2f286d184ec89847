package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"jarvis/internal/domain"
	"jarvis/internal/observe"
)

const dispatchFailedMessage = "Failed to control device"

// Dispatcher sends a validated intent to the backend as a single service
// call. It never retries.
type Dispatcher struct {
	caller  ServiceCaller
	metrics *observe.Metrics
	logger  *slog.Logger
}

func NewDispatcher(caller ServiceCaller, metrics *observe.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{caller: caller, metrics: metrics, logger: logger}
}

// Execute calls <domain>.<action> on the intent's entity with its
// parameters merged into the request body.
func (d *Dispatcher) Execute(ctx context.Context, vi *domain.ValidatedIntent) (domain.CommandOutcome, error) {
	entityDomain := vi.Entity.Domain

	data := make(map[string]any, len(vi.Parameters)+1)
	for k, v := range vi.Parameters {
		data[k] = v
	}
	data["entity_id"] = vi.Entity.ID

	d.logger.Info("calling service",
		"domain", entityDomain,
		"service", vi.Action,
		"entity_id", vi.Entity.ID,
	)

	if err := d.caller.CallService(ctx, entityDomain, vi.Action, data); err != nil {
		d.metrics.RecordServiceCall(ctx, entityDomain, "error")
		d.logger.Error("service call failed",
			"domain", entityDomain,
			"service", vi.Action,
			"entity_id", vi.Entity.ID,
			"error", err,
		)
		return domain.CommandOutcome{
				Success:    false,
				Message:    ApologyFor(vi.Entity),
				HTTPStatus: http.StatusInternalServerError,
			}, domain.NewError(domain.KindBackendCallFailed, dispatchFailedMessage,
				fmt.Errorf("calling %s.%s on %s: %w", entityDomain, vi.Action, vi.Entity.ID, err))
	}

	d.metrics.RecordServiceCall(ctx, entityDomain, "ok")

	msg := vi.ConfirmationMessage
	if msg == "" {
		msg = fmt.Sprintf("Done, %s.", displayName(vi.Entity))
	}
	return domain.CommandOutcome{Success: true, Message: msg, HTTPStatus: http.StatusOK}, nil
}

// ApologyFor is the reply spoken when the backend rejects a call.
func ApologyFor(e domain.Entity) string {
	return fmt.Sprintf("Sorry, I couldn't control %s.", displayName(e))
}

func displayName(e domain.Entity) string {
	if e.FriendlyName != "" {
		return e.FriendlyName
	}
	return e.ID
}
