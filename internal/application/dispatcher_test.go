package application_test

import (
	"context"
	"net/http"
	"testing"

	"jarvis/internal/application"
	"jarvis/internal/domain"
)

func validated(id, action string, params map[string]any) *domain.ValidatedIntent {
	vi, err := application.NewValidator().Validate(&domain.Intent{
		EntityID:            id,
		Action:              action,
		Parameters:          params,
		ConfirmationMessage: "ok",
	}, homeSnapshot())
	if err != nil {
		panic(err)
	}
	return vi
}

func TestDispatcher_Execute(t *testing.T) {
	caller := &mockCaller{}
	d := application.NewDispatcher(caller, nil, discardLogger())

	outcome, err := d.Execute(context.Background(), validated("light.kitchen_ceiling", "turn_on", map[string]any{"brightness": 200}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Success || outcome.HTTPStatus != http.StatusOK || outcome.Message != "ok" {
		t.Errorf("unexpected outcome %+v", outcome)
	}

	calls := caller.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	c := calls[0]
	if c.Domain != "light" || c.Service != "turn_on" {
		t.Errorf("expected light.turn_on, got %s.%s", c.Domain, c.Service)
	}
	if c.Data["entity_id"] != "light.kitchen_ceiling" || c.Data["brightness"] != 200 {
		t.Errorf("unexpected payload %v", c.Data)
	}
}

func TestDispatcher_EntityIDCannotBeOverridden(t *testing.T) {
	caller := &mockCaller{}
	d := application.NewDispatcher(caller, nil, discardLogger())

	_, _ = d.Execute(context.Background(), validated("light.kitchen_ceiling", "turn_on", map[string]any{"entity_id": "lock.front_door"}))

	if got := caller.Calls()[0].Data["entity_id"]; got != "light.kitchen_ceiling" {
		t.Errorf("expected validated entity id in payload, got %v", got)
	}
}

func TestDispatcher_BackendFailure(t *testing.T) {
	caller := &mockCaller{err: errBackend}
	d := application.NewDispatcher(caller, nil, discardLogger())

	outcome, err := d.Execute(context.Background(), validated("switch.conservatory_lights_switch_1", "turn_off", nil))
	if domain.KindOf(err) != domain.KindBackendCallFailed {
		t.Fatalf("expected BackendCallFailed, got %v", err)
	}
	if outcome.Success || outcome.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("unexpected outcome %+v", outcome)
	}
	if outcome.Message != "Sorry, I couldn't control Conservatory Lights." {
		t.Errorf("unexpected apology %q", outcome.Message)
	}
	if len(caller.Calls()) != 1 {
		t.Errorf("expected a single attempt, got %d", len(caller.Calls()))
	}
}
