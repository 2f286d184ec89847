package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"jarvis/internal/application"
	"jarvis/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceCall struct {
	Domain  string
	Service string
	Data    map[string]any
}

type mockCaller struct {
	mu    sync.Mutex
	calls []serviceCall
	err   error
}

func (m *mockCaller) CallService(_ context.Context, domain, service string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, serviceCall{Domain: domain, Service: service, Data: data})
	return m.err
}

func (m *mockCaller) Calls() []serviceCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]serviceCall, len(m.calls))
	copy(out, m.calls)
	return out
}

type spoken struct {
	Speaker string
	Message string
}

type mockSpeaker struct {
	mu     sync.Mutex
	spoken []spoken
	err    error
}

func (m *mockSpeaker) Speak(_ context.Context, speaker, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spoken = append(m.spoken, spoken{Speaker: speaker, Message: message})
	return m.err
}

func (m *mockSpeaker) Spoken() []spoken {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]spoken, len(m.spoken))
	copy(out, m.spoken)
	return out
}

type mockNotifier struct {
	messages []string
}

func (m *mockNotifier) Notify(_ context.Context, message string) error {
	m.messages = append(m.messages, message)
	return nil
}

// mockTranscriber returns a fixed text or error and counts calls.
type mockTranscriber struct {
	text      string
	err       error
	panicMsg  string
	calls     int
}

func (m *mockTranscriber) Transcribe(_ context.Context, _ []byte) (string, error) {
	m.calls++
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

type availableTranscriber struct {
	*mockTranscriber
	ok bool
}

func (a availableTranscriber) Available() bool { return a.ok }

type blockingTranscriber struct{}

func (blockingTranscriber) Transcribe(ctx context.Context, _ []byte) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type countingResolver struct {
	inner application.IntentResolver
	calls int
}

func (c *countingResolver) Resolve(ctx context.Context, text string, snap *domain.Snapshot) (*domain.Intent, error) {
	c.calls++
	return c.inner.Resolve(ctx, text, snap)
}

type fixedResolver struct {
	intent *domain.Intent
	err    error
}

func (f fixedResolver) Resolve(_ context.Context, text string, _ *domain.Snapshot) (*domain.Intent, error) {
	if f.err != nil {
		return nil, f.err
	}
	i := *f.intent
	i.RawText = text
	return &i, nil
}

type fakeChatModel struct {
	reply   string
	err     error
	system  string
	prompts []string
}

func (f *fakeChatModel) Complete(_ context.Context, system, prompt string) (string, error) {
	f.system = system
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

var errBackend = errors.New("backend returned 500")

func conservatoryRules() []application.Rule {
	return []application.Rule{
		{ActionKeyword: "turn on", TargetKeyword: "conservatory", EntityID: "switch.conservatory_lights_switch_1", Service: "turn_on", Message: "Turning on conservatory lights"},
		{ActionKeyword: "turn off", TargetKeyword: "conservatory", EntityID: "switch.conservatory_lights_switch_1", Service: "turn_off", Message: "Turning off conservatory lights"},
	}
}

func homeSnapshot() *domain.Snapshot {
	return domain.NewSnapshot([]domain.Entity{
		domain.NewEntity("switch.conservatory_lights_switch_1", "Conservatory Lights"),
		domain.NewEntity("light.kitchen_ceiling", "Kitchen Ceiling"),
		domain.NewEntity("media_player.kitchen", "Kitchen Speaker"),
	})
}
