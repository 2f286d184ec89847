package application

import (
	"context"
	"errors"

	"jarvis/internal/domain"
)

// Transcriber converts audio to text. Implementations return
// domain.ErrNoResult or any other error when they cannot produce text; the
// chain treats every error the same way.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Availability is implemented by transcribers that can be unusable for
// static reasons, such as a missing credential.
type Availability interface {
	Available() bool
}

// IntentResolver turns free text into an Intent. It returns ErrNoMatch when
// the text does not map to anything it knows.
type IntentResolver interface {
	Resolve(ctx context.Context, text string, snapshot *domain.Snapshot) (*domain.Intent, error)
}

var ErrNoMatch = errors.New("no matching intent")

// ChatModel is a language-model backend answering a single prompt.
type ChatModel interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ServiceCaller invokes a Home Assistant service. It makes exactly one
// attempt.
type ServiceCaller interface {
	CallService(ctx context.Context, domain, service string, data map[string]any) error
}

// Speaker plays a message on a speaker entity.
type Speaker interface {
	Speak(ctx context.Context, speakerEntity, message string) error
}

// SnapshotSource hands out the current entity snapshot.
type SnapshotSource interface {
	Current() *domain.Snapshot
}

type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _ string) error {
	return nil
}

// StaticSnapshot is a SnapshotSource that always returns the same snapshot.
type StaticSnapshot struct {
	Snapshot *domain.Snapshot
}

func (s StaticSnapshot) Current() *domain.Snapshot {
	return s.Snapshot
}
