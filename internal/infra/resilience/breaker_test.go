package resilience_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"jarvis/internal/domain"
	"jarvis/internal/infra/resilience"
)

type flakyTranscriber struct {
	err   error
	calls int
}

func (f *flakyTranscriber) Transcribe(context.Context, []byte) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "hello", nil
}

type offlineTranscriber struct{ flakyTranscriber }

func (offlineTranscriber) Available() bool { return false }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGuard_PassesThrough(t *testing.T) {
	inner := &flakyTranscriber{}
	g := resilience.NewGuard("whisper", inner, 2, time.Minute, discardLogger())

	text, err := g.Transcribe(context.Background(), []byte("a"))
	if err != nil || text != "hello" {
		t.Fatalf("unexpected result %q, %v", text, err)
	}
	if !g.Available() {
		t.Error("expected guard to be available")
	}
}

func TestGuard_OpensAfterFailures(t *testing.T) {
	inner := &flakyTranscriber{err: errors.New("503")}
	g := resilience.NewGuard("cloud_stt", inner, 2, time.Minute, discardLogger())

	for i := 0; i < 2; i++ {
		if _, err := g.Transcribe(context.Background(), []byte("a")); err == nil {
			t.Fatal("expected error")
		}
	}

	if g.Available() {
		t.Error("expected guard to be unavailable while open")
	}
	if g.State() != "open" {
		t.Errorf("expected open state, got %s", g.State())
	}

	_, err := g.Transcribe(context.Background(), []byte("a"))
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("expected open breaker to short-circuit, got %d calls", inner.calls)
	}
}

func TestGuard_HalfOpenRecovers(t *testing.T) {
	inner := &flakyTranscriber{err: errors.New("down")}
	g := resilience.NewGuard("cloud_stt", inner, 1, 20*time.Millisecond, discardLogger())

	g.Transcribe(context.Background(), []byte("a"))
	if g.Available() {
		t.Fatal("expected open breaker")
	}

	time.Sleep(40 * time.Millisecond)
	inner.err = nil

	if !g.Available() {
		t.Fatal("expected half-open breaker to allow a probe")
	}
	if _, err := g.Transcribe(context.Background(), []byte("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.State() != "closed" {
		t.Errorf("expected closed state, got %s", g.State())
	}
}

func TestGuard_InnerUnavailable(t *testing.T) {
	g := resilience.NewGuard("whisper", &offlineTranscriber{}, 2, time.Minute, discardLogger())
	if g.Available() {
		t.Error("expected unavailable inner provider to be reported")
	}
}

func TestGuard_BlankAudioDoesNotTrip(t *testing.T) {
	inner := &flakyTranscriber{err: domain.ErrNoResult}
	g := resilience.NewGuard("whisper", inner, 2, time.Minute, discardLogger())

	for i := 0; i < 5; i++ {
		if _, err := g.Transcribe(context.Background(), []byte("silence")); !errors.Is(err, domain.ErrNoResult) {
			t.Fatalf("attempt %d: expected ErrNoResult, got %v", i, err)
		}
	}

	if !g.Available() || g.State() != "closed" {
		t.Errorf("expected closed breaker after blank results, got %s", g.State())
	}

	inner.err = nil
	if text, err := g.Transcribe(context.Background(), []byte("a")); err != nil || text != "hello" {
		t.Errorf("unexpected result %q, %v", text, err)
	}
	if inner.calls != 6 {
		t.Errorf("expected every request to reach the provider, got %d calls", inner.calls)
	}
}

func TestGuard_CanceledRequestsDoNotTrip(t *testing.T) {
	inner := &flakyTranscriber{err: context.Canceled}
	g := resilience.NewGuard("cloud_stt", inner, 1, time.Minute, discardLogger())

	for i := 0; i < 3; i++ {
		g.Transcribe(context.Background(), []byte("a"))
	}

	if !g.Available() {
		t.Errorf("expected breaker to stay closed, got %s", g.State())
	}
}
