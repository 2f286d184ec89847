package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"jarvis/internal/application"
	"jarvis/internal/domain"
	"jarvis/internal/infra/homeassistant"
	"jarvis/internal/infra/httpapi"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeHomeAssistant records service calls and answers with serviceStatus.
type fakeHomeAssistant struct {
	mu            sync.Mutex
	paths         []string
	bodies        []map[string]any
	serviceStatus int
}

func (f *fakeHomeAssistant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.bodies = append(f.bodies, body)
	status := f.serviceStatus
	f.mu.Unlock()

	if strings.HasPrefix(r.URL.Path, "/api/services/tts/") {
		w.Write([]byte("[]"))
		return
	}
	w.WriteHeader(status)
	w.Write([]byte("[]"))
}

func (f *fakeHomeAssistant) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

type env struct {
	ha      *fakeHomeAssistant
	handler http.Handler
	server  *httpapi.Server
	stt     *stubTranscriber
}

type stubTranscriber struct {
	calls int
}

func (s *stubTranscriber) Transcribe(context.Context, []byte) (string, error) {
	s.calls++
	return "turn off conservatory lights", nil
}

func newEnv(t *testing.T, serviceStatus int) *env {
	t.Helper()

	ha := &fakeHomeAssistant{serviceStatus: serviceStatus}
	haServer := httptest.NewServer(ha)
	t.Cleanup(haServer.Close)

	logger := discardLogger()
	client := homeassistant.NewClient(haServer.URL, "token", time.Second, "")
	snap := application.StaticSnapshot{Snapshot: domain.NewSnapshot([]domain.Entity{
		domain.NewEntity("switch.conservatory_lights_switch_1", "Conservatory Lights"),
	})}
	stt := &stubTranscriber{}

	pipeline := application.NewPipeline(application.Components{
		Transcriber: application.NewTranscriptionChain([]application.ChainLink{
			{Provider: domain.ProviderWhisper, Transcriber: stt},
		}, time.Second, nil, logger),
		Resolver: application.NewRuleResolver([]application.Rule{
			{ActionKeyword: "turn off", TargetKeyword: "conservatory", EntityID: "switch.conservatory_lights_switch_1", Service: "turn_off", Message: "Turning off conservatory lights"},
		}),
		Dispatcher:    application.NewDispatcher(client, nil, logger),
		Router:        application.NewResponseRouter(application.SpeakerTable{Default: "media_player.kitchen"}, client, nil, nil, logger),
		Snapshots:     snap,
		FallbackReply: "Sorry, I don't understand that command.",
	}, nil, logger)

	server := httpapi.NewServer(httpapi.Options{Addr: "127.0.0.1:0", Strategy: "rules", MaxBodyBytes: 1024}, pipeline, snap, nil, logger)
	return &env{ha: ha, handler: server.Handler(), server: server, stt: stt}
}

func (e *env) post(path, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var out map[string]any
	json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestVoiceTrigger_TurnOff(t *testing.T) {
	e := newEnv(t, http.StatusOK)

	rec, out := e.post("/api/voice_trigger", `{"text":"turn off conservatory lights","device":"kitchen"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	if out["reply"] != "Turning off conservatory lights" {
		t.Errorf("reply: got %v", out["reply"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	paths := e.ha.Paths()
	if len(paths) != 2 || paths[0] != "/api/services/switch/turn_off" || paths[1] != "/api/services/tts/google_translate_say" {
		t.Errorf("unexpected backend calls %v", paths)
	}
	if e.ha.bodies[0]["entity_id"] != "switch.conservatory_lights_switch_1" {
		t.Errorf("unexpected service body %v", e.ha.bodies[0])
	}
	if e.ha.bodies[1]["message"] != "Turning off conservatory lights" || e.ha.bodies[1]["entity_id"] != "media_player.kitchen" {
		t.Errorf("unexpected tts body %v", e.ha.bodies[1])
	}
}

func TestVoiceTrigger_NoMatch(t *testing.T) {
	e := newEnv(t, http.StatusOK)

	rec, out := e.post("/api/voice_trigger", `{"text":"play jazz music","device":"kitchen"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if reply, _ := out["reply"].(string); !strings.HasPrefix(reply, "Sorry, I don't understand") {
		t.Errorf("reply: got %v", out["reply"])
	}
	if len(e.ha.Paths()) != 0 {
		t.Errorf("expected no backend calls, got %v", e.ha.Paths())
	}
}

func TestVoiceTrigger_BackendFailure(t *testing.T) {
	e := newEnv(t, http.StatusInternalServerError)

	rec, out := e.post("/api/voice_trigger", `{"text":"turn off conservatory lights"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", rec.Code)
	}
	if out["error"] != "Failed to control device" {
		t.Errorf("error: got %v", out["error"])
	}
	if _, ok := out["reply"]; ok {
		t.Error("expected no reply field on failure")
	}

	paths := e.ha.Paths()
	if len(paths) != 2 || paths[1] != "/api/services/tts/google_translate_say" {
		t.Fatalf("expected apology to be spoken, got %v", paths)
	}
	if e.ha.bodies[1]["message"] != "Sorry, I couldn't control Conservatory Lights." {
		t.Errorf("unexpected apology %v", e.ha.bodies[1]["message"])
	}
}

func TestVoiceTrigger_BadJSON(t *testing.T) {
	e := newEnv(t, http.StatusOK)

	rec, out := e.post("/api/voice_trigger", `{"text":`)
	if rec.Code != http.StatusBadRequest || out["error"] != "Invalid JSON body" {
		t.Errorf("unexpected response %d %v", rec.Code, out)
	}

	rec, _ = e.post("/api/voice_trigger", `{"text":"`+strings.Repeat("a", 2048)+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for oversized body, got %d", rec.Code)
	}
}

func TestAudioTrigger_InvalidBase64(t *testing.T) {
	e := newEnv(t, http.StatusOK)

	rec, out := e.post("/api/audio_trigger", `{"device":"kitchen","timestamp":"2024-01-01T00:00:00Z","audio_data":"***"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rec.Code)
	}
	if out["error"] != "Invalid audio data format" {
		t.Errorf("error: got %v", out["error"])
	}
	if e.stt.calls != 0 {
		t.Error("expected no transcription attempt")
	}
}

func TestAudioTrigger_Transcribed(t *testing.T) {
	e := newEnv(t, http.StatusOK)

	rec, out := e.post("/api/audio_trigger", `{"device":"kitchen","audio_data":"UklGRg=="}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	if out["transcript"] != "turn off conservatory lights" || out["provider"] != "whisper" {
		t.Errorf("unexpected body %v", out)
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t, http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before start, got %d", rec.Code)
	}

	if err := e.server.Start(context.Background()); err != nil {
		t.Fatalf("starting server: %v", err)
	}
	defer e.server.Stop()

	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var out map[string]any
	json.Unmarshal(rec.Body.Bytes(), &out)
	if rec.Code != http.StatusOK || out["status"] != "ok" || out["entities"] != float64(1) || out["strategy"] != "rules" {
		t.Errorf("unexpected health %d %v", rec.Code, out)
	}
}

type panickyHandler struct{}

func (panickyHandler) HandleText(context.Context, application.TextCommand) *application.Response {
	panic("boom")
}

func (panickyHandler) HandleAudio(context.Context, application.AudioCommand) *application.Response {
	panic("boom")
}

func TestRecoverer(t *testing.T) {
	server := httpapi.NewServer(httpapi.Options{}, panickyHandler{}, nil, nil, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/voice_trigger", bytes.NewReader([]byte(`{"text":"x"}`)))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal_error") {
		t.Errorf("unexpected body %s", rec.Body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := httpapi.NewServer(httpapi.Options{MetricsEnabled: true}, panickyHandler{}, nil, nil, discardLogger())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected metrics endpoint, got %d", rec.Code)
	}

	plain := httpapi.NewServer(httpapi.Options{}, panickyHandler{}, nil, nil, discardLogger())
	rec = httptest.NewRecorder()
	plain.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected no metrics endpoint when disabled, got %d", rec.Code)
	}
}
