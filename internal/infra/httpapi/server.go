// Package httpapi exposes the command pipeline to voice clients over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jarvis/internal/application"
	"jarvis/internal/domain"
	"jarvis/internal/observe"
)

// CommandHandler runs commands through the pipeline.
type CommandHandler interface {
	HandleText(ctx context.Context, cmd application.TextCommand) *application.Response
	HandleAudio(ctx context.Context, cmd application.AudioCommand) *application.Response
}

type Options struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxBodyBytes   int64
	Strategy       string
	MetricsEnabled bool
}

type Server struct {
	opts      Options
	handler   CommandHandler
	snapshots application.SnapshotSource
	metrics   *observe.Metrics
	logger    *slog.Logger

	mux     *http.ServeMux
	mu      sync.Mutex
	server  *http.Server
	running bool
}

func NewServer(opts Options, handler CommandHandler, snapshots application.SnapshotSource, metrics *observe.Metrics, logger *slog.Logger) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 20 << 20
	}
	s := &Server{
		opts:      opts,
		handler:   handler,
		snapshots: snapshots,
		metrics:   metrics,
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /api/voice_trigger", s.handleVoiceTrigger)
	s.mux.HandleFunc("POST /api/audio_trigger", s.handleAudioTrigger)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if opts.MetricsEnabled {
		s.mux.Handle("GET /metrics", promhttp.Handler())
	}
	return s
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	return observe.Middleware(s.metrics, s.logger)(s.recoverer(s.mux))
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.opts.Addr, err)
	}

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("HTTP server starting", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}

	s.running = false
	return nil
}

func (s *Server) handleVoiceTrigger(w http.ResponseWriter, r *http.Request) {
	var cmd application.TextCommand
	if !s.decode(w, r, &cmd) {
		return
	}
	s.writeResponse(w, s.handler.HandleText(r.Context(), cmd))
}

func (s *Server) handleAudioTrigger(w http.ResponseWriter, r *http.Request) {
	var cmd application.AudioCommand
	if !s.decode(w, r, &cmd) {
		return
	}
	s.writeResponse(w, s.handler.HandleAudio(r.Context(), cmd))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	status, code := "ok", http.StatusOK
	if !running {
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	entities := 0
	if s.snapshots != nil {
		entities = s.snapshots.Current().Len()
	}

	writeJSON(w, code, map[string]any{
		"status":   status,
		"entities": entities,
		"strategy": s.opts.Strategy,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		s.logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func (s *Server) writeResponse(w http.ResponseWriter, resp *application.Response) {
	if resp.RequestID != "" {
		w.Header().Set("X-Request-ID", resp.RequestID)
	}
	writeJSON(w, resp.Status, resp)
}

// recoverer turns a handler panic into a 500 InternalError response.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic in HTTP handler", "path", r.URL.Path, "panic", rec)
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"error": "Internal error",
					"kind":  string(domain.KindInternal),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
