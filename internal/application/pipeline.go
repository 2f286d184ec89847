package application

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"jarvis/internal/domain"
	"jarvis/internal/observe"
)

const (
	SourceText  = "text"
	SourceAudio = "audio"

	unknownDevice = "unknown"
)

// TextCommand is a typed command from a voice client.
type TextCommand struct {
	Text   string `json:"text"`
	Device string `json:"device"`
}

// AudioCommand carries base64 encoded audio recorded by a voice client.
type AudioCommand struct {
	Device    string `json:"device"`
	Timestamp string `json:"timestamp"`
	AudioData string `json:"audio_data"`
}

// Response is the caller-facing result of one request. Exactly one of
// Reply and Error is set.
type Response struct {
	Status     int             `json:"-"`
	Reply      string          `json:"reply,omitempty"`
	Error      string          `json:"error,omitempty"`
	Kind       domain.Kind     `json:"kind,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Provider   domain.Provider `json:"provider,omitempty"`
	Stages     []domain.Stage  `json:"-"`
}

// AudioTranscriber is the audio stage of the pipeline.
type AudioTranscriber interface {
	Transcribe(ctx context.Context, audio []byte) (domain.TranscriptionResult, error)
}

// Components are the collaborators a Pipeline runs a request through.
type Components struct {
	Transcriber   AudioTranscriber
	Resolver      IntentResolver
	Validator     *Validator
	Dispatcher    *Dispatcher
	Router        *ResponseRouter
	Snapshots     SnapshotSource
	FallbackReply string
}

// Pipeline runs one command at a time through transcription, resolution,
// validation, dispatch and reply. It holds no per-request state and is
// safe for concurrent use.
type Pipeline struct {
	transcriber   AudioTranscriber
	resolver      IntentResolver
	validator     *Validator
	dispatcher    *Dispatcher
	router        *ResponseRouter
	snapshots     SnapshotSource
	fallbackReply string
	metrics       *observe.Metrics
	logger        *slog.Logger
}

func NewPipeline(c Components, metrics *observe.Metrics, logger *slog.Logger) *Pipeline {
	if c.Validator == nil {
		c.Validator = NewValidator()
	}
	return &Pipeline{
		transcriber:   c.Transcriber,
		resolver:      c.Resolver,
		validator:     c.Validator,
		dispatcher:    c.Dispatcher,
		router:        c.Router,
		snapshots:     c.Snapshots,
		fallbackReply: c.FallbackReply,
		metrics:       metrics,
		logger:        logger,
	}
}

// HandleText runs a typed command.
func (p *Pipeline) HandleText(ctx context.Context, cmd TextCommand) *Response {
	req := p.begin(ctx, SourceText, cmd.Device)
	defer req.finish()

	return req.guard(func() *Response {
		text := strings.TrimSpace(cmd.Text)
		req.logger.Info("received text command", "text", text)
		if text == "" {
			return req.fail(domain.NewError(domain.KindInvalidInput, "No text provided", nil))
		}
		return p.interpret(req, text)
	})
}

// HandleAudio decodes and runs an audio command.
func (p *Pipeline) HandleAudio(ctx context.Context, cmd AudioCommand) *Response {
	req := p.begin(ctx, SourceAudio, cmd.Device)
	defer req.finish()

	return req.guard(func() *Response {
		audio, err := DecodeAudio(cmd.AudioData)
		if err != nil {
			return req.fail(domain.NewError(domain.KindInvalidAudio, "Invalid audio data format", err))
		}
		return p.transcribeAndInterpret(req, audio)
	})
}

// HandleAudioBytes runs raw audio captured locally.
func (p *Pipeline) HandleAudioBytes(ctx context.Context, device string, audio []byte) *Response {
	req := p.begin(ctx, SourceAudio, device)
	defer req.finish()

	return req.guard(func() *Response {
		if len(audio) == 0 {
			return req.fail(domain.NewError(domain.KindInvalidAudio, "Invalid audio data format", nil))
		}
		return p.transcribeAndInterpret(req, audio)
	})
}

// DecodeAudio decodes base64 audio, accepting an optional data URL prefix.
// Empty input is an error.
func DecodeAudio(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	if encoded == "" {
		return nil, errors.New("no audio data")
	}

	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("no audio data")
	}
	return audio, nil
}

func (p *Pipeline) transcribeAndInterpret(req *request, audio []byte) *Response {
	req.logger.Info("received audio", "bytes", len(audio))

	if err := req.advance(domain.StageTranscribing); err != nil {
		return req.fail(err)
	}
	if p.transcriber == nil {
		return req.fail(domain.NewError(domain.KindTranscriptionFailed, "Could not transcribe audio", errors.New("no transcriber configured")))
	}

	result, err := p.transcriber.Transcribe(req.ctx, audio)
	if err != nil {
		return req.fail(err)
	}

	req.logger.Info("transcribed", "text", result.Text, "provider", result.Provider)
	req.resp.Transcript = result.Text
	req.resp.Provider = result.Provider

	return p.interpret(req, result.Text)
}

func (p *Pipeline) interpret(req *request, text string) *Response {
	if err := req.advance(domain.StageResolving); err != nil {
		return req.fail(err)
	}

	snapshot := p.currentSnapshot()
	intent, err := p.resolver.Resolve(req.ctx, text, snapshot)
	if errors.Is(err, ErrNoMatch) {
		req.logger.Info("no intent matched", "text", text)
		return req.done(http.StatusOK, p.fallbackReply, domain.KindNoMatch)
	}
	if err != nil {
		return req.fail(err)
	}

	req.logger.Info("resolved intent",
		"entity_id", intent.EntityID,
		"action", intent.Action,
		"conversational", intent.IsConversational(),
	)

	if intent.IsConversational() {
		if err := req.advance(domain.StageResponding); err != nil {
			return req.fail(err)
		}
		_ = p.router.Deliver(req.ctx, intent.ConfirmationMessage, req.device)
		return req.done(http.StatusOK, intent.ConfirmationMessage, "")
	}

	if err := req.advance(domain.StageValidating); err != nil {
		return req.fail(err)
	}
	validated, err := p.validator.Validate(intent, snapshot)
	if err != nil {
		req.logger.Warn("intent rejected", "entity_id", intent.EntityID, "action", intent.Action, "error", err)
		return req.fail(err)
	}

	if err := req.advance(domain.StageDispatching); err != nil {
		return req.fail(err)
	}
	outcome, dispatchErr := p.dispatcher.Execute(req.ctx, validated)

	if err := req.advance(domain.StageResponding); err != nil {
		return req.fail(err)
	}
	_ = p.router.Deliver(req.ctx, outcome.Message, req.device)

	if dispatchErr != nil {
		return req.fail(dispatchErr)
	}
	return req.done(outcome.HTTPStatus, outcome.Message, "")
}

func (p *Pipeline) currentSnapshot() *domain.Snapshot {
	if p.snapshots == nil {
		return domain.NewSnapshot(nil)
	}
	return p.snapshots.Current()
}

// request is the per-request state of one pipeline run.
type request struct {
	ctx        context.Context
	source     string
	device     string
	run        *domain.Run
	resp       *Response
	logger     *slog.Logger
	metrics    *observe.Metrics
	stageStart time.Time
	end        func()
}

func (p *Pipeline) begin(ctx context.Context, source, device string) *request {
	id := uuid.NewString()
	if device == "" {
		device = unknownDevice
	}

	ctx, span := observe.StartSpan(ctx, "pipeline."+source)

	return &request{
		ctx:        ctx,
		source:     source,
		device:     device,
		run:        domain.NewRun(),
		resp:       &Response{RequestID: id},
		logger:     p.logger.With("request_id", id, "device", device, "source", source),
		metrics:    p.metrics,
		stageStart: time.Now(),
		end:        func() { span.End() },
	}
}

// guard converts a panic inside the run into an InternalError response.
func (r *request) guard(fn func() *Response) (resp *Response) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic while handling command", "panic", rec)
			resp = r.fail(domain.NewError(domain.KindInternal, "Internal error", fmt.Errorf("panic: %v", rec)))
		}
	}()
	return fn()
}

func (r *request) advance(next domain.Stage) error {
	prev := r.run.Current()
	if err := r.run.Advance(next); err != nil {
		return domain.NewError(domain.KindInternal, "Internal error", err)
	}
	now := time.Now()
	r.metrics.RecordStage(r.ctx, prev.String(), now.Sub(r.stageStart))
	r.stageStart = now
	return nil
}

func (r *request) done(status int, reply string, kind domain.Kind) *Response {
	if err := r.advance(domain.StageDone); err != nil {
		return r.fail(err)
	}
	r.resp.Status = status
	r.resp.Reply = reply
	r.resp.Kind = kind

	outcome := "ok"
	if kind != "" {
		outcome = string(kind)
	}
	r.metrics.RecordRequest(r.ctx, r.source, outcome)
	r.logger.Info("command handled", "status", status, "reply", reply)
	return r.resp
}

func (r *request) fail(err error) *Response {
	kind := domain.KindOf(err)
	message := "Internal error"
	var de *domain.Error
	if errors.As(err, &de) {
		message = de.Message
	}

	r.metrics.RecordStage(r.ctx, r.run.Current().String(), time.Since(r.stageStart))
	r.run.Fail(kind)

	r.resp.Status = kind.HTTPStatus()
	r.resp.Reply = ""
	r.resp.Error = message
	r.resp.Kind = kind

	r.metrics.RecordRequest(r.ctx, r.source, string(kind))
	r.logger.Warn("command failed", "kind", kind, "status", r.resp.Status, "error", err)
	return r.resp
}

func (r *request) finish() {
	r.resp.Stages = r.run.Trace()
	r.end()
}
