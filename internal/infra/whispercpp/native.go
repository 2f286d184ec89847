//go:build whispercpp

package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"jarvis/internal/domain"
	"jarvis/internal/infra/audio"
)

const whisperSampleRate = 16000

// NativeTranscriber runs whisper.cpp in process. The model is loaded once;
// each call gets its own context. Inference is serialized since a single
// model instance is shared.
type NativeTranscriber struct {
	model    whisperlib.Model
	language string
	mu       sync.Mutex
}

// NewNative loads the ggml model at modelPath.
func NewNative(modelPath, language string) (*NativeTranscriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper model path must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading whisper model %q: %w", modelPath, err)
	}
	return &NativeTranscriber{model: model, language: language}, nil
}

func (n *NativeTranscriber) Close() error {
	return n.model.Close()
}

// Transcribe expects 16 kHz 16-bit PCM WAV audio.
func (n *NativeTranscriber) Transcribe(ctx context.Context, data []byte) (string, error) {
	pcm, err := audio.DecodeWAV(data)
	if err != nil {
		return "", fmt.Errorf("decoding audio: %w", err)
	}
	if pcm.SampleRate != whisperSampleRate {
		return "", fmt.Errorf("unsupported sample rate %d, want %d", pcm.SampleRate, whisperSampleRate)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	wctx, err := n.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("creating whisper context: %w", err)
	}
	if n.language != "" {
		if err := wctx.SetLanguage(n.language); err != nil {
			return "", fmt.Errorf("setting language %q: %w", n.language, err)
		}
	}

	if err := wctx.Process(pcm.Mono(), nil, nil, nil); err != nil {
		return "", fmt.Errorf("running inference: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading segment: %w", err)
		}
		if t := strings.TrimSpace(segment.Text); t != "" {
			parts = append(parts, t)
		}
	}

	text := strings.Join(parts, " ")
	if text == "" {
		return "", domain.ErrNoResult
	}
	return text, nil
}
