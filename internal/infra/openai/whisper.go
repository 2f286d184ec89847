package openai

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	oai "github.com/openai/openai-go"

	"jarvis/internal/domain"
)

type WhisperClient struct {
	client   oai.Client
	apiKey   string
	model    string
	language string
}

func NewWhisperClient(apiKey, model, language, baseURL string, timeout time.Duration) *WhisperClient {
	if model == "" {
		model = string(oai.AudioModelWhisper1)
	}
	return &WhisperClient{
		client:   newClient(apiKey, baseURL, timeout),
		apiKey:   apiKey,
		model:    model,
		language: language,
	}
}

// Available reports whether an API key is configured.
func (c *WhisperClient) Available() bool {
	return c.apiKey != ""
}

func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(audio), "audio.wav", "audio/wav"),
		Model: oai.AudioModel(c.model),
	}
	if c.language != "" {
		params.Language = oai.String(c.language)
	}

	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", domain.ErrNoResult
	}
	return text, nil
}
