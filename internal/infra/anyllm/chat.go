// Package anyllm adapts github.com/mozilla-ai/any-llm-go backends to the
// ChatModel port for the providers the openai-go SDK does not cover.
package anyllm

import (
	"context"
	"fmt"
	"strings"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
)

var defaultModels = map[string]string{
	"anthropic": "claude-sonnet-4-20250514",
	"gemini":    "gemini-2.0-flash",
}

const maxReplyTokens = 512

type completeFunc func(ctx context.Context, params anyllmlib.CompletionParams) (string, error)

// ChatModel sends one completion request per call and returns the text of
// the first choice.
type ChatModel struct {
	provider string
	model    string
	timeout  time.Duration
	complete completeFunc
}

// NewChatModel builds a ChatModel for provider ("anthropic" or "gemini").
// An empty model selects the provider default.
func NewChatModel(provider, model, apiKey, baseURL string, timeout time.Duration) (*ChatModel, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if model == "" {
		model = defaultModels[provider]
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var opts []anyllmlib.Option
	if apiKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(baseURL))
	}

	backend, err := createBackend(provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating %s backend: %w", provider, err)
	}

	return &ChatModel{
		provider: provider,
		model:    model,
		timeout:  timeout,
		complete: func(ctx context.Context, params anyllmlib.CompletionParams) (string, error) {
			resp, err := backend.Completion(ctx, params)
			if err != nil {
				return "", err
			}
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("empty choices in response")
			}
			return resp.Choices[0].Message.ContentString(), nil
		},
	}, nil
}

func createBackend(provider string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch provider {
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}

func (m *ChatModel) Provider() string { return m.provider }

func (m *ChatModel) Model() string { return m.model }

// Complete is bounded by the configured timeout.
func (m *ChatModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	reply, err := m.complete(ctx, m.buildParams(system, prompt))
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", m.provider, err)
	}
	return strings.TrimSpace(reply), nil
}

func (m *ChatModel) buildParams(system, prompt string) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message
	if system != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: system,
		})
	}
	messages = append(messages, anyllmlib.Message{
		Role:    "user",
		Content: prompt,
	})

	maxTokens := maxReplyTokens
	return anyllmlib.CompletionParams{
		Model:     m.model,
		Messages:  messages,
		MaxTokens: &maxTokens,
	}
}
