package openai

import (
	"context"
	"fmt"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

const defaultChatModel = "gpt-4o"

// ChatClient answers prompts with the chat completions API.
type ChatClient struct {
	client oai.Client
	model  string
}

func NewChatClient(apiKey, model, baseURL string, timeout time.Duration) *ChatClient {
	if model == "" {
		model = defaultChatModel
	}
	return &ChatClient{client: newClient(apiKey, baseURL, timeout), model: model}
}

func (c *ChatClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	var messages []oai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, oai.SystemMessage(system))
	}
	messages = append(messages, oai.UserMessage(prompt))

	resp, err := c.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
