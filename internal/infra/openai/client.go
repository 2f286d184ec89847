// Package openai adapts the OpenAI API to the transcription and chat ports.
package openai

import (
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// newClient builds an SDK client that makes a single attempt per call.
func newClient(apiKey, baseURL string, timeout time.Duration) oai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	return oai.NewClient(opts...)
}
