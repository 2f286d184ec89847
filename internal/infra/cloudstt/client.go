// Package cloudstt is a general-purpose hosted speech-to-text client using
// the Deepgram pre-recorded audio API.
package cloudstt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jarvis/internal/domain"
)

const defaultURL = "https://api.deepgram.com/v1/listen"

type Client struct {
	endpoint   string
	apiKey     string
	language   string
	httpClient *http.Client
}

func NewClient(endpoint, apiKey, language string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = defaultURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		language:   language,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Available reports whether an API key is configured.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint: %w", err)
	}
	q := u.Query()
	q.Set("smart_format", "true")
	if c.language != "" {
		q.Set("language", c.language)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", contentType(audio))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cloud stt API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result listenResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return "", domain.ErrNoResult
	}

	text := strings.TrimSpace(result.Results.Channels[0].Alternatives[0].Transcript)
	if text == "" {
		return "", domain.ErrNoResult
	}
	return text, nil
}

// contentType sniffs the container format, defaulting to WAV.
func contentType(audio []byte) string {
	switch ct := http.DetectContentType(audio); {
	case strings.HasPrefix(ct, "audio/"), ct == "video/webm", ct == "application/ogg":
		return ct
	default:
		return "audio/wav"
	}
}
