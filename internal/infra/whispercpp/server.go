// Package whispercpp transcribes audio locally with whisper.cpp, either
// through a running whisper-server or, when built with the whispercpp tag,
// in process via the CGO bindings.
package whispercpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"jarvis/internal/domain"
)

// ServerClient posts audio to the /inference endpoint of whisper-server.
type ServerClient struct {
	serverURL  string
	language   string
	httpClient *http.Client
}

func NewServerClient(serverURL, language string, timeout time.Duration) *ServerClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ServerClient{
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		language:   language,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *ServerClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}
	if c.language != "" {
		if err := mw.WriteField("language", c.language); err != nil {
			return "", fmt.Errorf("writing language field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("writing response_format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" || text == "[BLANK_AUDIO]" {
		return "", domain.ErrNoResult
	}
	return text, nil
}
