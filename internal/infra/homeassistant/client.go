package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"jarvis/internal/domain"
	"jarvis/internal/infra"
)

// Client talks to the Home Assistant REST API.
type Client struct {
	baseURL    string
	token      string
	ttsService string
	httpClient *http.Client
	retry      infra.RetryConfig
}

func NewClient(baseURL, token string, timeout time.Duration, ttsService string) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if ttsService == "" {
		ttsService = "google_translate_say"
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		ttsService: ttsService,
		httpClient: &http.Client{Timeout: timeout},
		retry:      infra.DefaultRetryConfig(),
	}
}

// State is one element of GET /api/states.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged string         `json:"last_changed"`
}

// FriendlyName returns the friendly_name attribute, falling back to the id.
func (s State) FriendlyName() string {
	if name, ok := s.Attributes["friendly_name"].(string); ok && name != "" {
		return name
	}
	return s.EntityID
}

// APIError is returned when Home Assistant answers with anything but 200.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("home assistant API error %d: %s", e.StatusCode, e.Body)
}

// CallService invokes <domain>.<service> once. Any status other than 200
// is an *APIError.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling service data: %w", err)
	}

	path := fmt.Sprintf("/api/services/%s/%s", domain, service)
	if _, err := c.do(ctx, http.MethodPost, path, body); err != nil {
		return fmt.Errorf("calling %s.%s: %w", domain, service, err)
	}
	return nil
}

// Speak plays message on speakerEntity through the configured tts service.
func (c *Client) Speak(ctx context.Context, speakerEntity, message string) error {
	return c.CallService(ctx, "tts", c.ttsService, map[string]any{
		"entity_id": speakerEntity,
		"message":   message,
	})
}

// FetchStates downloads every entity state. It retries transient failures
// since it runs outside request handling. The raw body is returned along
// with the decoded states so it can be persisted unchanged.
func (c *Client) FetchStates(ctx context.Context) ([]byte, []State, error) {
	var raw []byte

	err := infra.WithRetry(ctx, c.retry, func() error {
		body, err := c.do(ctx, http.MethodGet, "/api/states", nil)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok && !infra.IsRetryableHTTPStatus(apiErr.StatusCode) {
				return infra.Permanent(err)
			}
			return err
		}
		raw = body
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("fetching states: %w", err)
	}

	var states []State
	if err := json.Unmarshal(raw, &states); err != nil {
		return nil, nil, fmt.Errorf("parsing states: %w", err)
	}
	return raw, states, nil
}

// ToEntities converts states to snapshot entities sorted by id. When
// include is non-empty only states whose id or domain is listed are kept.
func ToEntities(states []State, include []string) []domain.Entity {
	allowed := make(map[string]bool, len(include))
	for _, v := range include {
		allowed[strings.TrimSpace(v)] = true
	}

	entities := make([]domain.Entity, 0, len(states))
	for _, s := range states {
		if s.EntityID == "" {
			continue
		}
		if len(allowed) > 0 && !allowed[s.EntityID] && !allowed[domain.DomainOf(s.EntityID)] {
			continue
		}
		entities = append(entities, domain.NewEntity(s.EntityID, s.FriendlyName()))
	}

	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
	return entities
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	return respBody, nil
}
