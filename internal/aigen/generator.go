// Package aigen defines the contract the dispatcher uses to fetch
// per-recipient text for personalized sections, and a thin HTTP-backed
// implementation against an Anthropic-compatible messages endpoint. The generator is explicitly fallible: a failed call
// returns an error, not a best-effort partial map, and the dispatcher
// treats that as one circuit-breaker strike.
package aigen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/pkg/httpretry"
)

// Generator produces text for every personalized section of a
// campaign, given that recipient's metadata.
type Generator interface {
	Generate(ctx context.Context, sections []domain.Section, metadata map[string]string) (map[string]string, error)
}

// Client calls an Anthropic-compatible messages endpoint once per
// recipient, sending each personalized section's instructions together
// with the recipient's metadata, and parsing the response as a
// section_id -> text JSON object.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient httpretry.HTTPDoer
}

// NewClient builds a Client. httpDoer may be nil, in which case a
// retrying client with a 20s per-attempt timeout is used.
func NewClient(apiKey, model string, httpDoer httpretry.HTTPDoer) *Client {
	if httpDoer == nil {
		httpDoer = httpretry.NewRetryClient(&http.Client{Timeout: 20 * time.Second}, 3)
	}
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		endpoint:   "https://api.anthropic.com/v1/messages",
		httpClient: httpDoer,
	}
}

type generateRequest struct {
	Sections []sectionPrompt   `json:"sections"`
	Fields   map[string]string `json:"recipient"`
}

type sectionPrompt struct {
	ID      string   `json:"id"`
	Fields  []string `json:"fields"`
	Content string   `json:"instructions"`
}

// Generate requests text for each personalized section and returns a
// map keyed by section ID. Sections that come back missing from the
// response are simply absent from the returned map; the caller decides
// how to render a gap.
func (c *Client) Generate(ctx context.Context, sections []domain.Section, metadata map[string]string) (map[string]string, error) {
	var personalized []domain.Section
	for _, s := range sections {
		if s.Personalized() {
			personalized = append(personalized, s)
		}
	}
	if len(personalized) == 0 {
		return map[string]string{}, nil
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("aigen: no API key configured")
	}

	prompts := make([]sectionPrompt, 0, len(personalized))
	for _, s := range personalized {
		prompts = append(prompts, sectionPrompt{ID: s.ID, Fields: s.RecipientFields, Content: s.Content})
	}

	payload, err := json.Marshal(generateRequest{Sections: prompts, Fields: metadata})
	if err != nil {
		return nil, fmt.Errorf("aigen: encode request: %w", err)
	}

	body := map[string]interface{}{
		"model":      c.model,
		"max_tokens": 1024,
		"messages": []map[string]string{
			{"role": "user", "content": string(payload)},
		},
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("aigen: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("aigen: build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aigen: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("aigen: generator returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("aigen: decode response: %w", err)
	}
	if len(decoded.Content) == 0 {
		return nil, fmt.Errorf("aigen: empty response")
	}

	var out map[string]string
	if err := json.Unmarshal([]byte(decoded.Content[0].Text), &out); err != nil {
		return nil, fmt.Errorf("aigen: parse generated sections: %w", err)
	}
	return out, nil
}
