// Package llm adapts hosted text generation APIs to ports.TextGenerator.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

const defaultSystemPrompt = "You are a careful news blog writer. Reply with JSON only."

// Options configure one provider endpoint.
type Options struct {
	Name     string
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

func (o Options) httpClient() *http.Client {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// ChatClient talks to OpenAI-compatible chat completion APIs (Groq, xAI).
type ChatClient struct {
	name         string
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.TextGenerator = (*ChatClient)(nil)

// NewChatClient builds a client from options.
func NewChatClient(opts Options) *ChatClient {
	return &ChatClient{
		name:         opts.Name,
		endpoint:     opts.Endpoint,
		model:        opts.Model,
		apiKey:       opts.APIKey,
		systemPrompt: defaultSystemPrompt,
		httpClient:   opts.httpClient(),
	}
}

// Name identifies the provider in the fallback chain.
func (c *ChatClient) Name() string { return c.name }

// Generate sends the prompt as a single user message.
func (c *ChatClient) Generate(ctx context.Context, prompt string) (string, domain.Outcome, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", domain.OutcomeFailure, fmt.Errorf("%s client misconfigured", c.name)
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": c.systemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.7,
		"max_tokens":  4096,
	})
	if err != nil {
		return "", domain.OutcomeFailure, fmt.Errorf("marshal %s payload: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", domain.OutcomeFailure, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	outcome, err := do(c.httpClient, req, c.name, &out)
	if err != nil {
		return "", outcome, err
	}
	if len(out.Choices) == 0 {
		return "", domain.OutcomeFailure, fmt.Errorf("%s returned no choices", c.name)
	}
	return out.Choices[0].Message.Content, domain.OutcomeSuccess, nil
}

// do executes req and decodes a JSON body into v. HTTP 429 maps to a rate-limited outcome.
func do(client *http.Client, req *http.Request, name string, v any) (domain.Outcome, error) {
	resp, err := client.Do(req)
	if err != nil {
		return domain.OutcomeFailure, fmt.Errorf("%s request: %w", name, err)
	}
	defer resp.Body.Close()

	outcome := domain.OutcomeFromStatus(resp.StatusCode)
	if outcome != domain.OutcomeSuccess {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return outcome, fmt.Errorf("%s error %s: %s", name, resp.Status, strings.TrimSpace(string(payload)))
	}

	if v == nil {
		return domain.OutcomeSuccess, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return domain.OutcomeFailure, fmt.Errorf("decode %s response: %w", name, err)
	}
	return domain.OutcomeSuccess, nil
}
