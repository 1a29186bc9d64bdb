// Package ml talks to an OpenAI-compatible embeddings service.
package ml

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

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// Client embeds texts for classification and dedup.
type Client struct {
	name     string
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
}

var _ ports.Embedder = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(name, endpoint, apiKey, model string) *Client {
	return &Client{
		name:     name,
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		model:    model,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Name identifies the embedder in the fallback chain.
func (c *Client) Name() string { return c.name }

// Embed returns one vector per text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, domain.Outcome, error) {
	if len(texts) == 0 {
		return nil, domain.OutcomeSuccess, nil
	}
	if c.endpoint == "" {
		return nil, domain.OutcomeFailure, fmt.Errorf("%s embedder misconfigured", c.name)
	}

	payload := map[string]any{"input": texts}
	if c.model != "" {
		payload["model"] = c.model
	}

	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	outcome, err := c.post(ctx, "/embeddings", payload, &resp)
	if err != nil {
		return nil, outcome, err
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.OutcomeFailure, fmt.Errorf("%s returned %d embeddings for %d texts", c.name, len(resp.Data), len(texts))
	}

	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, domain.OutcomeSuccess, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) (domain.Outcome, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.OutcomeFailure, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return domain.OutcomeFailure, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.OutcomeFailure, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if outcome := domain.OutcomeFromStatus(resp.StatusCode); outcome != domain.OutcomeSuccess {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return outcome, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return domain.OutcomeFailure, fmt.Errorf("decode response: %w", err)
	}
	return domain.OutcomeSuccess, nil
}
