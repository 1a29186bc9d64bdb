package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// GeminiClient calls the Generative Language generateContent endpoint.
type GeminiClient struct {
	name       string
	base       string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.TextGenerator = (*GeminiClient)(nil)

// NewGeminiClient builds a client. Endpoint is the API base, e.g. .../v1beta.
func NewGeminiClient(opts Options) *GeminiClient {
	return &GeminiClient{
		name:       opts.Name,
		base:       strings.TrimRight(opts.Endpoint, "/"),
		model:      opts.Model,
		apiKey:     opts.APIKey,
		httpClient: opts.httpClient(),
	}
}

// Name identifies the provider in the fallback chain.
func (g *GeminiClient) Name() string { return g.name }

// Generate asks the model for one completion.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, domain.Outcome, error) {
	if g.apiKey == "" || g.base == "" || g.model == "" {
		return "", domain.OutcomeFailure, fmt.Errorf("%s client misconfigured", g.name)
	}

	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"temperature":     0.7,
			"maxOutputTokens": 4096,
		},
	})
	if err != nil {
		return "", domain.OutcomeFailure, fmt.Errorf("marshal %s payload: %w", g.name, err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.base, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", domain.OutcomeFailure, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	outcome, err := do(g.httpClient, req, g.name, &out)
	if err != nil {
		return "", outcome, stripKey(err, g.apiKey)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", domain.OutcomeFailure, fmt.Errorf("%s returned no candidates", g.name)
	}
	return out.Candidates[0].Content.Parts[0].Text, domain.OutcomeSuccess, nil
}

// stripKey keeps the API key out of logged transport errors.
func stripKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "<key>"))
}
