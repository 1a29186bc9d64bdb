package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// maxFreePromptRunes keeps the GET URL within what the free endpoint accepts.
const maxFreePromptRunes = 3000

// PollinationsClient uses the keyless Pollinations text endpoint as a last resort.
type PollinationsClient struct {
	name       string
	base       string
	model      string
	httpClient *http.Client
}

var _ ports.TextGenerator = (*PollinationsClient)(nil)

// NewPollinationsClient builds a client.
func NewPollinationsClient(opts Options) *PollinationsClient {
	return &PollinationsClient{
		name:       opts.Name,
		base:       strings.TrimRight(opts.Endpoint, "/"),
		model:      opts.Model,
		httpClient: opts.httpClient(),
	}
}

// Name identifies the provider in the fallback chain.
func (p *PollinationsClient) Name() string { return p.name }

// Generate sends a truncated prompt in the URL path and returns the raw body.
func (p *PollinationsClient) Generate(ctx context.Context, prompt string) (string, domain.Outcome, error) {
	if p.base == "" {
		return "", domain.OutcomeFailure, fmt.Errorf("%s client misconfigured", p.name)
	}

	runes := []rune(prompt)
	if len(runes) > maxFreePromptRunes {
		runes = runes[:maxFreePromptRunes]
	}
	endpoint := p.base + "/" + url.PathEscape(string(runes))
	if p.model != "" {
		endpoint += "?model=" + url.QueryEscape(p.model)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", domain.OutcomeFailure, fmt.Errorf("new request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", domain.OutcomeFailure, fmt.Errorf("%s request: %w", p.name, err)
	}
	defer resp.Body.Close()

	if outcome := domain.OutcomeFromStatus(resp.StatusCode); outcome != domain.OutcomeSuccess {
		return "", outcome, fmt.Errorf("%s error %s", p.name, resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.OutcomeFailure, fmt.Errorf("read %s response: %w", p.name, err)
	}
	return string(raw), domain.OutcomeSuccess, nil
}
