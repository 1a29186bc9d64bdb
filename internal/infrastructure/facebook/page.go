// Package facebook posts to a Facebook page feed through the Graph API.
package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

const defaultAPIBase = "https://graph.facebook.com/v19.0"

// Page publishes link posts to one page.
type Page struct {
	pageID  string
	token   string
	apiBase string
	client  *http.Client
}

var _ ports.Poster = (*Page)(nil)

// NewPage builds a page poster.
func NewPage(pageID, accessToken, apiBase string) *Page {
	base := strings.TrimRight(apiBase, "/")
	if base == "" {
		base = defaultAPIBase
	}
	return &Page{
		pageID:  pageID,
		token:   accessToken,
		apiBase: base,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

// Name identifies the platform.
func (p *Page) Name() string { return "facebook" }

// Post creates a feed post with the article text and link.
func (p *Page) Post(ctx context.Context, content domain.PostContent) (domain.PostReceipt, error) {
	if p.pageID == "" || p.token == "" {
		return domain.PostReceipt{}, fmt.Errorf("facebook page misconfigured")
	}

	form := url.Values{}
	form.Set("message", content.Text)
	if content.Link != "" {
		form.Set("link", content.Link)
	}
	form.Set("access_token", p.token)

	endpoint := fmt.Sprintf("%s/%s/feed", p.apiBase, p.pageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.PostReceipt{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.PostReceipt{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		ID    string `json:"id"`
		Error *struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.PostReceipt{}, fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	if body.Error != nil {
		return domain.PostReceipt{}, fmt.Errorf("facebook error %d: %s", body.Error.Code, body.Error.Message)
	}
	if resp.StatusCode != http.StatusOK || body.ID == "" {
		return domain.PostReceipt{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	return domain.PostReceipt{
		Platform: p.Name(),
		PostID:   body.ID,
		URL:      "https://www.facebook.com/" + body.ID,
	}, nil
}
