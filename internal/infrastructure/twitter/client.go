// Package twitter posts to X through the v2 tweets endpoint with an OAuth 2.0 user token.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

const (
	defaultAPIBase  = "https://api.x.com/2"
	defaultTokenURL = "https://api.x.com/2/oauth2/token"

	maxTweetRunes = 280
	// X shortens every link to a fixed-length t.co URL plus the separating space.
	linkReserve = 25
)

// Config holds user-context credentials. A refresh token takes precedence over a static
// access token and is exchanged on first use.
type Config struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	APIBase      string
	TokenURL     string
	// HTTPClient is the transport used for both token refresh and API calls.
	HTTPClient *http.Client
}

// Client publishes tweets.
type Client struct {
	apiBase    string
	configured bool
	http       *http.Client
}

var _ ports.Poster = (*Client)(nil)

// NewClient builds an authenticated client.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = defaultAPIBase
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}

	ctx := context.Background()
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}

	var ts oauth2.TokenSource
	switch {
	case cfg.RefreshToken != "" && cfg.ClientID != "":
		// TODO: persist the rotated refresh token. X invalidates the old one on exchange,
		// so a restart after a refresh needs a new TWITTER_REFRESH_TOKEN.
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInHeader},
		}
		ts = oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	case cfg.AccessToken != "":
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
	}

	c := &Client{apiBase: base, configured: ts != nil}
	if ts != nil {
		c.http = oauth2.NewClient(ctx, ts)
	} else {
		c.http = &http.Client{}
	}
	c.http.Timeout = 30 * time.Second
	return c
}

// Name identifies the platform.
func (c *Client) Name() string { return "twitter" }

// Post tweets the post text followed by its link.
func (c *Client) Post(ctx context.Context, content domain.PostContent) (domain.PostReceipt, error) {
	if !c.configured {
		return domain.PostReceipt{}, fmt.Errorf("twitter client misconfigured")
	}

	body, err := json.Marshal(map[string]string{"text": Tweet(content.Text, content.Link)})
	if err != nil {
		return domain.PostReceipt{}, fmt.Errorf("marshal tweet: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/tweets", bytes.NewReader(body))
	if err != nil {
		return domain.PostReceipt{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.PostReceipt{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.PostReceipt{}, fmt.Errorf("twitter rate limited (429)")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.PostReceipt{}, fmt.Errorf("twitter error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return domain.PostReceipt{}, fmt.Errorf("decode response: %w", err)
	}
	if created.Data.ID == "" {
		return domain.PostReceipt{}, fmt.Errorf("twitter returned no tweet id")
	}

	return domain.PostReceipt{
		Platform: c.Name(),
		PostID:   created.Data.ID,
		URL:      "https://x.com/i/web/status/" + created.Data.ID,
	}, nil
}

// Tweet fits text and link into one tweet, shortening the text with an ellipsis.
func Tweet(text, link string) string {
	limit := maxTweetRunes
	if link != "" {
		limit -= linkReserve
	}
	if utf8.RuneCountInString(text) > limit {
		text = string([]rune(text)[:limit-1]) + "…"
	}
	if link == "" {
		return text
	}
	return text + " " + link
}
