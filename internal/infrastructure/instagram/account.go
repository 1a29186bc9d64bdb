// Package instagram publishes image posts to an Instagram business account through the
// Graph API container flow.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"NewsRelay/internal/clock"
	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

const (
	defaultAPIBase   = "https://graph.facebook.com/v19.0"
	defaultImageBase = "https://image.pollinations.ai/prompt/"
	maxCaptionRunes  = 2200
	maxPromptRunes   = 500
)

// Config addresses one business account.
type Config struct {
	AccountID   string
	AccessToken string
	APIBase     string
	// ImageBase renders a public image for a post from its title. Instagram has no
	// text-only posts and fetches the image itself.
	ImageBase string
	// Settle is the wait between creating the media container and publishing it.
	Settle time.Duration
	Sleep  func(ctx context.Context, d time.Duration) error
}

// Account posts captioned images.
type Account struct {
	accountID string
	token     string
	apiBase   string
	imageBase string
	settle    time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	client    *http.Client
}

var _ ports.Poster = (*Account)(nil)

// NewAccount builds an account poster.
func NewAccount(cfg Config) *Account {
	a := &Account{
		accountID: cfg.AccountID,
		token:     cfg.AccessToken,
		apiBase:   strings.TrimRight(cfg.APIBase, "/"),
		imageBase: cfg.ImageBase,
		settle:    cfg.Settle,
		sleep:     cfg.Sleep,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
	if a.apiBase == "" {
		a.apiBase = defaultAPIBase
	}
	if a.imageBase == "" {
		a.imageBase = defaultImageBase
	}
	if a.settle == 0 {
		a.settle = 3 * time.Second
	}
	if a.sleep == nil {
		a.sleep = clock.Sleep
	}
	return a
}

// Name identifies the platform.
func (a *Account) Name() string { return "instagram" }

// Post creates a media container for the rendered image and publishes it.
func (a *Account) Post(ctx context.Context, content domain.PostContent) (domain.PostReceipt, error) {
	if a.accountID == "" || a.token == "" {
		return domain.PostReceipt{}, fmt.Errorf("instagram account misconfigured")
	}

	form := url.Values{}
	form.Set("image_url", a.ImageURL(content))
	form.Set("caption", Caption(content))
	containerID, err := a.call(ctx, "media", form)
	if err != nil {
		return domain.PostReceipt{}, fmt.Errorf("create media container: %w", err)
	}

	if err := a.sleep(ctx, a.settle); err != nil {
		return domain.PostReceipt{}, err
	}

	form = url.Values{}
	form.Set("creation_id", containerID)
	postID, err := a.call(ctx, "media_publish", form)
	if err != nil {
		return domain.PostReceipt{}, fmt.Errorf("publish media container: %w", err)
	}

	return domain.PostReceipt{Platform: a.Name(), PostID: postID}, nil
}

// ImageURL renders the post image from its title.
func (a *Account) ImageURL(content domain.PostContent) string {
	prompt := content.Title
	if prompt == "" {
		prompt = content.Text
	}
	prompt = strings.Join(strings.Fields(prompt), " ")
	if utf8.RuneCountInString(prompt) > maxPromptRunes {
		prompt = string([]rune(prompt)[:maxPromptRunes])
	}
	return a.imageBase + url.PathEscape(prompt) + "?width=1080&height=1080&nologo=true&seed=42"
}

// Caption appends the link to the post text and cuts it to the Instagram limit.
func Caption(content domain.PostContent) string {
	caption := content.Text
	if content.Link != "" {
		caption += "\n\n🔗 " + content.Link
	}
	if utf8.RuneCountInString(caption) > maxCaptionRunes {
		caption = string([]rune(caption)[:maxCaptionRunes])
	}
	return caption
}

func (a *Account) call(ctx context.Context, edge string, form url.Values) (string, error) {
	form.Set("access_token", a.token)
	endpoint := fmt.Sprintf("%s/%s/%s", a.apiBase, a.accountID, edge)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
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
		return "", fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	if body.Error != nil {
		return "", fmt.Errorf("instagram error %d: %s", body.Error.Code, body.Error.Message)
	}
	if resp.StatusCode != http.StatusOK || body.ID == "" {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	return body.ID, nil
}
