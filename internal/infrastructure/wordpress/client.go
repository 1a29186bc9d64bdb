// Package wordpress publishes blog posts through the WordPress REST API.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// Config addresses one WordPress site with an application password.
type Config struct {
	URL         string
	Username    string
	AppPassword string
	Status      string
	AuthorID    int
}

// Client creates posts and resolves tag ids.
type Client struct {
	base     string
	username string
	password string
	status   string
	authorID int
	http     *http.Client
}

var _ ports.BlogPublisher = (*Client)(nil)

// NewClient builds a client. A trailing /graphql on the URL is ignored; REST is always used.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSuffix(strings.TrimRight(cfg.URL, "/"), "/graphql"), "/")
	status := cfg.Status
	if status == "" {
		status = "draft"
	}
	return &Client{
		base:     base,
		username: cfg.Username,
		password: cfg.AppPassword,
		status:   status,
		authorID: cfg.AuthorID,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Publish creates the post and returns its public link.
func (c *Client) Publish(ctx context.Context, post domain.BlogPost) (string, error) {
	if c.base == "" || c.username == "" || c.password == "" {
		return "", fmt.Errorf("wordpress client misconfigured")
	}

	tagIDs := make([]int, 0, len(post.Tags))
	for _, tag := range post.Tags {
		id, err := c.tagID(ctx, tag)
		if err != nil {
			return "", fmt.Errorf("resolve tag %q: %w", tag, err)
		}
		tagIDs = append(tagIDs, id)
	}

	payload := map[string]any{
		"title":   post.Title,
		"content": post.BodyHTML,
		"excerpt": post.MetaDescription,
		"status":  c.status,
		"tags":    tagIDs,
	}
	if c.authorID > 0 {
		payload["author"] = c.authorID
	}

	var created struct {
		ID   int    `json:"id"`
		Link string `json:"link"`
	}
	if err := c.post(ctx, "/wp-json/wp/v2/posts", payload, &created); err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	return created.Link, nil
}

// tagID finds a tag by name, creating it when missing.
func (c *Client) tagID(ctx context.Context, name string) (int, error) {
	var found []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := c.get(ctx, "/wp-json/wp/v2/tags?search="+url.QueryEscape(name), &found); err != nil {
		return 0, err
	}
	for _, tag := range found {
		if strings.EqualFold(tag.Name, name) {
			return tag.ID, nil
		}
	}

	var created struct {
		ID int `json:"id"`
	}
	if err := c.post(ctx, "/wp-json/wp/v2/tags", map[string]string{"name": name}, &created); err != nil {
		return 0, err
	}
	return created.ID, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	return c.do(req, v)
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, v)
}

func (c *Client) do(req *http.Request, v any) error {
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("wordpress error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
