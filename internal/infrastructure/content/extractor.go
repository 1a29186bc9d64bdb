// Package content extracts readable article text from web pages.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"NewsRelay/internal/ports"
)

const (
	minLineChars   = 25
	minAlphaRatio  = 0.35
	minPageChars   = 100
	truncateMarker = "\n\n[Content truncated]"
)

var (
	noiseClass   = regexp.MustCompile(`(?i)\b(ad|ads|banner|sidebar|related|comment|comments|share|social|cookie|popup)\b`)
	articleClass = regexp.MustCompile(`(?i)article|post-content|entry|story`)
)

// Options tune the extractor.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	MaxChars  int
	Paywalled []string
	Client    *http.Client
	Logger    *slog.Logger
}

// Extractor fetches a page and keeps its main body text. Any failure falls back to
// the caller's summary, so Fetch only errors when there is nothing to return.
type Extractor struct {
	client    *http.Client
	userAgent string
	maxChars  int
	paywalled map[string]bool
	logger    *slog.Logger
}

var _ ports.ContentFetcher = (*Extractor)(nil)

// NewExtractor builds an extractor.
func NewExtractor(opts Options) *Extractor {
	e := &Extractor{
		client:    opts.Client,
		userAgent: opts.UserAgent,
		maxChars:  opts.MaxChars,
		paywalled: make(map[string]bool, len(opts.Paywalled)),
		logger:    opts.Logger,
	}
	if e.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		e.client = &http.Client{Timeout: timeout}
	}
	if e.maxChars <= 0 {
		e.maxChars = 8000
	}
	for _, d := range opts.Paywalled {
		e.paywalled[strings.ToLower(d)] = true
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "content")
	return e
}

// Fetch returns cleaned page text, or fallback when the page is paywalled, unreachable
// or too thin.
func (e *Extractor) Fetch(ctx context.Context, pageURL, fallback string) (string, error) {
	text, reason := e.fetch(ctx, pageURL)
	if reason == "" {
		return text, nil
	}
	if fallback != "" {
		e.logger.Debug("using summary fallback", "url", pageURL, "reason", reason)
		return fallback, nil
	}
	return "", fmt.Errorf("fetch content %s: %s", pageURL, reason)
}

func (e *Extractor) fetch(ctx context.Context, pageURL string) (string, string) {
	if pageURL == "" {
		return "", "no url"
	}
	host := hostOf(pageURL)
	if e.paywalled[host] {
		return "", "paywalled: " + host
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "bad url"
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn("content request failed", "url", pageURL, "error", err)
		return "", "request failed"
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", "http " + resp.Status
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "parse failed"
	}

	text := Extract(doc)
	if len([]rune(text)) < minPageChars {
		return "", "content too short"
	}
	if runes := []rune(text); len(runes) > e.maxChars {
		text = string(runes[:e.maxChars]) + truncateMarker
	}
	return text, ""
}

// Extract strips page chrome and returns the main body text.
func Extract(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside, form, iframe, noscript, figure, figcaption").Remove()
	doc.Find("[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return noiseClass.MatchString(class)
	}).Remove()

	body := doc.Find("article").First()
	if body.Length() == 0 {
		body = doc.Find("[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			class, _ := s.Attr("class")
			return articleClass.MatchString(class)
		}).First()
	}
	if body.Length() == 0 {
		body = doc.Find("main").First()
	}
	if body.Length() == 0 {
		body = doc.Find("body")
	}

	var lines []string
	body.Find("p, h1, h2, h3, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		if line := strings.Join(strings.Fields(s.Text()), " "); keepLine(line) {
			lines = append(lines, line)
		}
	})
	if len(lines) == 0 {
		for _, line := range strings.Split(body.Text(), "\n") {
			if line = strings.Join(strings.Fields(line), " "); keepLine(line) {
				lines = append(lines, line)
			}
		}
	}
	return strings.Join(lines, " ")
}

func keepLine(line string) bool {
	runes := []rune(line)
	if len(runes) < minLineChars {
		return false
	}
	alpha := 0
	for _, r := range runes {
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	return float64(alpha)/float64(len(runes)) >= minAlphaRatio
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
