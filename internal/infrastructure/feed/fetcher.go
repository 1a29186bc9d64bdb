// Package feed pulls RSS and Atom feeds into raw articles.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// Options tune the fetcher.
type Options struct {
	Workers   int
	MaxAge    time.Duration
	UserAgent string
	Client    *http.Client
	Now       func() time.Time
	Logger    *slog.Logger
}

// Fetcher downloads feeds with a bounded worker pool. One broken feed never fails the batch.
type Fetcher struct {
	client    *http.Client
	workers   int
	maxAge    time.Duration
	userAgent string
	now       func() time.Time
	logger    *slog.Logger
}

var _ ports.FeedFetcher = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; workers defaults to 4 and max age to 48h.
func NewFetcher(opts Options) *Fetcher {
	f := &Fetcher{
		client:    opts.Client,
		workers:   opts.Workers,
		maxAge:    opts.MaxAge,
		userAgent: opts.UserAgent,
		now:       opts.Now,
		logger:    opts.Logger,
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: 20 * time.Second}
	}
	if f.workers <= 0 {
		f.workers = 4
	}
	if f.maxAge == 0 {
		f.maxAge = 48 * time.Hour
	}
	if f.userAgent == "" {
		f.userAgent = "NewsRelay/1.0"
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	f.logger = f.logger.With("component", "feed")
	return f
}

// FetchFeeds returns entries from all feeds, newest first, deduplicated by URL.
// It errors only when every feed failed.
func (f *Fetcher) FetchFeeds(ctx context.Context, feeds []string) ([]domain.RawArticle, error) {
	if len(feeds) == 0 {
		return nil, nil
	}

	type result struct {
		feed     string
		articles []domain.RawArticle
		err      error
	}

	jobs := make(chan string)
	results := make(chan result, len(feeds))

	var wg sync.WaitGroup
	for i := 0; i < min(f.workers, len(feeds)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for feedURL := range jobs {
				articles, err := f.fetchOne(ctx, feedURL)
				results <- result{feed: feedURL, articles: articles, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, feedURL := range feeds {
			select {
			case jobs <- feedURL:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		all    []domain.RawArticle
		failed int
		seen   = map[string]struct{}{}
	)
	for res := range results {
		if res.err != nil {
			failed++
			f.logger.Warn("feed failed", "feed", res.feed, "error", res.err)
			continue
		}
		for _, a := range res.articles {
			if _, dup := seen[a.URL]; dup {
				continue
			}
			seen[a.URL] = struct{}{}
			all = append(all, a)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed == len(feeds) {
		return nil, fmt.Errorf("all %d feeds failed", failed)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].PublishedAt.After(all[j].PublishedAt) })
	f.logger.Info("feeds fetched", "feeds", len(feeds), "failed", failed, "articles", len(all))
	return all, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, feedURL string) ([]domain.RawArticle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	entries, err := parseFeed(resp.Body)
	if err != nil {
		return nil, err
	}

	cutoff := f.now().Add(-f.maxAge)
	out := make([]domain.RawArticle, 0, len(entries))
	for _, e := range entries {
		if e.Title == "" || e.Link == "" {
			continue
		}
		if !e.PublishedAt.IsZero() && f.maxAge > 0 && e.PublishedAt.Before(cutoff) {
			continue
		}
		out = append(out, domain.RawArticle{
			Title:       e.Title,
			Summary:     e.Summary,
			URL:         e.Link,
			SourceFeed:  feedURL,
			PublishedAt: e.PublishedAt,
		})
	}
	return out, nil
}
