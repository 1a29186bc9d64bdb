package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsRelay/internal/approval"
	"NewsRelay/internal/blog"
	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
	"NewsRelay/internal/provider"
	"NewsRelay/internal/tracing"
)

// BlogStageDeps wires the optional blog stage of one instance.
type BlogStageDeps struct {
	Writer    *blog.Writer
	Publisher ports.BlogPublisher
	// Summary receives the short social post that links to a published blog entry.
	Summary ports.Poster
	Timeout time.Duration
	Logger  *slog.Logger
}

// BlogStage drafts, reviews and publishes long-form posts for selected articles.
// Its outcome never changes article status.
type BlogStage struct {
	writer    *blog.Writer
	publisher ports.BlogPublisher
	summary   ports.Poster
	timeout   time.Duration
	logger    *slog.Logger
}

// BlogReport summarises the blog stage of one run.
type BlogReport struct {
	Drafted   int
	Approved  int
	Published []string
	Failed    int
}

// NewBlogStage returns nil when there is no writer, which disables the stage.
func NewBlogStage(deps BlogStageDeps) *BlogStage {
	if deps.Writer == nil {
		return nil
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = approval.DefaultBlogTimeout
	}
	return &BlogStage{
		writer:    deps.Writer,
		publisher: deps.Publisher,
		summary:   deps.Summary,
		timeout:   timeout,
		logger:    logger.With("component", "blog"),
	}
}

// Draft generates one post per article. Generation stops for the run once every
// generator is blocked. Only a durability failure is returned.
func (b *BlogStage) Draft(ctx context.Context, reg *provider.Registry, articles []domain.Article, report *BlogReport) (drafts []domain.BlogPost, err error) {
	if b == nil {
		return nil, nil
	}
	ctx, span := tracing.StartSpan(ctx, "blog.draft")
	defer func() { tracing.EndSpan(span, err) }()

	writer := b.writer.WithRegistry(reg)
	for _, a := range articles {
		post, dErr := writer.Draft(ctx, a)
		if dErr != nil {
			if domain.IsDurability(dErr) {
				return drafts, dErr
			}
			b.logger.Warn("blog draft failed", "article_id", a.ID, "error", dErr)
			report.Failed++
			if errors.Is(dErr, domain.ErrAllProvidersBlocked) || ctx.Err() != nil {
				break
			}
			continue
		}
		drafts = append(drafts, post)
	}
	report.Drafted = len(drafts)
	span.SetInt("drafted", len(drafts))
	return drafts, nil
}

func (b *BlogStage) open(ctx context.Context, coord *approval.Coordinator, drafts []domain.BlogPost) (*approval.Batch, error) {
	if b == nil || len(drafts) == 0 {
		return nil, nil
	}
	items := make([]approval.Item, len(drafts))
	for i, d := range drafts {
		items[i] = approval.Item{ArticleID: d.ArticleID, Content: reviewText(d), Link: d.SourceURL}
	}
	batch, err := coord.Open(ctx, domain.KindBlog, items, b.timeout)
	if err != nil {
		return nil, fmt.Errorf("open blog approval: %w", err)
	}
	return batch, nil
}

// Publish posts every approved draft and its summary. Failures are logged and counted.
func (b *BlogStage) Publish(ctx context.Context, drafts []domain.BlogPost, res approval.Resolution, report *BlogReport) {
	if b == nil {
		return
	}
	approved := make(map[int64]bool)
	for _, id := range res.Approved() {
		approved[id] = true
	}
	report.Approved = len(approved)

	for _, d := range drafts {
		if !approved[d.ArticleID] {
			continue
		}
		if b.publisher == nil {
			b.logger.Warn("blog publisher not configured", "article_id", d.ArticleID)
			report.Failed++
			continue
		}
		link, err := b.publishOne(ctx, d)
		if err != nil {
			b.logger.Error("publish blog post", "article_id", d.ArticleID, "error", err)
			report.Failed++
			continue
		}
		report.Published = append(report.Published, link)
		b.postSummary(ctx, d, link)
	}
}

func (b *BlogStage) publishOne(ctx context.Context, d domain.BlogPost) (link string, err error) {
	ctx, span := tracing.StartSpan(ctx, "blog.publish")
	defer func() { tracing.EndSpan(span, err) }()
	return b.publisher.Publish(ctx, d)
}

func (b *BlogStage) postSummary(ctx context.Context, d domain.BlogPost, link string) {
	if b.summary == nil || d.FBSummary == "" {
		return
	}
	_, err := b.summary.Post(ctx, domain.PostContent{ArticleID: d.ArticleID, Title: d.Title, Text: d.FBSummary, Link: link})
	if err != nil {
		b.logger.Warn("blog summary post failed", "article_id", d.ArticleID, "platform", b.summary.Name(), "error", err)
		return
	}
	b.logger.Info("blog summary posted", "article_id", d.ArticleID, "platform", b.summary.Name())
}

func reviewText(d domain.BlogPost) string {
	text := "BLOG: " + d.Title
	if d.MetaDescription != "" {
		text += "\n\n" + d.MetaDescription
	}
	return text + "\n\nvia " + d.Provider
}
