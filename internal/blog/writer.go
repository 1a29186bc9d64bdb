package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
	"NewsRelay/internal/provider"
)

// ErrNoContent means the source had no usable text to write from.
var ErrNoContent = errors.New("no source content")

// WriterDeps wires the draft writer.
type WriterDeps struct {
	Registry   *provider.Registry
	Generators []ports.TextGenerator
	Content    ports.ContentFetcher
	Options    PromptOptions
	Logger     *slog.Logger
}

// Writer generates validated drafts through the generation provider chain.
type Writer struct {
	registry   *provider.Registry
	order      []string
	generators map[string]ports.TextGenerator
	content    ports.ContentFetcher
	opts       PromptOptions
	logger     *slog.Logger
}

// NewWriter builds a writer.
func NewWriter(deps WriterDeps) *Writer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		registry:   deps.Registry,
		generators: make(map[string]ports.TextGenerator, len(deps.Generators)),
		content:    deps.Content,
		opts:       deps.Options,
		logger:     logger.With("component", "blog"),
	}
	for _, gen := range deps.Generators {
		w.order = append(w.order, gen.Name())
		w.generators[gen.Name()] = gen
	}
	return w
}

// WithRegistry returns a copy of the writer bound to reg (used for dry runs).
func (w *Writer) WithRegistry(reg *provider.Registry) *Writer {
	cp := *w
	cp.registry = reg
	return &cp
}

// Draft writes a blog post for article. A parse or validation failure counts as a
// provider failure so the next generator is tried.
func (w *Writer) Draft(ctx context.Context, article domain.Article) (domain.BlogPost, error) {
	if len(w.order) == 0 {
		return domain.BlogPost{}, fmt.Errorf("generate blog draft: %w", domain.ErrAllProvidersBlocked)
	}
	text := article.Summary
	if w.content != nil {
		fetched, err := w.content.Fetch(ctx, article.URL, article.Summary)
		if err != nil {
			w.logger.Warn("fetch article content", "article_id", article.ID, "error", err)
		} else {
			text = fetched
		}
	}
	if strings.TrimSpace(text) == "" {
		return domain.BlogPost{}, ErrNoContent
	}

	prompt := BuildPrompt(w.opts, Source{Title: article.Title, URL: article.URL, Content: text})

	post, name, err := provider.Call(ctx, w.registry, provider.Generation, w.order,
		func(ctx context.Context, name string) provider.Attempt[domain.BlogPost] {
			raw, outcome, err := w.generators[name].Generate(ctx, prompt)
			if outcome != domain.OutcomeSuccess {
				return provider.Attempt[domain.BlogPost]{Outcome: outcome, Err: err}
			}
			draft, err := ParseDraft(raw)
			if err != nil {
				return provider.Attempt[domain.BlogPost]{Outcome: domain.OutcomeFailure, Err: err}
			}
			return provider.Attempt[domain.BlogPost]{Value: draft}
		})
	if err != nil {
		return domain.BlogPost{}, fmt.Errorf("generate blog draft: %w", err)
	}

	post.ArticleID = article.ID
	post.Provider = name
	post.SourceURL = article.URL
	w.logger.Info("blog draft generated", "article_id", article.ID, "provider", name)
	return post, nil
}
