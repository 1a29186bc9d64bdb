package ports

import (
	"context"
	"time"

	"NewsRelay/internal/domain"
)

// FeedFetcher pulls fresh entries from upstream feeds.
type FeedFetcher interface {
	FetchFeeds(ctx context.Context, feeds []string) ([]domain.RawArticle, error)
}

// Embedder turns texts into vectors. The outcome separates rate limits from other failures.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, domain.Outcome, error)
}

// TextGenerator produces text from a prompt (blog drafts).
type TextGenerator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, domain.Outcome, error)
}

// ApprovalChannel is the human-reviewable channel used by the approval coordinator.
type ApprovalChannel interface {
	SendApproval(ctx context.Context, msg domain.ApprovalMessage) error
	// PollDecisions returns events after the checkpoint and the checkpoint to use next.
	PollDecisions(ctx context.Context, since int64) ([]domain.DecisionEvent, int64, error)
}

// Alerter sends operator-relevant notices.
type Alerter interface {
	Alert(ctx context.Context, message string) error
}

// Poster publishes content to one platform.
type Poster interface {
	Name() string
	Post(ctx context.Context, content domain.PostContent) (domain.PostReceipt, error)
}

// ContentFetcher extracts readable article text from a URL.
type ContentFetcher interface {
	Fetch(ctx context.Context, url, fallback string) (string, error)
}

// BlogPublisher creates a blog post and returns its public URL.
type BlogPublisher interface {
	Publish(ctx context.Context, post domain.BlogPost) (string, error)
}

// ArticleRepository persists articles keyed by (instance, id).
type ArticleRepository interface {
	// Insert stores a new article and sets its ID; ErrAlreadyExists on (instance, hash) conflict.
	Insert(ctx context.Context, article *domain.Article) error
	Get(ctx context.Context, instance string, ids []int64) ([]domain.Article, error)
	Candidates(ctx context.Context, instance string, q domain.CandidateQuery) ([]domain.Article, error)
	ListByStatus(ctx context.Context, instance string, status domain.Status) ([]domain.Article, error)
	// Transition atomically moves every id to status or none of them.
	Transition(ctx context.Context, instance string, ids []int64, to domain.Status, at time.Time) error
	Stats(ctx context.Context, instance string) (domain.Stats, error)
}

// DedupWindow answers same-day duplicate queries for one instance.
type DedupWindow interface {
	// FindByHash returns the article with hash created on day, or nil.
	FindByHash(ctx context.Context, instance, day, hash string) (*domain.Article, error)
	WindowVectors(ctx context.Context, instance, day string) ([]domain.ArticleVector, error)
}

// RotationRepository owns the per-instance rotation cursor row.
type RotationRepository interface {
	// Advance returns the current index and persists (index+1) mod n in one transaction.
	Advance(ctx context.Context, instance string, n int, at time.Time) (int, error)
	Load(ctx context.Context, instance string) (domain.RotationState, error)
	Reset(ctx context.Context, instance string, at time.Time) error
}

// ProviderBlockRepository stores per-day provider blocks.
type ProviderBlockRepository interface {
	Block(ctx context.Context, block domain.ProviderBlock) error
	BlockedOn(ctx context.Context, instance, day string) (map[string]bool, error)
	// Prune deletes blocks dated before day. Correctness never depends on it.
	Prune(ctx context.Context, instance, day string) (int64, error)
}

// ApprovalLog records resolved approval decisions.
type ApprovalLog interface {
	RecordDecisions(ctx context.Context, records []domain.DecisionRecord) error
}

// CheckpointStore persists named integer checkpoints per instance.
type CheckpointStore interface {
	LoadCheckpoint(ctx context.Context, instance, name string) (int64, error)
	SaveCheckpoint(ctx context.Context, instance, name string, value int64) error
}

// PublishLog appends platform attempt results.
type PublishLog interface {
	RecordPublish(ctx context.Context, record domain.PublishRecord) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
