package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsRelay/internal/approval"
	"NewsRelay/internal/blog"
	"NewsRelay/internal/classify"
	"NewsRelay/internal/dedup"
	"NewsRelay/internal/dispatch"
	"NewsRelay/internal/domain"
	"NewsRelay/internal/infrastructure/storage/sqlite"
	"NewsRelay/internal/lifecycle"
	"NewsRelay/internal/ports"
	"NewsRelay/internal/provider"
	"NewsRelay/internal/rotation"
	"NewsRelay/internal/selection"
)

const instance = "main"

var specs = []domain.CategorySpec{
	{Name: "FINANCE", Description: "banks and money", Weight: 1, Priority: 1, Patterns: []string{`\bbank\b`, `interest rate`}},
	{Name: "ALERTS", Description: "weather warnings", Weight: 2, Priority: 2, Patterns: []string{`\bstorm\b`, `warning`}},
	{Name: domain.CategoryNoise, Description: "gossip", Patterns: []string{`horoscope`}},
}

type stubFetcher struct {
	items   []domain.RawArticle
	err     error
	onFetch func()
}

func (f *stubFetcher) FetchFeeds(ctx context.Context, _ []string) ([]domain.RawArticle, error) {
	if f.onFetch != nil {
		f.onFetch()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return f.items, f.err
}

type recordingPoster struct {
	name  string
	mu    sync.Mutex
	posts []domain.PostContent
}

func (p *recordingPoster) Name() string { return p.name }

func (p *recordingPoster) Post(_ context.Context, c domain.PostContent) (domain.PostReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts = append(p.posts, c)
	return domain.PostReceipt{Platform: p.name, PostID: "p1"}, nil
}

// reviewer approves the first message it sees and skips the rest.
type reviewer struct {
	sent   []domain.ApprovalMessage
	polled bool
}

func (r *reviewer) SendApproval(_ context.Context, msg domain.ApprovalMessage) error {
	r.sent = append(r.sent, msg)
	return nil
}

func (r *reviewer) PollDecisions(_ context.Context, since int64) ([]domain.DecisionEvent, int64, error) {
	if r.polled {
		return nil, since, nil
	}
	r.polled = true
	var events []domain.DecisionEvent
	for i, m := range r.sent {
		action := domain.ActionSkip
		if i == 0 {
			action = domain.ActionApprove
		}
		events = append(events, domain.DecisionEvent{CorrelationID: m.CorrelationID, Kind: m.Kind, Action: action, ReceivedAt: time.Now()})
	}
	return events, since + int64(len(events)), nil
}

type harness struct {
	db       *sqlite.Store
	store    *lifecycle.Store
	rotation *rotation.Cursor
	poster   *recordingPoster
	fetcher  *stubFetcher
}

type harnessOptions struct {
	channel ports.ApprovalChannel
	blog    *BlogStage
}

func noSleep(context.Context, time.Duration) error { return nil }

func newHarness(t *testing.T, items []domain.RawArticle, opts harnessOptions) (*harness, *Pipeline) {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "newsrelay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		db:       db,
		store:    lifecycle.NewStore(lifecycle.StoreDeps{Repo: db}),
		rotation: rotation.NewCursor(rotation.CursorDeps{Repo: db, Categories: domain.RotationOrder(specs)}),
		poster:   &recordingPoster{name: "telegram"},
		fetcher:  &stubFetcher{items: items},
	}

	classifier, err := classify.NewClassifier(classify.ClassifierDeps{Specs: specs})
	require.NoError(t, err)

	registry := provider.NewRegistry(provider.RegistryDeps{Instance: instance, Blocks: db})
	coordDeps := approval.CoordinatorDeps{
		Instance:    instance,
		Checkpoints: db,
		Log:         db,
		AutoApprove: true,
		Sleep:       noSleep,
	}
	if opts.channel != nil {
		coordDeps.Channel = opts.channel
		coordDeps.AutoApprove = false
	}

	p := NewPipeline(PipelineDeps{
		Instance:   instance,
		Display:    "Test Relay",
		Feeds:      []string{"https://feeds.example.org/rss"},
		Fetcher:    h.fetcher,
		Classifier: classifier,
		Dedup:      dedup.NewEngine(dedup.EngineDeps{Window: db}),
		Store:      h.store,
		Rotation:   h.rotation,
		Registry:   registry,
		Approval:   approval.NewCoordinator(coordDeps),
		Dispatcher: dispatch.NewDispatcher(dispatch.DispatcherDeps{
			Instance:  instance,
			Status:    h.store,
			Log:       db,
			DelayBase: -1,
			Sleep:     noSleep,
		}),
		Posters:   []ports.Poster{h.poster},
		Blog:      opts.blog,
		Selection: selection.Options{PerRun: 4},
	})
	return h, p
}

func feedItems() []domain.RawArticle {
	return []domain.RawArticle{
		{Title: "Central bank lifts interest rate", Summary: "The central bank raised its key interest rate by a quarter point.", URL: "https://news.example.org/bank"},
		{Title: "Storm warning for the coast", Summary: "Forecasters issued a storm warning for coastal districts tonight.", URL: "https://news.example.org/storm"},
		{Title: "Daily horoscope", Summary: "What the stars have in store for every sign this week.", URL: "https://news.example.org/stars"},
		{Title: "Central bank lifts interest rate", Summary: "The central bank raised its key interest rate by a quarter point.", URL: "https://mirror.example.org/bank"},
	}
}

func TestLiveRunPublishesAutoApprovedArticles(t *testing.T) {
	t.Parallel()
	h, p := newHarness(t, feedItems(), harnessOptions{})
	ctx := context.Background()

	report, err := p.Run(ctx, RunOptions{Live: true})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Fetched)
	assert.Equal(t, 1, report.Noise)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 2, report.Inserted)
	require.Len(t, report.Selected, 2)
	assert.Equal(t, domain.Category("FINANCE"), report.Selected[0].Category)
	assert.Len(t, report.Published, 2)
	assert.Empty(t, report.Failed)
	assert.Len(t, h.poster.posts, 2)

	stats, err := h.store.Status(ctx, instance)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ByStatus[domain.StatusPublished])
	assert.Equal(t, 1, stats.Rotation.RunCount)
}

func TestSecondRunRotatesAndSkipsKnownArticles(t *testing.T) {
	t.Parallel()
	h, p := newHarness(t, feedItems(), harnessOptions{})
	ctx := context.Background()

	_, err := p.Run(ctx, RunOptions{Live: true})
	require.NoError(t, err)

	report, err := p.Run(ctx, RunOptions{Live: true})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Inserted)
	assert.Empty(t, report.Selected)
	assert.Equal(t, []domain.Category{"ALERTS", "FINANCE"}, report.Order)

	stats, err := h.store.Status(ctx, instance)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rotation.RunCount)
}

func TestDryRunWritesNothing(t *testing.T) {
	t.Parallel()
	h, p := newHarness(t, feedItems(), harnessOptions{})
	ctx := context.Background()

	report, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 1, report.Duplicates)
	require.Len(t, report.Selected, 2)
	for _, a := range report.Selected {
		assert.Less(t, a.ID, int64(0))
	}
	assert.Empty(t, h.poster.posts)

	stats, err := h.store.Status(ctx, instance)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.Rotation.RunCount)
}

func TestKeepNoiseAdmitsNoise(t *testing.T) {
	t.Parallel()
	_, p := newHarness(t, feedItems(), harnessOptions{})

	report, err := p.Run(context.Background(), RunOptions{KeepNoise: true, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Noise)
	assert.Equal(t, 3, report.Inserted)
	assert.Len(t, report.Selected, 3)
}

func TestReviewerDecisionsDriveDispatch(t *testing.T) {
	t.Parallel()
	rev := &reviewer{}
	h, p := newHarness(t, feedItems(), harnessOptions{channel: rev})
	ctx := context.Background()

	report, err := p.Run(ctx, RunOptions{Live: true})
	require.NoError(t, err)

	require.Len(t, rev.sent, 2)
	require.Len(t, report.Approved, 1)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, report.Approved, report.Published)

	require.Len(t, h.poster.posts, 1)
	assert.Equal(t, report.Approved[0], h.poster.posts[0].ArticleID)

	stats, err := h.store.Status(ctx, instance)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ByStatus[domain.StatusPublished])
	assert.Equal(t, 1, stats.ByStatus[domain.StatusSkipped])
}

func TestFetchFailureFallsBackToBacklog(t *testing.T) {
	t.Parallel()
	h, p := newHarness(t, nil, harnessOptions{})
	ctx := context.Background()

	backlog := &domain.Article{
		Instance:    instance,
		ContentHash: "backlog",
		Title:       "Bank holiday schedule",
		URL:         "https://news.example.org/holiday",
		Category:    "FINANCE",
		Score:       7,
		CreatedDay:  "2026-10-17",
	}
	require.NoError(t, h.store.Add(ctx, backlog))
	h.fetcher.err = errors.New("all feeds failed")

	report, err := p.Run(ctx, RunOptions{Live: true})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Fetched)
	require.Len(t, report.Selected, 1)
	assert.Equal(t, backlog.ID, report.Selected[0].ID)
	assert.Equal(t, []int64{backlog.ID}, report.Published)
}

func TestFailedIngestStillAdvancesRotation(t *testing.T) {
	t.Parallel()
	h, p := newHarness(t, feedItems(), harnessOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.fetcher.onFetch = cancel

	report, err := p.Run(ctx, RunOptions{Live: true})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []domain.Category{"FINANCE", "ALERTS"}, report.Order)

	stats, err := h.store.Status(context.Background(), instance)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rotation.RunCount)
	assert.Equal(t, 1, stats.Rotation.NextIndex)
	assert.Zero(t, stats.Total)
}

type draftGenerator struct{}

func (draftGenerator) Name() string { return "gemini" }

func (draftGenerator) Generate(context.Context, string) (string, domain.Outcome, error) {
	body := "<p>" + strings.Repeat("Rates moved again and households feel it. ", 8) + "</p>"
	return `{"title":"What the rate rise means","body_html":"` + body + `","meta_description":"A look at the rate rise.","tags":["rates","banks"],"category_hint":"FINANCE","fb_summary":"Rates are up again."}`, domain.OutcomeSuccess, nil
}

type blogSink struct {
	posts []domain.BlogPost
}

func (b *blogSink) Publish(_ context.Context, post domain.BlogPost) (string, error) {
	b.posts = append(b.posts, post)
	return "https://blog.example.org/rate-rise", nil
}

func TestBlogStagePublishesApprovedDrafts(t *testing.T) {
	t.Parallel()
	sink := &blogSink{}
	summary := &recordingPoster{name: "facebook"}
	stage := NewBlogStage(BlogStageDeps{
		Writer:    blog.NewWriter(blog.WriterDeps{Generators: []ports.TextGenerator{draftGenerator{}}}),
		Publisher: sink,
		Summary:   summary,
	})

	items := feedItems()[:1]
	_, p := newHarness(t, items, harnessOptions{blog: stage})

	report, err := p.Run(context.Background(), RunOptions{Live: true})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Blog.Drafted)
	assert.Equal(t, 1, report.Blog.Approved)
	assert.Equal(t, []string{"https://blog.example.org/rate-rise"}, report.Blog.Published)
	require.Len(t, sink.posts, 1)
	assert.Equal(t, "gemini", sink.posts[0].Provider)
	require.Len(t, summary.posts, 1)
	assert.Equal(t, "Rates are up again.", summary.posts[0].Text)
	assert.Equal(t, "https://blog.example.org/rate-rise", summary.posts[0].Link)
}

func TestNilBlogStageIsDisabled(t *testing.T) {
	t.Parallel()
	assert.Nil(t, NewBlogStage(BlogStageDeps{}))

	var stage *BlogStage
	drafts, err := stage.Draft(context.Background(), nil, []domain.Article{{ID: 1}}, &BlogReport{})
	require.NoError(t, err)
	assert.Nil(t, drafts)
}
