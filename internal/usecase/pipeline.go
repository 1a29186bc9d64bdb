package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"NewsRelay/internal/approval"
	"NewsRelay/internal/classify"
	"NewsRelay/internal/dedup"
	"NewsRelay/internal/dispatch"
	"NewsRelay/internal/domain"
	"NewsRelay/internal/lifecycle"
	"NewsRelay/internal/platform"
	"NewsRelay/internal/ports"
	"NewsRelay/internal/provider"
	"NewsRelay/internal/rotation"
	"NewsRelay/internal/selection"
	"NewsRelay/internal/tracing"
)

// PipelineDeps wires all driven adapters of one instance into the run orchestration.
type PipelineDeps struct {
	Instance        string
	Display         string
	Feeds           []string
	Fetcher         ports.FeedFetcher
	Classifier      *classify.Classifier
	Dedup           *dedup.Engine
	Store           *lifecycle.Store
	Rotation        *rotation.Cursor
	Registry        *provider.Registry
	Approval        *approval.Coordinator
	ApprovalTimeout time.Duration
	Dispatcher      *dispatch.Dispatcher
	Posters         []ports.Poster
	Blog            *BlogStage
	Selection       selection.Options
	Logger          *slog.Logger
}

// Pipeline implements one curation run: ingest, rotate, select, approve, dispatch.
type Pipeline struct {
	instance        string
	display         string
	feeds           []string
	fetcher         ports.FeedFetcher
	classifier      *classify.Classifier
	dedup           *dedup.Engine
	store           *lifecycle.Store
	rotation        *rotation.Cursor
	registry        *provider.Registry
	approval        *approval.Coordinator
	approvalTimeout time.Duration
	dispatcher      *dispatch.Dispatcher
	posters         []ports.Poster
	blog            *BlogStage
	selection       selection.Options
	logger          *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		instance:        deps.Instance,
		display:         deps.Display,
		feeds:           deps.Feeds,
		fetcher:         deps.Fetcher,
		classifier:      deps.Classifier,
		dedup:           deps.Dedup,
		store:           deps.Store,
		rotation:        deps.Rotation,
		registry:        deps.Registry,
		approval:        deps.Approval,
		approvalTimeout: deps.ApprovalTimeout,
		dispatcher:      deps.Dispatcher,
		posters:         deps.Posters,
		blog:            deps.Blog,
		selection:       deps.Selection,
		logger:          logger.With("component", "pipeline", "instance", deps.Instance),
	}
}

// RunOptions are the operator overrides of a single run.
type RunOptions struct {
	// Live writes state, asks for approval and posts. Otherwise the run is a dry run.
	Live      bool
	Limit     int
	KeepNoise bool
}

// RunReport summarises a run for the operator.
type RunReport struct {
	Instance   string
	DryRun     bool
	Fetched    int
	Noise      int
	Duplicates int
	Inserted   int
	Order      []domain.Category
	Selected   []domain.Article
	Approved   []int64
	Skipped    []int64
	Published  []int64
	Failed     []int64
	Blog       BlogReport
}

// Run executes one pass. A DurabilityError from any committed step aborts the run.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (report RunReport, err error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.run")
	span.WithAttributes(map[string]string{"instance": p.instance, "live": strconv.FormatBool(opts.Live)})
	defer func() { tracing.EndSpan(span, err) }()

	report = RunReport{Instance: p.instance, DryRun: !opts.Live}
	started := time.Now()

	if opts.Live {
		err = p.runLive(ctx, opts, &report)
	} else {
		err = p.runDry(ctx, opts, &report)
	}

	span.SetInt("selected", len(report.Selected))
	p.logger.Info("run finished",
		"dry_run", report.DryRun,
		"fetched", report.Fetched,
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"noise", report.Noise,
		"selected", len(report.Selected),
		"published", len(report.Published),
		"failed", len(report.Failed),
		"skipped", len(report.Skipped),
		"elapsed", time.Since(started).Round(time.Millisecond),
		"error", err,
	)
	return report, err
}

func (p *Pipeline) runLive(ctx context.Context, opts RunOptions, report *RunReport) error {
	p.registry.BeginRun(ctx)

	// The cursor moves first so a run that fails later still rotates.
	order, err := p.rotation.Advance(ctx, p.instance)
	if err != nil {
		return err
	}
	report.Order = order

	if err := p.ingest(ctx, p.registry, p.dedup, opts, report, p.insert); err != nil {
		return err
	}

	picked, err := selection.Pick(ctx, p.store, p.instance, order, p.pickOptions(opts))
	if err != nil {
		return fmt.Errorf("select candidates: %w", err)
	}
	if len(picked) == 0 {
		p.logger.Info("nothing to select")
		return nil
	}
	if err := p.store.Select(ctx, p.instance, ids(picked)); err != nil {
		return err
	}
	report.Selected = picked

	drafts, err := p.blog.Draft(ctx, p.registry, picked, &report.Blog)
	if err != nil {
		return err
	}

	news, err := p.openNews(ctx, picked)
	if err != nil {
		return err
	}
	blogBatch, err := p.blog.open(ctx, p.approval, drafts)
	if err != nil {
		return err
	}

	resolutions, err := p.approval.Await(ctx)
	if err != nil {
		return err
	}

	res := resolutions[news.ID]
	report.Approved = res.Approved()
	report.Skipped = res.Skipped()
	if err := p.store.MarkSkipped(ctx, p.instance, report.Skipped); err != nil {
		return err
	}

	if err := p.dispatchApproved(ctx, picked, report); err != nil {
		return err
	}

	if blogBatch != nil {
		p.blog.Publish(ctx, drafts, resolutions[blogBatch.ID], &report.Blog)
	}
	return nil
}

func (p *Pipeline) runDry(ctx context.Context, opts RunOptions, report *RunReport) error {
	reg := p.registry.DryRun()
	window := &memoryWindow{base: p.dedup.Window()}
	engine := p.dedup.WithWindow(window).WithEmbedder(p.classifier.Embedder(reg))

	var extra []domain.Article
	nextID := int64(-1)
	keep := func(_ context.Context, a *domain.Article) error {
		a.ID = nextID
		a.Status = domain.StatusPending
		nextID--
		window.add(*a)
		extra = append(extra, *a)
		return nil
	}

	order, err := p.rotation.Peek(ctx, p.instance)
	if err != nil {
		return err
	}
	report.Order = order

	if err := p.ingest(ctx, reg, engine, opts, report, keep); err != nil {
		return err
	}

	src := selection.Overlay{Base: p.store, Extra: extra}
	picked, err := selection.Pick(ctx, src, p.instance, order, p.pickOptions(opts))
	if err != nil {
		return fmt.Errorf("select candidates: %w", err)
	}
	report.Selected = picked
	return nil
}

// ingest fetches, classifies and deduplicates, handing accepted articles to keep.
func (p *Pipeline) ingest(
	ctx context.Context,
	reg *provider.Registry,
	engine *dedup.Engine,
	opts RunOptions,
	report *RunReport,
	keep func(context.Context, *domain.Article) error,
) error {
	ctx, span := tracing.StartSpan(ctx, "pipeline.ingest")
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	if p.fetcher == nil || len(p.feeds) == 0 {
		return nil
	}

	raw, fetchErr := p.fetcher.FetchFeeds(ctx, p.feeds)
	if fetchErr != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
			return err
		}
		// Selection still runs over the pending backlog.
		p.logger.Warn("fetch feeds failed", "error", fetchErr)
		return nil
	}
	report.Fetched = len(raw)
	if len(raw) == 0 {
		return nil
	}

	texts := make([]string, len(raw))
	for i, r := range raw {
		texts[i] = domain.Article{Title: r.Title, Summary: r.Summary}.Text()
	}
	results, err := p.classifier.ClassifyAll(ctx, reg, texts)
	if err != nil {
		err = fmt.Errorf("classify: %w", err)
		return err
	}

	day := engine.Today()
	for i, r := range raw {
		res := results[i]
		if res.Category == domain.CategoryNoise && !opts.KeepNoise {
			report.Noise++
			continue
		}

		verdict, cErr := engine.Check(ctx, p.instance, dedup.Candidate{Title: r.Title, Body: r.Summary, URL: r.URL, Vector: res.Vector})
		if cErr != nil {
			err = cErr
			return err
		}
		if !verdict.Accepted {
			report.Duplicates++
			p.logger.Debug("duplicate dropped", "title", r.Title, "reason", verdict.Reason, "matched_id", verdict.MatchedID)
			continue
		}

		article := &domain.Article{
			Instance:    p.instance,
			ContentHash: verdict.Hash,
			Title:       r.Title,
			Summary:     r.Summary,
			URL:         r.URL,
			SourceFeed:  r.SourceFeed,
			Category:    res.Category,
			Score:       res.Score,
			Method:      res.Method,
			Embedding:   verdict.Vector,
			CreatedDay:  day,
		}
		if kErr := keep(ctx, article); kErr != nil {
			if errors.Is(kErr, domain.ErrAlreadyExists) {
				report.Duplicates++
				continue
			}
			err = fmt.Errorf("store article: %w", kErr)
			return err
		}
		report.Inserted++
	}
	return nil
}

func (p *Pipeline) insert(ctx context.Context, a *domain.Article) error {
	return p.store.Add(ctx, a)
}

func (p *Pipeline) openNews(ctx context.Context, picked []domain.Article) (*approval.Batch, error) {
	items := make([]approval.Item, len(picked))
	for i, a := range picked {
		items[i] = approval.Item{ArticleID: a.ID, Content: platform.Caption(a, p.display), Link: a.URL}
	}
	batch, err := p.approval.Open(ctx, domain.KindNews, items, p.approvalTimeout)
	if err != nil {
		return nil, fmt.Errorf("open news approval: %w", err)
	}
	return batch, nil
}

func (p *Pipeline) dispatchApproved(ctx context.Context, picked []domain.Article, report *RunReport) (err error) {
	if len(report.Approved) == 0 {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "pipeline.dispatch")
	defer func() { tracing.EndSpan(span, err) }()

	approved := make(map[int64]bool, len(report.Approved))
	for _, id := range report.Approved {
		approved[id] = true
	}
	var items []domain.PostContent
	for _, a := range picked {
		if approved[a.ID] {
			items = append(items, platform.Compose(a, p.display))
		}
	}

	result, err := p.dispatcher.Dispatch(ctx, items, p.posters)
	report.Published = result.Published
	report.Failed = result.Failed
	return err
}

func (p *Pipeline) pickOptions(opts RunOptions) selection.Options {
	o := p.selection
	if opts.Limit > 0 {
		o.PerRun = opts.Limit
	}
	o.KeepNoise = opts.KeepNoise
	return o
}

func ids(articles []domain.Article) []int64 {
	out := make([]int64, len(articles))
	for i, a := range articles {
		out[i] = a.ID
	}
	return out
}
