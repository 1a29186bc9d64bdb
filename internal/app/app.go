package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"NewsRelay/internal/approval"
	"NewsRelay/internal/blog"
	"NewsRelay/internal/classify"
	"NewsRelay/internal/config"
	"NewsRelay/internal/dedup"
	"NewsRelay/internal/dispatch"
	"NewsRelay/internal/domain"
	"NewsRelay/internal/infrastructure/content"
	"NewsRelay/internal/infrastructure/facebook"
	"NewsRelay/internal/infrastructure/feed"
	"NewsRelay/internal/infrastructure/instagram"
	"NewsRelay/internal/infrastructure/llm"
	"NewsRelay/internal/infrastructure/ml"
	"NewsRelay/internal/infrastructure/scheduler"
	"NewsRelay/internal/infrastructure/storage/sqlite"
	"NewsRelay/internal/infrastructure/telegram"
	"NewsRelay/internal/infrastructure/twitter"
	"NewsRelay/internal/infrastructure/wordpress"
	"NewsRelay/internal/lifecycle"
	"NewsRelay/internal/logging"
	"NewsRelay/internal/platform"
	"NewsRelay/internal/ports"
	"NewsRelay/internal/provider"
	"NewsRelay/internal/rotation"
	"NewsRelay/internal/selection"
	"NewsRelay/internal/tracing"
	"NewsRelay/internal/usecase"
)

// Version is reported to the tracer and by the CLI.
const Version = "0.3.0"

const serviceName = "newsrelay"

// Runtime is the wired component set of one instance.
type Runtime struct {
	Config   config.InstanceConfig
	Pipeline *usecase.Pipeline
	Store    *lifecycle.Store
	Rotation *rotation.Cursor
	Schedule *scheduler.DailyScheduler
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sqlite.Store
	shutdown tracing.Shutdown
	runtimes []*Runtime
}

// New opens the shared store and builds one runtime per configured instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithWriter(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	}

	if err := cfg.CheckBotTokens(); err != nil {
		return nil, err
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	a := &Application{cfg: cfg, logger: baseLogger, db: db}

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(serviceName, Version, cfg.Tracing.Path)
		if err != nil {
			baseLogger.Warn("tracing disabled", "error", err)
		} else {
			a.shutdown = shutdown
		}
	}

	for _, inst := range cfg.Instances {
		rt, err := a.build(inst)
		if err != nil {
			_ = a.Close(context.Background())
			return nil, fmt.Errorf("build instance %s: %w", inst.Name, err)
		}
		a.runtimes = append(a.runtimes, rt)
	}
	return a, nil
}

// Runtime returns the named instance, or the first one when name is empty.
func (a *Application) Runtime(name string) (*Runtime, error) {
	if len(a.runtimes) == 0 {
		return nil, errors.New("no instances configured")
	}
	if name == "" {
		return a.runtimes[0], nil
	}
	for _, rt := range a.runtimes {
		if rt.Config.Name == name {
			return rt, nil
		}
	}
	return nil, fmt.Errorf("unknown instance %q", name)
}

// Runtimes lists every instance runtime in configuration order.
func (a *Application) Runtimes() []*Runtime {
	return a.runtimes
}

// Run performs a single pipeline execution for one instance.
func (a *Application) Run(ctx context.Context, instance string, opts usecase.RunOptions) (usecase.RunReport, error) {
	rt, err := a.Runtime(instance)
	if err != nil {
		return usecase.RunReport{}, err
	}
	return rt.Pipeline.Run(ctx, opts)
}

// Serve runs every instance on its own daily schedule until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	schedulers := make([]*usecase.Scheduler, 0, len(a.runtimes))
	for _, rt := range a.runtimes {
		s := usecase.NewScheduler(rt.Schedule, rt.Pipeline, a.logger.With("instance", rt.Config.Name))
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler %s: %w", rt.Config.Name, err)
		}
		a.logger.Info("instance scheduled", "instance", rt.Config.Name,
			"next_run", rt.Schedule.NextRun(time.Now()).Format(time.RFC3339))
		schedulers = append(schedulers, s)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make([]error, len(schedulers))
	for i, s := range schedulers {
		wg.Add(1)
		go func(i int, s *usecase.Scheduler) {
			defer wg.Done()
			errs[i] = s.Stop(stopCtx)
		}(i, s)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Close flushes traces and closes the store.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func (a *Application) build(inst config.InstanceConfig) (*Runtime, error) {
	cfg := a.cfg
	logger := a.logger.With("instance", inst.Name)
	loc := inst.Location()

	specs := categorySpecs(inst.Categories)

	bot := telegram.NewBot(telegram.Config{
		BotToken: cfg.BotTokenFor(inst),
		ChatID:   cfg.ChatFor(inst),
		APIBase:  cfg.Telegram.APIBase,
	})
	var (
		channel ports.ApprovalChannel
		alerter ports.Alerter
	)
	if bot.Configured() {
		channel, alerter = bot, bot
	} else {
		logger.Warn("telegram not configured, approvals resolve by timeout policy")
	}

	registry := provider.NewRegistry(provider.RegistryDeps{
		Instance: inst.Name,
		Blocks:   a.db,
		Alerter:  alerter,
		Location: loc,
		Logger:   logger,
	})

	var embedders []ports.Embedder
	for _, p := range cfg.Embedding.Providers {
		if p.Endpoint == "" {
			continue
		}
		embedders = append(embedders, ml.NewClient(p.Name, p.Endpoint, p.APIKey, p.Model))
	}

	classifier, err := classify.NewClassifier(classify.ClassifierDeps{
		Specs:       specs,
		Embedders:   embedders,
		AnchorFloor: cfg.Pipeline.AnchorFloor,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	store := lifecycle.NewStore(lifecycle.StoreDeps{Repo: a.db, Logger: logger})
	cursor := rotation.NewCursor(rotation.CursorDeps{
		Repo:       a.db,
		Categories: domain.RotationOrder(specs),
		Logger:     logger,
	})

	posters := platform.NewRegistry()
	if bot.Configured() {
		posters.Register(bot)
	}
	var page ports.Poster
	if fb := cfg.FacebookFor(inst); fb.PageID != "" && fb.AccessToken != "" {
		page = facebook.NewPage(fb.PageID, fb.AccessToken, fb.APIBase)
		posters.Register(page)
	}
	if ig := cfg.InstagramFor(inst); ig.AccountID != "" && ig.AccessToken != "" {
		posters.Register(instagram.NewAccount(instagram.Config{
			AccountID:   ig.AccountID,
			AccessToken: ig.AccessToken,
			APIBase:     ig.APIBase,
			ImageBase:   ig.ImageBase,
		}))
	}
	if tw := cfg.TwitterFor(inst); tw.Configured() {
		posters.Register(twitter.NewClient(twitter.Config{
			ClientID:     tw.ClientID,
			ClientSecret: tw.ClientSecret,
			AccessToken:  tw.AccessToken,
			RefreshToken: tw.RefreshToken,
			APIBase:      tw.APIBase,
			TokenURL:     tw.TokenURL,
		}))
	}
	enabled := make([]ports.Poster, 0, len(inst.Platforms))
	for _, name := range inst.Platforms {
		poster, err := posters.Resolve(name)
		if err != nil {
			logger.Warn("platform disabled", "platform", name, "error", err)
			continue
		}
		enabled = append(enabled, poster)
	}

	schedule, err := scheduler.NewDailyScheduler(cfg.Scheduler.Times, loc)
	if err != nil {
		return nil, err
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Instance:   inst.Name,
		Display:    inst.Display,
		Feeds:      inst.Feeds,
		Fetcher:    feed.NewFetcher(feed.Options{Logger: logger}),
		Classifier: classifier,
		Dedup: dedup.NewEngine(dedup.EngineDeps{
			Window:        a.db,
			Embedder:      classifier.Embedder(registry),
			Threshold:     cfg.Pipeline.DedupThreshold,
			MinTextLength: cfg.Pipeline.MinTextLength,
			Location:      loc,
			Logger:        logger,
		}),
		Store:    store,
		Rotation: cursor,
		Registry: registry,
		Approval: approval.NewCoordinator(approval.CoordinatorDeps{
			Instance:     inst.Name,
			Channel:      channel,
			Checkpoints:  a.db,
			Log:          a.db,
			Alerter:      alerter,
			AutoApprove:  cfg.Approval.AutoApprove,
			SendDelay:    cfg.Approval.SendDelay(),
			PollInterval: cfg.Approval.PollInterval(),
			Logger:       logger,
		}),
		ApprovalTimeout: cfg.Approval.Timeout(),
		Dispatcher: dispatch.NewDispatcher(dispatch.DispatcherDeps{
			Instance:    inst.Name,
			Status:      store,
			Log:         a.db,
			Primary:     cfg.Posting.Primary,
			DelayBase:   time.Duration(cfg.Posting.DelayBaseSec) * time.Second,
			DelayJitter: time.Duration(cfg.Posting.DelayJitterSec) * time.Second,
			Logger:      logger,
		}),
		Posters: enabled,
		Blog:    a.blogStage(inst, registry, page, logger),
		Selection: selection.Options{
			PerRun:         cfg.Pipeline.ArticlesPerRun,
			TopPerCategory: cfg.Pipeline.TopPerCategory,
			MinScore:       cfg.Pipeline.MinScore,
		},
		Logger: logger,
	})

	return &Runtime{Config: inst, Pipeline: pipeline, Store: store, Rotation: cursor, Schedule: schedule}, nil
}

func (a *Application) blogStage(inst config.InstanceConfig, reg *provider.Registry, summary ports.Poster, logger *slog.Logger) *usecase.BlogStage {
	cfg := a.cfg
	if !cfg.BlogEnabled(inst) {
		return nil
	}

	var generators []ports.TextGenerator
	for _, l := range cfg.LLM {
		if !llm.Usable(l.Kind, l.APIKey) {
			logger.Debug("llm provider skipped, no key", "provider", l.Name)
			continue
		}
		gen, err := llm.New(l.Kind, llm.Options{Name: l.Name, Endpoint: l.Endpoint, Model: l.Model, APIKey: l.APIKey})
		if err != nil {
			logger.Warn("llm provider skipped", "provider", l.Name, "error", err)
			continue
		}
		generators = append(generators, gen)
	}

	extractor := content.NewExtractor(content.Options{
		UserAgent: cfg.Blog.UserAgent,
		Timeout:   time.Duration(cfg.Blog.FetchTimeoutSec) * time.Second,
		MaxChars:  cfg.Blog.MaxContentChars,
		Paywalled: cfg.Blog.Paywalled,
		Logger:    logger,
	})

	writer := blog.NewWriter(blog.WriterDeps{
		Registry:   reg,
		Generators: generators,
		Content:    extractor,
		Options: blog.PromptOptions{
			Display:  inst.Display,
			Language: cfg.Blog.Language,
			Tone:     cfg.Blog.Tone,
			MinWords: cfg.Blog.MinWords,
			MaxWords: cfg.Blog.MaxWords,
		},
		Logger: logger,
	})

	var publisher ports.BlogPublisher
	if wp := cfg.WordPressFor(inst); wp.URL != "" {
		publisher = wordpress.NewClient(wordpress.Config{
			URL:         wp.URL,
			Username:    wp.Username,
			AppPassword: wp.AppPassword,
			Status:      wp.Status,
			AuthorID:    wp.AuthorID,
		})
	}

	return usecase.NewBlogStage(usecase.BlogStageDeps{
		Writer:    writer,
		Publisher: publisher,
		Summary:   summary,
		Timeout:   cfg.Blog.ApprovalTimeout(),
		Logger:    logger,
	})
}

func categorySpecs(cats []config.CategoryConfig) []domain.CategorySpec {
	specs := make([]domain.CategorySpec, len(cats))
	for i, c := range cats {
		specs[i] = domain.CategorySpec{
			Name:        domain.Category(c.Name),
			Description: c.Description,
			Weight:      c.Weight,
			Priority:    c.Priority,
			Patterns:    c.Patterns,
		}
	}
	return specs
}
