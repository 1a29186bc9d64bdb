// Package dispatch fans approved articles out to the enabled platforms.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"NewsRelay/internal/clock"
	"NewsRelay/internal/domain"
	"NewsRelay/internal/platform"
	"NewsRelay/internal/ports"
)

const (
	DefaultDelayBase   = 30 * time.Second
	DefaultDelayJitter = 60 * time.Second
)

// StatusWriter is the part of the lifecycle store the dispatcher drives.
type StatusWriter interface {
	MarkPublished(ctx context.Context, instance string, ids []int64) error
	MarkFailed(ctx context.Context, instance string, ids []int64) error
}

// DispatcherDeps wires a dispatcher for one instance.
type DispatcherDeps struct {
	Instance    string
	Status      StatusWriter
	Log         ports.PublishLog
	Limits      map[string]platform.Limits
	Primary     string
	DelayBase   time.Duration
	DelayJitter time.Duration
	Rand        func() float64
	Now         func() time.Time
	Sleep       func(ctx context.Context, d time.Duration) error
	Logger      *slog.Logger
}

// Report summarises one dispatch call.
type Report struct {
	Published []int64
	Failed    []int64
	Posts     int
	Errors    int
}

// Dispatcher posts sequentially; every wait is a blocking wait on the caller.
type Dispatcher struct {
	instance string
	status   StatusWriter
	log      ports.PublishLog
	limits   map[string]platform.Limits
	primary  string
	base     time.Duration
	jitter   time.Duration
	rand     func() float64
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *slog.Logger
	limiters map[string]*rate.Limiter
}

// NewDispatcher applies defaults for zero-valued settings. Negative delays disable waiting.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	d := &Dispatcher{
		instance: deps.Instance,
		status:   deps.Status,
		log:      deps.Log,
		limits:   deps.Limits,
		primary:  deps.Primary,
		base:     deps.DelayBase,
		jitter:   deps.DelayJitter,
		rand:     deps.Rand,
		now:      deps.Now,
		sleep:    deps.Sleep,
		logger:   deps.Logger,
		limiters: make(map[string]*rate.Limiter),
	}
	if d.base == 0 {
		d.base = DefaultDelayBase
	}
	if d.jitter == 0 {
		d.jitter = DefaultDelayJitter
	}
	if d.rand == nil {
		d.rand = rand.Float64
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.sleep == nil {
		d.sleep = clock.Sleep
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.logger = d.logger.With("component", "dispatch", "instance", deps.Instance)
	return d
}

// Dispatch posts every item to every platform, then moves the article to published when
// the primary platform accepted it and to failed otherwise. A platform outage only
// affects its own posts.
func (d *Dispatcher) Dispatch(ctx context.Context, items []domain.PostContent, posters []ports.Poster) (Report, error) {
	var report Report
	primary := d.primaryName(posters)
	first := true

	for _, item := range items {
		primaryOK := len(posters) == 0

		for _, poster := range posters {
			if !first {
				if err := d.sleep(ctx, d.delay()); err != nil {
					return report, err
				}
			}
			first = false

			receipt, err := d.post(ctx, poster, item)
			record := domain.PublishRecord{
				Instance:  d.instance,
				ArticleID: item.ArticleID,
				Platform:  poster.Name(),
				PostID:    receipt.PostID,
				Status:    domain.StatusPublished,
				CreatedAt: d.now(),
			}
			if err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				record.Status = domain.StatusFailed
				record.Error = err.Error()
				report.Errors++
				d.logger.Warn("post failed", "article_id", item.ArticleID, "platform", poster.Name(), "error", err)
			} else {
				report.Posts++
				if poster.Name() == primary {
					primaryOK = true
				}
				d.logger.Info("posted", "article_id", item.ArticleID, "platform", poster.Name(), "post_id", receipt.PostID)
			}

			if d.log != nil {
				if err := d.log.RecordPublish(ctx, record); err != nil {
					d.logger.Warn("record publish", "article_id", item.ArticleID, "error", err)
				}
			}
		}

		ids := []int64{item.ArticleID}
		if primaryOK {
			if err := d.status.MarkPublished(ctx, d.instance, ids); err != nil {
				return report, fmt.Errorf("mark published: %w", err)
			}
			report.Published = append(report.Published, item.ArticleID)
			continue
		}
		if err := d.status.MarkFailed(ctx, d.instance, ids); err != nil {
			return report, fmt.Errorf("mark failed: %w", err)
		}
		report.Failed = append(report.Failed, item.ArticleID)
	}
	return report, nil
}

func (d *Dispatcher) post(ctx context.Context, poster ports.Poster, item domain.PostContent) (domain.PostReceipt, error) {
	limits := d.limitsFor(poster.Name())
	attempts := limits.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := d.throttle(ctx, poster.Name(), limits); err != nil {
			return domain.PostReceipt{}, err
		}

		receipt, err := poster.Post(ctx, item)
		if err == nil {
			return receipt, nil
		}
		lastErr = err
		d.logger.Debug("post attempt failed", "platform", poster.Name(), "attempt", attempt, "error", err)

		if attempt < attempts {
			wait := time.Duration(math.Pow(limits.BackoffBase, float64(attempt)) * float64(time.Second))
			if err := d.sleep(ctx, wait); err != nil {
				return domain.PostReceipt{}, err
			}
		}
	}
	return domain.PostReceipt{}, fmt.Errorf("%s: %d attempt(s): %w", poster.Name(), attempts, lastErr)
}

// throttle keeps a platform under its hourly request budget.
func (d *Dispatcher) throttle(ctx context.Context, name string, limits platform.Limits) error {
	if limits.RequestsPerHour <= 0 {
		return nil
	}
	lim, ok := d.limiters[name]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(limits.RequestsPerHour)/3600), 1)
		d.limiters[name] = lim
	}

	now := d.now()
	wait := lim.ReserveN(now, 1).DelayFrom(now)
	if wait <= 0 {
		return nil
	}
	return d.sleep(ctx, wait)
}

func (d *Dispatcher) delay() time.Duration {
	if d.base < 0 {
		return 0
	}
	jitter := time.Duration(0)
	if d.jitter > 0 {
		jitter = time.Duration(d.rand() * float64(d.jitter))
	}
	return d.base + jitter
}

func (d *Dispatcher) limitsFor(name string) platform.Limits {
	if l, ok := d.limits[name]; ok {
		return l
	}
	return platform.LimitsFor(name)
}

func (d *Dispatcher) primaryName(posters []ports.Poster) string {
	for _, p := range posters {
		if p.Name() == d.primary {
			return d.primary
		}
	}
	if len(posters) > 0 {
		return posters[0].Name()
	}
	return ""
}
