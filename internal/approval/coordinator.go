// Package approval runs batched human review over a shared, coarse poll loop.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"NewsRelay/internal/clock"
	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

const (
	DefaultSendDelay    = 4 * time.Second
	DefaultPollInterval = 30 * time.Second
	DefaultNewsTimeout  = 300 * time.Second
	DefaultBlogTimeout  = 600 * time.Second

	checkpointName = "approval_offset"
)

// CoordinatorDeps wires a coordinator for one instance.
type CoordinatorDeps struct {
	Instance     string
	Channel      ports.ApprovalChannel
	Checkpoints  ports.CheckpointStore
	Log          ports.ApprovalLog
	Alerter      ports.Alerter
	AutoApprove  bool
	SendDelay    time.Duration
	PollInterval time.Duration
	Now          func() time.Time
	Sleep        func(ctx context.Context, d time.Duration) error
	NewID        func() string
	Logger       *slog.Logger
}

type correlation struct {
	batchID   string
	articleID int64
}

// Coordinator owns every open batch of one instance. It is not safe for concurrent use;
// one run drives it from a single goroutine.
type Coordinator struct {
	instance    string
	channel     ports.ApprovalChannel
	checkpoints ports.CheckpointStore
	log         ports.ApprovalLog
	alerter     ports.Alerter
	autoApprove bool
	sendDelay   time.Duration
	poll        time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	newID       func() string
	logger      *slog.Logger

	open         map[string]*Batch
	correlations map[string]correlation
	offset       int64
	offsetLoaded bool
}

// NewCoordinator applies defaults for zero-valued settings.
func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	c := &Coordinator{
		instance:     deps.Instance,
		channel:      deps.Channel,
		checkpoints:  deps.Checkpoints,
		log:          deps.Log,
		alerter:      deps.Alerter,
		autoApprove:  deps.AutoApprove,
		sendDelay:    deps.SendDelay,
		poll:         deps.PollInterval,
		now:          deps.Now,
		sleep:        deps.Sleep,
		newID:        deps.NewID,
		logger:       deps.Logger,
		open:         make(map[string]*Batch),
		correlations: make(map[string]correlation),
	}
	if c.sendDelay < 0 {
		c.sendDelay = 0
	}
	if c.poll <= 0 {
		c.poll = DefaultPollInterval
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.sleep == nil {
		c.sleep = clock.Sleep
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "approval", "instance", deps.Instance)
	return c
}

// Open dispatches one message per item, spaced by the send delay, and registers the batch
// with the poll loop. A failed send leaves that item to the timeout policy.
func (c *Coordinator) Open(ctx context.Context, kind domain.BatchKind, items []Item, timeout time.Duration) (*Batch, error) {
	if timeout <= 0 {
		timeout = DefaultNewsTimeout
		if kind == domain.KindBlog {
			timeout = DefaultBlogTimeout
		}
	}

	batch := newBatch(c.newID(), kind, items, c.now(), timeout)

	if c.channel != nil {
		for i, item := range batch.Items {
			if i > 0 && c.sendDelay > 0 {
				if err := c.sleep(ctx, c.sendDelay); err != nil {
					return nil, err
				}
			}

			id := c.newID()
			msg := domain.ApprovalMessage{CorrelationID: id, Kind: kind, Content: item.Content, Link: item.Link}
			if err := c.channel.SendApproval(ctx, msg); err != nil {
				c.logger.Warn("approval message not delivered", "batch", batch.ID, "article_id", item.ArticleID, "error", err)
				continue
			}
			batch.sent[item.ArticleID] = true
			c.correlations[id] = correlation{batchID: batch.ID, articleID: item.ArticleID}
		}
		// Deadline counts from the end of dispatching.
		batch.TimeoutAt = c.now().Add(timeout)
	}

	c.open[batch.ID] = batch
	c.logger.Info("approval batch opened", "batch", batch.ID, "kind", kind, "items", len(items), "sent", len(batch.sent), "timeout_at", batch.TimeoutAt)
	return batch, nil
}

// Pending returns the number of unresolved batches.
func (c *Coordinator) Pending() int {
	return len(c.open)
}

// Await drives the shared poll loop until every open batch is resolved. Each wake polls
// once, applies events to their batches by correlation id and kind, resolves complete or
// expired batches, then sleeps until the next poll or the earliest deadline.
func (c *Coordinator) Await(ctx context.Context) (map[string]Resolution, error) {
	results := make(map[string]Resolution, len(c.open))

	if c.channel == nil {
		for _, batch := range c.ordered() {
			res, err := c.resolve(ctx, batch)
			if err != nil {
				return results, err
			}
			results[batch.ID] = res
		}
		return results, nil
	}

	for len(c.open) > 0 {
		c.pollOnce(ctx)

		now := c.now()
		for _, batch := range c.ordered() {
			if !batch.complete() && now.Before(batch.TimeoutAt) {
				continue
			}
			res, err := c.resolve(ctx, batch)
			if err != nil {
				return results, err
			}
			results[batch.ID] = res
		}
		if len(c.open) == 0 {
			break
		}

		wait := c.poll
		for _, batch := range c.open {
			if until := batch.TimeoutAt.Sub(now); until < wait {
				wait = until
			}
		}
		if err := c.sleep(ctx, wait); err != nil {
			return results, err
		}
	}
	return results, nil
}

func (c *Coordinator) pollOnce(ctx context.Context) {
	if !c.offsetLoaded && c.checkpoints != nil {
		offset, err := c.checkpoints.LoadCheckpoint(ctx, c.instance, checkpointName)
		if err != nil {
			c.logger.Warn("load approval checkpoint", "error", err)
		} else {
			c.offset = offset
			c.offsetLoaded = true
		}
	}

	events, next, err := c.channel.PollDecisions(ctx, c.offset)
	if err != nil {
		c.logger.Warn("poll decisions failed, retrying next wake", "error", err)
		return
	}

	for _, ev := range events {
		c.apply(ev)
	}

	if next != c.offset {
		c.offset = next
		if c.checkpoints != nil {
			if err := c.checkpoints.SaveCheckpoint(ctx, c.instance, checkpointName, next); err != nil {
				c.logger.Warn("save approval checkpoint", "error", err)
			}
		}
	}
}

func (c *Coordinator) apply(ev domain.DecisionEvent) {
	corr, ok := c.correlations[ev.CorrelationID]
	if !ok {
		c.logger.Debug("decision for unknown item ignored", "correlation_id", ev.CorrelationID)
		return
	}
	batch, ok := c.open[corr.batchID]
	if !ok {
		return
	}
	if batch.Kind != ev.Kind {
		c.logger.Warn("decision kind mismatch ignored", "batch", batch.ID, "batch_kind", batch.Kind, "event_kind", ev.Kind)
		return
	}
	if batch.decide(corr.articleID, ev.Action) {
		c.logger.Info("decision received", "batch", batch.ID, "article_id", corr.articleID, "action", ev.Action)
	}
}

// resolve fills undecided items by policy, records the decisions and closes the batch.
func (c *Coordinator) resolve(ctx context.Context, batch *Batch) (Resolution, error) {
	fallback := domain.DecisionSkip
	if c.autoApprove {
		fallback = domain.DecisionApprove
	}

	now := c.now()
	res := Resolution{
		BatchID:    batch.ID,
		Kind:       batch.Kind,
		Items:      batch.Items,
		Decisions:  make(map[int64]domain.Decision, len(batch.Items)),
		ResolvedAt: now,
	}

	records := make([]domain.DecisionRecord, 0, len(batch.Items))
	for _, item := range batch.Items {
		decision, explicit := batch.decisions[item.ArticleID]
		if !explicit {
			decision = fallback
			res.Defaulted++
		}
		res.Decisions[item.ArticleID] = decision
		records = append(records, domain.DecisionRecord{
			Instance:  c.instance,
			BatchID:   batch.ID,
			Kind:      batch.Kind,
			ArticleID: item.ArticleID,
			Decision:  decision,
			TimedOut:  !explicit,
			DecidedAt: now,
		})
	}

	if c.log != nil {
		if err := c.log.RecordDecisions(ctx, records); err != nil {
			return res, domain.Durability("record decisions", err)
		}
	}

	delete(c.open, batch.ID)
	for id, corr := range c.correlations {
		if corr.batchID == batch.ID {
			delete(c.correlations, id)
		}
	}

	c.logger.Info("approval batch resolved", "batch", batch.ID, "kind", batch.Kind,
		"approved", len(res.Approved()), "skipped", len(res.Skipped()), "defaulted", res.Defaulted)

	if res.Defaulted > 0 && c.channel != nil && c.alerter != nil {
		msg := fmt.Sprintf("[%s] %s approval timed out: %d of %d item(s) defaulted to %s",
			c.instance, batch.Kind, res.Defaulted, len(batch.Items), fallback)
		if err := c.alerter.Alert(ctx, msg); err != nil {
			c.logger.Warn("alert failed", "error", err)
		}
	}
	return res, nil
}

func (c *Coordinator) ordered() []*Batch {
	out := make([]*Batch, 0, len(c.open))
	for _, b := range c.open {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
