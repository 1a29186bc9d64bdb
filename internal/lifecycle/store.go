// Package lifecycle owns article status changes. Every mutation goes through the transition table.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// StoreDeps wires the lifecycle store.
type StoreDeps struct {
	Repo   ports.ArticleRepository
	Logger *slog.Logger
	Now    func() time.Time
}

// Store is the only writer of article status.
type Store struct {
	repo   ports.ArticleRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewStore builds a lifecycle store on top of a repository.
func NewStore(deps StoreDeps) *Store {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Store{repo: deps.Repo, logger: logger.With("component", "lifecycle"), now: now}
}

// Add inserts a new pending article.
func (s *Store) Add(ctx context.Context, article *domain.Article) error {
	article.Status = domain.StatusPending
	if article.CreatedAt.IsZero() {
		article.CreatedAt = s.now()
	}
	return s.repo.Insert(ctx, article)
}

// Get returns articles by id.
func (s *Store) Get(ctx context.Context, instance string, ids []int64) ([]domain.Article, error) {
	return s.repo.Get(ctx, instance, ids)
}

// Candidates returns pending articles for selection.
func (s *Store) Candidates(ctx context.Context, instance string, q domain.CandidateQuery) ([]domain.Article, error) {
	return s.repo.Candidates(ctx, instance, q)
}

// Select commits pending -> selected. It returns only after the commit, so callers may
// start network-facing work once it succeeds.
func (s *Store) Select(ctx context.Context, instance string, ids []int64) error {
	return s.move(ctx, "select", instance, ids, domain.StatusSelected)
}

// MarkPublished records selected -> published.
func (s *Store) MarkPublished(ctx context.Context, instance string, ids []int64) error {
	return s.move(ctx, "mark published", instance, ids, domain.StatusPublished)
}

// MarkFailed records selected -> failed.
func (s *Store) MarkFailed(ctx context.Context, instance string, ids []int64) error {
	return s.move(ctx, "mark failed", instance, ids, domain.StatusFailed)
}

// MarkSkipped records selected -> skipped.
func (s *Store) MarkSkipped(ctx context.Context, instance string, ids []int64) error {
	return s.move(ctx, "mark skipped", instance, ids, domain.StatusSkipped)
}

// Requeue is the operator recovery path {selected, failed} -> pending.
func (s *Store) Requeue(ctx context.Context, instance string, ids []int64) error {
	return s.move(ctx, "requeue", instance, ids, domain.StatusPending)
}

// RequeueStatus requeues every article of instance currently in status.
func (s *Store) RequeueStatus(ctx context.Context, instance string, status domain.Status) ([]int64, error) {
	if !domain.CanTransition(status, domain.StatusPending) {
		return nil, fmt.Errorf("requeue %s: %w", status, domain.ErrInvalidTransition)
	}

	articles, err := s.repo.ListByStatus(ctx, instance, status)
	if err != nil {
		return nil, fmt.Errorf("list %s articles: %w", status, err)
	}

	ids := make([]int64, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}
	if err := s.Requeue(ctx, instance, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Status returns the operator report for instance.
func (s *Store) Status(ctx context.Context, instance string) (domain.Stats, error) {
	stats, err := s.repo.Stats(ctx, instance)
	if err != nil {
		return stats, fmt.Errorf("status %s: %w", instance, err)
	}
	return stats, nil
}

func (s *Store) move(ctx context.Context, op, instance string, ids []int64, to domain.Status) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.repo.Transition(ctx, instance, ids, to, s.now()); err != nil {
		s.logger.Error("status transition failed", "instance", instance, "op", op, "ids", ids, "error", err)
		return domain.Durability(op, err)
	}
	s.logger.Debug("status transition", "instance", instance, "to", to, "count", len(ids))
	return nil
}
