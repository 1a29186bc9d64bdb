package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"NewsRelay/internal/domain"
)

// RecordDecisions appends resolved approval decisions in one transaction.
func (s *Store) RecordDecisions(ctx context.Context, records []domain.DecisionRecord) error {
	if len(records) == 0 {
		return nil
	}

	b := sq.Insert("approval_log").
		Columns("instance", "batch_id", "kind", "article_id", "decision", "timed_out", "decided_at")
	for _, r := range records {
		timedOut := 0
		if r.TimedOut {
			timedOut = 1
		}
		b = b.Values(r.Instance, r.BatchID, string(r.Kind), r.ArticleID, string(r.Decision), timedOut, toMillis(r.DecidedAt))
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := exec(ctx, tx, b); err != nil {
			return fmt.Errorf("insert decisions: %w", err)
		}
		return nil
	})
}

// Decisions returns the approval log of one batch in insertion order.
func (s *Store) Decisions(ctx context.Context, instance, batchID string) ([]domain.DecisionRecord, error) {
	query, args, err := sq.Select("batch_id", "kind", "article_id", "decision", "timed_out", "decided_at").
		From("approval_log").
		Where(sq.Eq{"instance": instance, "batch_id": batchID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []domain.DecisionRecord
	for rows.Next() {
		var (
			r              domain.DecisionRecord
			kind, decision string
			timedOut       int
			decidedAt      int64
		)
		if err := rows.Scan(&r.BatchID, &kind, &r.ArticleID, &decision, &timedOut, &decidedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		r.Instance = instance
		r.Kind = domain.BatchKind(kind)
		r.Decision = domain.Decision(decision)
		r.TimedOut = timedOut != 0
		r.DecidedAt = fromMillis(decidedAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// RecordPublish appends one platform attempt.
func (s *Store) RecordPublish(ctx context.Context, record domain.PublishRecord) error {
	_, err := exec(ctx, s.db, sq.Insert("publish_log").
		Columns("instance", "article_id", "platform", "platform_post_id", "status", "error", "created_at").
		Values(record.Instance, record.ArticleID, record.Platform, record.PostID,
			string(record.Status), record.Error, toMillis(record.CreatedAt)))
	if err != nil {
		return fmt.Errorf("insert publish record: %w", err)
	}
	return nil
}

// PublishHistory returns the publish log of one article.
func (s *Store) PublishHistory(ctx context.Context, instance string, articleID int64) ([]domain.PublishRecord, error) {
	query, args, err := sq.Select("platform", "platform_post_id", "status", "error", "created_at").
		From("publish_log").
		Where(sq.Eq{"instance": instance, "article_id": articleID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query publish log: %w", err)
	}
	defer rows.Close()

	var out []domain.PublishRecord
	for rows.Next() {
		var (
			r         domain.PublishRecord
			status    string
			createdAt int64
		)
		if err := rows.Scan(&r.Platform, &r.PostID, &status, &r.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan publish record: %w", err)
		}
		r.Instance = instance
		r.ArticleID = articleID
		r.Status = domain.Status(status)
		r.CreatedAt = fromMillis(createdAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// LoadCheckpoint returns the named checkpoint or 0 when unset.
func (s *Store) LoadCheckpoint(ctx context.Context, instance, name string) (int64, error) {
	query, args, err := sq.Select("value").
		From("checkpoints").
		Where(sq.Eq{"instance": instance, "name": name}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var value int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load checkpoint %s: %w", name, err)
	}
	return value, nil
}

// SaveCheckpoint upserts the named checkpoint.
func (s *Store) SaveCheckpoint(ctx context.Context, instance, name string, value int64) error {
	_, err := exec(ctx, s.db, sq.Insert("checkpoints").
		Columns("instance", "name", "value").
		Values(instance, name, value).
		Suffix("ON CONFLICT(instance, name) DO UPDATE SET value = excluded.value"))
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", name, err)
	}
	return nil
}
