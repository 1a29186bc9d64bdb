package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/vector"
)

var articleColumns = []string{
	"id", "instance", "content_hash", "title", "summary", "url", "source_feed",
	"category", "score", "method", "embedding", "status", "created_at", "created_day", "decided_at",
}

// Insert stores a pending article. A (instance, content_hash) conflict returns ErrAlreadyExists.
func (s *Store) Insert(ctx context.Context, article *domain.Article) error {
	if article.Status == "" {
		article.Status = domain.StatusPending
	}

	res, err := exec(ctx, s.db, sq.Insert("articles").
		Columns(articleColumns[1:len(articleColumns)-1]...).
		Values(
			article.Instance, article.ContentHash, article.Title, article.Summary, article.URL,
			article.SourceFeed, string(article.Category), article.Score, article.Method,
			vector.Encode(article.Embedding), string(article.Status),
			toMillis(article.CreatedAt), article.CreatedDay,
		))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert article %s: %w", article.ContentHash, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("insert article: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("article id: %w", err)
	}
	article.ID = id
	return nil
}

// Get returns the articles of instance with the given ids, ordered by id.
func (s *Store) Get(ctx context.Context, instance string, ids []int64) ([]domain.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryArticles(ctx, sq.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"instance": instance, "id": ids}).
		OrderBy("id"))
}

// Candidates returns pending articles above the score floor, best first.
func (s *Store) Candidates(ctx context.Context, instance string, q domain.CandidateQuery) ([]domain.Article, error) {
	b := sq.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"instance": instance, "status": string(domain.StatusPending)}).
		Where(sq.Gt{"score": q.MinScore}).
		OrderBy("score DESC", "id ASC")
	if q.Category != "" {
		b = b.Where(sq.Eq{"category": string(q.Category)})
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}
	return s.queryArticles(ctx, b)
}

// ListByStatus returns every article of instance in status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, instance string, status domain.Status) ([]domain.Article, error) {
	return s.queryArticles(ctx, sq.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"instance": instance, "status": string(status)}).
		OrderBy("id"))
}

// Transition moves every id to status in one transaction. Any unknown id or illegal
// move rolls back the whole update.
func (s *Store) Transition(ctx context.Context, instance string, ids []int64, to domain.Status, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		query, args, err := sq.Select("id", "status").
			From("articles").
			Where(sq.Eq{"instance": instance, "id": ids}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query statuses: %w", err)
		}
		current := make(map[int64]domain.Status, len(ids))
		for rows.Next() {
			var (
				id     int64
				status string
			)
			if err := rows.Scan(&id, &status); err != nil {
				_ = rows.Close()
				return fmt.Errorf("scan status: %w", err)
			}
			current[id] = domain.Status(status)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return fmt.Errorf("rows iteration: %w", err)
		}
		if err := rows.Close(); err != nil {
			return fmt.Errorf("close rows: %w", err)
		}

		for _, id := range ids {
			from, ok := current[id]
			if !ok {
				return fmt.Errorf("article %d: %w", id, domain.ErrNotFound)
			}
			if err := domain.ValidateTransition(id, from, to); err != nil {
				return err
			}
		}

		decided := sql.NullInt64{}
		if to != domain.StatusPending {
			decided = sql.NullInt64{Int64: toMillis(at), Valid: true}
		}

		_, err = exec(ctx, tx, sq.Update("articles").
			Set("status", string(to)).
			Set("decided_at", decided).
			Where(sq.Eq{"instance": instance, "id": ids}))
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		return nil
	})
}

// Stats counts articles of instance per status and per category.
func (s *Store) Stats(ctx context.Context, instance string) (domain.Stats, error) {
	stats := domain.Stats{
		Instance:   instance,
		ByStatus:   make(map[domain.Status]int),
		ByCategory: make(map[domain.Category]int),
	}

	for _, group := range []string{"status", "category"} {
		query, args, err := sq.Select(group, "COUNT(*)").
			From("articles").
			Where(sq.Eq{"instance": instance}).
			GroupBy(group).
			ToSql()
		if err != nil {
			return stats, fmt.Errorf("build query: %w", err)
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return stats, fmt.Errorf("count by %s: %w", group, err)
		}
		for rows.Next() {
			var (
				key   string
				count int
			)
			if err := rows.Scan(&key, &count); err != nil {
				_ = rows.Close()
				return stats, fmt.Errorf("scan count: %w", err)
			}
			if group == "status" {
				stats.ByStatus[domain.Status(key)] = count
				stats.Total += count
			} else {
				stats.ByCategory[domain.Category(key)] = count
			}
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return stats, fmt.Errorf("rows iteration: %w", err)
		}
		_ = rows.Close()
	}

	rotation, err := s.Load(ctx, instance)
	if err != nil {
		return stats, err
	}
	stats.Rotation = rotation
	return stats, nil
}

// FindByHash returns the article with hash created on day, or nil.
func (s *Store) FindByHash(ctx context.Context, instance, day, hash string) (*domain.Article, error) {
	found, err := s.queryArticles(ctx, sq.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"instance": instance, "created_day": day, "content_hash": hash}).
		Limit(1))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// WindowVectors returns the embeddings of every article created on day.
func (s *Store) WindowVectors(ctx context.Context, instance, day string) ([]domain.ArticleVector, error) {
	query, args, err := sq.Select("id", "embedding").
		From("articles").
		Where(sq.Eq{"instance": instance, "created_day": day}).
		Where(sq.NotEq{"embedding": nil}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}
	defer rows.Close()

	var out []domain.ArticleVector
	for rows.Next() {
		var (
			id   int64
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scan vector: %w", err)
		}
		vec, err := vector.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("article %d: %w", id, err)
		}
		if len(vec) > 0 {
			out = append(out, domain.ArticleVector{ID: id, Vector: vec})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (s *Store) queryArticles(ctx context.Context, b sq.SelectBuilder) ([]domain.Article, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var out []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func scanArticle(rows *sql.Rows) (domain.Article, error) {
	var (
		a                domain.Article
		category, status string
		blob             []byte
		createdAt        int64
		decidedAt        sql.NullInt64
	)
	if err := rows.Scan(
		&a.ID, &a.Instance, &a.ContentHash, &a.Title, &a.Summary, &a.URL, &a.SourceFeed,
		&category, &a.Score, &a.Method, &blob, &status, &createdAt, &a.CreatedDay, &decidedAt,
	); err != nil {
		return a, fmt.Errorf("scan article: %w", err)
	}

	vec, err := vector.Decode(blob)
	if err != nil {
		return a, fmt.Errorf("article %d: %w", a.ID, err)
	}
	a.Embedding = vec
	a.Category = domain.Category(category)
	a.Status = domain.Status(status)
	a.CreatedAt = fromMillis(createdAt)
	if decidedAt.Valid {
		a.DecidedAt = fromMillis(decidedAt.Int64)
	}
	return a, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrAlreadyExists) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
