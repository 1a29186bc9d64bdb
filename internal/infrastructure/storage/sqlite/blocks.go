package sqlite

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"NewsRelay/internal/domain"
)

// Block records a provider block; repeating it for the same day is a no-op.
func (s *Store) Block(ctx context.Context, block domain.ProviderBlock) error {
	_, err := exec(ctx, s.db, sq.Insert("provider_blocks").
		Options("OR IGNORE").
		Columns("instance", "provider", "blocked_date", "created_at").
		Values(block.Instance, block.Provider, block.BlockedDate, toMillis(block.CreatedAt)))
	if err != nil {
		return fmt.Errorf("insert provider block: %w", err)
	}
	return nil
}

// BlockedOn returns the providers of instance blocked on day. Other dates are ignored.
func (s *Store) BlockedOn(ctx context.Context, instance, day string) (map[string]bool, error) {
	query, args, err := sq.Select("provider").
		From("provider_blocks").
		Where(sq.Eq{"instance": instance, "blocked_date": day}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query provider blocks: %w", err)
	}
	defer rows.Close()

	blocked := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		blocked[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return blocked, nil
}

// Prune deletes blocks dated before day.
func (s *Store) Prune(ctx context.Context, instance, day string) (int64, error) {
	res, err := exec(ctx, s.db, sq.Delete("provider_blocks").
		Where(sq.Eq{"instance": instance}).
		Where(sq.Lt{"blocked_date": day}))
	if err != nil {
		return 0, fmt.Errorf("prune provider blocks: %w", err)
	}
	return res.RowsAffected()
}
