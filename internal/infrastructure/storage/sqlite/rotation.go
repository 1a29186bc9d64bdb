package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsRelay/internal/domain"
)

// Advance returns the stored cursor (mod n) and persists the next one in the same transaction.
func (s *Store) Advance(ctx context.Context, instance string, n int, at time.Time) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("advance rotation: no categories for %s", instance)
	}

	var current int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		state, err := loadRotation(ctx, tx, instance)
		if err != nil {
			return err
		}
		current = state.NextIndex % n
		if current < 0 {
			current += n
		}
		return saveRotation(ctx, tx, instance, (current+1)%n, state.RunCount+1, at)
	})
	if err != nil {
		return 0, fmt.Errorf("advance rotation: %w", err)
	}
	return current, nil
}

// Load returns the persisted cursor; a missing row is the zero state.
func (s *Store) Load(ctx context.Context, instance string) (domain.RotationState, error) {
	state, err := loadRotation(ctx, s.db, instance)
	if err != nil {
		return state, fmt.Errorf("load rotation: %w", err)
	}
	return state, nil
}

// Reset sets the cursor back to the first category and keeps the run count.
func (s *Store) Reset(ctx context.Context, instance string, at time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		state, err := loadRotation(ctx, tx, instance)
		if err != nil {
			return err
		}
		if err := saveRotation(ctx, tx, instance, 0, state.RunCount, at); err != nil {
			return fmt.Errorf("reset rotation: %w", err)
		}
		return nil
	})
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadRotation(ctx context.Context, q queryRower, instance string) (domain.RotationState, error) {
	var (
		state   domain.RotationState
		updated int64
	)

	query, args, err := sq.Select("next_index", "run_count", "updated_at").
		From("rotation_state").
		Where(sq.Eq{"instance": instance}).
		ToSql()
	if err != nil {
		return state, fmt.Errorf("build query: %w", err)
	}

	err = q.QueryRowContext(ctx, query, args...).Scan(&state.NextIndex, &state.RunCount, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RotationState{}, nil
	}
	if err != nil {
		return state, fmt.Errorf("query rotation: %w", err)
	}
	state.UpdatedAt = fromMillis(updated)
	return state, nil
}

func saveRotation(ctx context.Context, e execer, instance string, next, runs int, at time.Time) error {
	_, err := exec(ctx, e, sq.Insert("rotation_state").
		Columns("instance", "next_index", "run_count", "updated_at").
		Values(instance, next, runs, toMillis(at)).
		Suffix("ON CONFLICT(instance) DO UPDATE SET next_index = excluded.next_index, " +
			"run_count = excluded.run_count, updated_at = excluded.updated_at"))
	if err != nil {
		return fmt.Errorf("save rotation: %w", err)
	}
	return nil
}
