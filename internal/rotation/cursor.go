// Package rotation keeps the per-instance category scan order moving across runs.
package rotation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// CursorDeps wires the rotation cursor.
type CursorDeps struct {
	Repo       ports.RotationRepository
	Categories []domain.Category
	Logger     *slog.Logger
	Now        func() time.Time
}

// Cursor hands out the rotated category order for one run.
type Cursor struct {
	repo       ports.RotationRepository
	categories []domain.Category
	logger     *slog.Logger
	now        func() time.Time
}

// NewCursor creates a cursor over a fixed category list.
func NewCursor(deps CursorDeps) *Cursor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Cursor{
		repo:       deps.Repo,
		categories: append([]domain.Category(nil), deps.Categories...),
		logger:     logger.With("component", "rotation"),
		now:        now,
	}
}

// Categories returns the unrotated list.
func (c *Cursor) Categories() []domain.Category {
	return append([]domain.Category(nil), c.categories...)
}

// Advance returns the order starting at the stored cursor and commits the next cursor
// before returning. A commit failure is a durability error.
func (c *Cursor) Advance(ctx context.Context, instance string) ([]domain.Category, error) {
	if len(c.categories) == 0 {
		return nil, fmt.Errorf("advance rotation: no categories configured")
	}

	start, err := c.repo.Advance(ctx, instance, len(c.categories), c.now())
	if err != nil {
		return nil, domain.Durability("advance rotation", err)
	}

	order := Rotate(c.categories, start)
	c.logger.Info("rotation advanced", "instance", instance, "start", order[0], "next_index", (start+1)%len(c.categories))
	return order, nil
}

// Peek returns the order the next Advance would return without persisting anything.
func (c *Cursor) Peek(ctx context.Context, instance string) ([]domain.Category, error) {
	if len(c.categories) == 0 {
		return nil, fmt.Errorf("peek rotation: no categories configured")
	}

	state, err := c.repo.Load(ctx, instance)
	if err != nil {
		return nil, fmt.Errorf("peek rotation: %w", err)
	}
	return Rotate(c.categories, state.NextIndex), nil
}

// Reset puts the cursor back on the first category.
func (c *Cursor) Reset(ctx context.Context, instance string) error {
	if err := c.repo.Reset(ctx, instance, c.now()); err != nil {
		return domain.Durability("reset rotation", err)
	}
	c.logger.Info("rotation reset", "instance", instance)
	return nil
}

// Rotate returns categories[start:] + categories[:start] with start taken mod len.
func Rotate(categories []domain.Category, start int) []domain.Category {
	n := len(categories)
	if n == 0 {
		return nil
	}
	start %= n
	if start < 0 {
		start += n
	}

	out := make([]domain.Category, 0, n)
	out = append(out, categories[start:]...)
	return append(out, categories[:start]...)
}
