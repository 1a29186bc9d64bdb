package rotation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/infrastructure/storage/sqlite"
)

var cats = []domain.Category{"WELFARE", "ALERTS", "FINANCE", "HEALTH", "JOBS", "EDUCATION"}

func TestRotate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, cats, Rotate(cats, 0))
	assert.Equal(t, []domain.Category{"FINANCE", "HEALTH", "JOBS", "EDUCATION", "WELFARE", "ALERTS"}, Rotate(cats, 2))
	assert.Equal(t, Rotate(cats, 1), Rotate(cats, 7))
	assert.Nil(t, Rotate(nil, 3))
}

func TestAdvanceFollowsRunCount(t *testing.T) {
	t.Parallel()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "rotation.db"))
	require.NoError(t, err)
	defer store.Close()

	cursor := NewCursor(CursorDeps{Repo: store, Categories: cats})
	ctx := context.Background()

	for run := 0; run < 2*len(cats)+1; run++ {
		peek, err := cursor.Peek(ctx, "alpha")
		require.NoError(t, err)

		order, err := cursor.Advance(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, peek, order)
		assert.Equal(t, cats[run%len(cats)], order[0], "run %d", run)
		// Whatever the run does afterwards, the cursor already moved.
	}

	other, err := cursor.Advance(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, cats[0], other[0])

	require.NoError(t, cursor.Reset(ctx, "alpha"))
	order, err := cursor.Advance(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, cats[0], order[0])
}

type failingRepo struct{}

func (failingRepo) Advance(context.Context, string, int, time.Time) (int, error) {
	return 0, errors.New("disk I/O error")
}

func (failingRepo) Load(context.Context, string) (domain.RotationState, error) {
	return domain.RotationState{NextIndex: 8}, nil
}

func (failingRepo) Reset(context.Context, string, time.Time) error {
	return errors.New("disk I/O error")
}

func TestAdvanceFailureIsDurability(t *testing.T) {
	t.Parallel()

	cursor := NewCursor(CursorDeps{Repo: failingRepo{}, Categories: cats})

	_, err := cursor.Advance(context.Background(), "alpha")
	require.Error(t, err)
	assert.True(t, domain.IsDurability(err))
	assert.True(t, domain.IsDurability(cursor.Reset(context.Background(), "alpha")))

	order, err := cursor.Peek(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, cats[2], order[0], "stored index out of range is taken modulo")
}
