package lifecycle

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

var fixed = time.Date(2026, time.May, 4, 7, 0, 0, 0, time.UTC)

func newStore(t *testing.T, path string) (*Store, *sqlite.Store) {
	t.Helper()
	repo, err := sqlite.Open(path)
	require.NoError(t, err)
	return NewStore(StoreDeps{Repo: repo, Now: func() time.Time { return fixed }}), repo
}

func seed(t *testing.T, s *Store, n int) []int64 {
	t.Helper()
	ids := make([]int64, n)
	for i := range ids {
		a := domain.Article{
			Instance:    "alpha",
			ContentHash: string(rune('a' + i)),
			Title:       "headline",
			Category:    "FINANCE",
			Score:       float64(10 - i),
			CreatedDay:  "2026-05-04",
		}
		require.NoError(t, s.Add(context.Background(), &a))
		ids[i] = a.ID
	}
	return ids
}

func TestSelectedIsNeverSelectedAgain(t *testing.T) {
	t.Parallel()
	s, repo := newStore(t, filepath.Join(t.TempDir(), "db.sqlite"))
	defer repo.Close()
	ctx := context.Background()
	ids := seed(t, s, 2)

	require.NoError(t, s.Select(ctx, "alpha", ids[:1]))

	err := s.Select(ctx, "alpha", ids[:1])
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.False(t, domain.IsDurability(err), "integrity errors are not durability errors")

	require.NoError(t, s.Requeue(ctx, "alpha", ids[:1]))
	require.NoError(t, s.Select(ctx, "alpha", ids[:1]))
}

func TestTerminalStatesAndRequeue(t *testing.T) {
	t.Parallel()
	s, repo := newStore(t, filepath.Join(t.TempDir(), "db.sqlite"))
	defer repo.Close()
	ctx := context.Background()
	ids := seed(t, s, 3)

	require.NoError(t, s.Select(ctx, "alpha", ids))
	require.NoError(t, s.MarkPublished(ctx, "alpha", ids[:1]))
	require.NoError(t, s.MarkFailed(ctx, "alpha", ids[1:2]))
	require.NoError(t, s.MarkSkipped(ctx, "alpha", ids[2:]))

	assert.True(t, errors.Is(s.Requeue(ctx, "alpha", ids[:1]), domain.ErrInvalidTransition))
	assert.True(t, errors.Is(s.Requeue(ctx, "alpha", ids[2:]), domain.ErrInvalidTransition))

	requeued, err := s.RequeueStatus(ctx, "alpha", domain.StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, ids[1:2], requeued)

	_, err = s.RequeueStatus(ctx, "alpha", domain.StatusPublished)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	stats, err := s.Status(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ByStatus[domain.StatusPending])
	assert.Equal(t, 1, stats.ByStatus[domain.StatusPublished])
	assert.Equal(t, 1, stats.ByStatus[domain.StatusSkipped])
	assert.Equal(t, 3, stats.ByCategory["FINANCE"])

	got, err := s.Get(ctx, "alpha", ids[:1])
	require.NoError(t, err)
	assert.True(t, fixed.Equal(got[0].DecidedAt))
}

// A crash between the select commit and posting must not let a restarted run
// pick the same articles.
func TestRestartAfterSelectDoesNotReselect(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "db.sqlite")
	ctx := context.Background()

	s, repo := newStore(t, path)
	ids := seed(t, s, 4)

	first, err := s.Candidates(ctx, "alpha", domain.CandidateQuery{Limit: 2})
	require.NoError(t, err)
	picked := []int64{first[0].ID, first[1].ID}
	require.NoError(t, s.Select(ctx, "alpha", picked))
	require.NoError(t, repo.Close())

	restarted, repo2 := newStore(t, path)
	defer repo2.Close()

	second, err := restarted.Candidates(ctx, "alpha", domain.CandidateQuery{Limit: 4})
	require.NoError(t, err)
	require.Len(t, second, 2)
	for _, a := range second {
		assert.NotContains(t, picked, a.ID)
	}
	assert.Equal(t, ids[2:], []int64{second[0].ID, second[1].ID})

	assert.Error(t, restarted.Select(ctx, "alpha", picked))
}

func TestRepositoryFailureIsDurability(t *testing.T) {
	t.Parallel()
	s, repo := newStore(t, filepath.Join(t.TempDir(), "db.sqlite"))
	ids := seed(t, s, 1)
	require.NoError(t, repo.Close())

	err := s.Select(context.Background(), "alpha", ids)
	require.Error(t, err)
	assert.True(t, domain.IsDurability(err))
}
