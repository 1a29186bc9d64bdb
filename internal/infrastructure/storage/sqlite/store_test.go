package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsRelay/internal/domain"
)

var testTime = time.Date(2026, time.May, 4, 9, 30, 0, 0, time.UTC)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "newsrelay.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func insertArticle(t *testing.T, s *Store, instance, hash string, category domain.Category, score float64) domain.Article {
	t.Helper()
	a := domain.Article{
		Instance:    instance,
		ContentHash: hash,
		Title:       "title " + hash,
		Summary:     "summary " + hash,
		URL:         "https://example.org/" + hash,
		Category:    category,
		Score:       score,
		Embedding:   []float32{1, 0, 0},
		CreatedAt:   testTime,
		CreatedDay:  "2026-05-04",
	}
	require.NoError(t, s.Insert(context.Background(), &a))
	require.NotZero(t, a.ID)
	return a
}

func TestInsertConflictIsScopedToInstance(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()

	insertArticle(t, s, "alpha", "h1", "FINANCE", 5)

	dup := domain.Article{Instance: "alpha", ContentHash: "h1", Title: "again", Category: "FINANCE", CreatedAt: testTime, CreatedDay: "2026-05-04"}
	err := s.Insert(ctx, &dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	insertArticle(t, s, "beta", "h1", "FINANCE", 5)
}

func TestCandidatesOrderAndFilter(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()

	low := insertArticle(t, s, "alpha", "a", "FINANCE", 2)
	high := insertArticle(t, s, "alpha", "b", "FINANCE", 9)
	insertArticle(t, s, "alpha", "c", "WELFARE", 7)
	insertArticle(t, s, "beta", "d", "FINANCE", 10)

	got, err := s.Candidates(ctx, "alpha", domain.CandidateQuery{Category: "FINANCE", MinScore: 0, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, high.ID, got[0].ID)
	assert.Equal(t, low.ID, got[1].ID)
	assert.Equal(t, []float32{1, 0, 0}, got[0].Embedding)

	got, err = s.Candidates(ctx, "alpha", domain.CandidateQuery{MinScore: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2, "score must be strictly above the floor")
}

func TestTransitionIsAllOrNothing(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()

	a := insertArticle(t, s, "alpha", "a", "FINANCE", 5)
	b := insertArticle(t, s, "alpha", "b", "FINANCE", 5)

	require.NoError(t, s.Transition(ctx, "alpha", []int64{a.ID}, domain.StatusSelected, testTime))

	err := s.Transition(ctx, "alpha", []int64{a.ID, b.ID}, domain.StatusSelected, testTime)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	got, err := s.Get(ctx, "alpha", []int64{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSelected, got[0].Status)
	assert.Equal(t, domain.StatusPending, got[1].Status, "rolled back")

	err = s.Transition(ctx, "beta", []int64{a.ID}, domain.StatusPublished, testTime)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "ids are scoped to the instance")
}

func TestSelectionSurvivesReopen(t *testing.T) {
	t.Parallel()
	s, path := openTestStore(t)
	ctx := context.Background()

	a := insertArticle(t, s, "alpha", "a", "FINANCE", 5)
	b := insertArticle(t, s, "alpha", "b", "FINANCE", 4)
	require.NoError(t, s.Transition(ctx, "alpha", []int64{a.ID}, domain.StatusSelected, testTime))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Candidates(ctx, "alpha", domain.CandidateQuery{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)
}

func TestWindowIsDayScoped(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()

	today := insertArticle(t, s, "alpha", "a", "FINANCE", 5)
	old := domain.Article{Instance: "alpha", ContentHash: "old", Title: "x", Category: "FINANCE",
		Embedding: []float32{0, 1}, CreatedAt: testTime.AddDate(0, 0, -1), CreatedDay: "2026-05-03"}
	require.NoError(t, s.Insert(ctx, &old))

	found, err := s.FindByHash(ctx, "alpha", "2026-05-04", "a")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, today.ID, found.ID)

	missing, err := s.FindByHash(ctx, "alpha", "2026-05-04", "old")
	require.NoError(t, err)
	assert.Nil(t, missing)

	vectors, err := s.WindowVectors(ctx, "alpha", "2026-05-04")
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, today.ID, vectors[0].ID)
}

func TestRotationAdvanceAndReset(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		idx, err := s.Advance(ctx, "alpha", 6, testTime)
		require.NoError(t, err)
		assert.Equal(t, i%6, idx)
	}

	state, err := s.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 2, state.NextIndex)
	assert.Equal(t, 8, state.RunCount)

	other, err := s.Load(ctx, "beta")
	require.NoError(t, err)
	assert.Zero(t, other.NextIndex)

	require.NoError(t, s.Reset(ctx, "alpha", testTime))
	idx, err := s.Advance(ctx, "alpha", 6, testTime)
	require.NoError(t, err)
	assert.Zero(t, idx)

	_, err = s.Advance(ctx, "alpha", 0, testTime)
	assert.Error(t, err)
}

func TestProviderBlocks(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()

	block := domain.ProviderBlock{Instance: "alpha", Provider: "gemini", BlockedDate: "2026-05-04", CreatedAt: testTime}
	require.NoError(t, s.Block(ctx, block))
	require.NoError(t, s.Block(ctx, block))
	require.NoError(t, s.Block(ctx, domain.ProviderBlock{Instance: "alpha", Provider: "groq", BlockedDate: "2026-05-03", CreatedAt: testTime}))

	blocked, err := s.BlockedOn(ctx, "alpha", "2026-05-04")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"gemini": true}, blocked)

	pruned, err := s.Prune(ctx, "alpha", "2026-05-04")
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}

func TestLogsAndCheckpoints(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordDecisions(ctx, []domain.DecisionRecord{
		{Instance: "alpha", BatchID: "b1", Kind: domain.KindNews, ArticleID: 1, Decision: domain.DecisionApprove, DecidedAt: testTime},
		{Instance: "alpha", BatchID: "b1", Kind: domain.KindNews, ArticleID: 2, Decision: domain.DecisionSkip, TimedOut: true, DecidedAt: testTime},
	}))
	decisions, err := s.Decisions(ctx, "alpha", "b1")
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.True(t, decisions[1].TimedOut)

	require.NoError(t, s.RecordPublish(ctx, domain.PublishRecord{Instance: "alpha", ArticleID: 1, Platform: "telegram", PostID: "42", Status: domain.StatusPublished, CreatedAt: testTime}))
	history, err := s.PublishHistory(ctx, "alpha", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "42", history[0].PostID)

	value, err := s.LoadCheckpoint(ctx, "alpha", "telegram_offset")
	require.NoError(t, err)
	assert.Zero(t, value)
	require.NoError(t, s.SaveCheckpoint(ctx, "alpha", "telegram_offset", 10))
	require.NoError(t, s.SaveCheckpoint(ctx, "alpha", "telegram_offset", 11))
	value, err = s.LoadCheckpoint(ctx, "alpha", "telegram_offset")
	require.NoError(t, err)
	assert.Equal(t, int64(11), value)
}

func TestStats(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()

	a := insertArticle(t, s, "alpha", "a", "FINANCE", 5)
	insertArticle(t, s, "alpha", "b", "WELFARE", 5)
	require.NoError(t, s.Transition(ctx, "alpha", []int64{a.ID}, domain.StatusSelected, testTime))
	_, err := s.Advance(ctx, "alpha", 6, testTime)
	require.NoError(t, err)

	stats, err := s.Stats(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[domain.StatusSelected])
	assert.Equal(t, 1, stats.ByCategory["WELFARE"])
	assert.Equal(t, 1, stats.Rotation.NextIndex)
}
