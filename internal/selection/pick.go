// Package selection picks a category-diverse set of pending articles for one run.
package selection

import (
	"context"
	"fmt"
	"math"
	"sort"

	"NewsRelay/internal/domain"
)

const (
	DefaultPerRun         = 4
	DefaultTopPerCategory = 25
)

// Source lists pending candidates.
type Source interface {
	Candidates(ctx context.Context, instance string, q domain.CandidateQuery) ([]domain.Article, error)
}

// Options tune one pick.
type Options struct {
	PerRun         int
	TopPerCategory int
	MinScore       float64
	KeepNoise      bool
}

// Pick takes one article per category in rotated order, round after round, until PerRun
// articles are chosen; remaining slots are filled by score from any non-noise category.
func Pick(ctx context.Context, src Source, instance string, order []domain.Category, opts Options) ([]domain.Article, error) {
	if opts.PerRun <= 0 {
		opts.PerRun = DefaultPerRun
	}
	if opts.TopPerCategory <= 0 {
		opts.TopPerCategory = DefaultTopPerCategory
	}

	cats := append([]domain.Category(nil), order...)
	if opts.KeepNoise {
		cats = append(cats, domain.CategoryNoise)
	}

	buckets := make([][]domain.Article, len(cats))
	for i, cat := range cats {
		q := domain.CandidateQuery{Category: cat, MinScore: opts.MinScore, Limit: opts.TopPerCategory}
		if cat == domain.CategoryNoise {
			q.MinScore = -math.MaxFloat64
		}
		pool, err := src.Candidates(ctx, instance, q)
		if err != nil {
			return nil, fmt.Errorf("candidates %s: %w", cat, err)
		}
		buckets[i] = pool
	}

	selected := make([]domain.Article, 0, opts.PerRun)
	seen := make(map[int64]bool)
	take := func(a domain.Article) {
		selected = append(selected, a)
		seen[a.ID] = true
	}

	for len(selected) < opts.PerRun {
		picked := false
		for i := range buckets {
			if len(selected) >= opts.PerRun {
				break
			}
			for len(buckets[i]) > 0 {
				a := buckets[i][0]
				buckets[i] = buckets[i][1:]
				if !seen[a.ID] {
					take(a)
					picked = true
					break
				}
			}
		}
		if !picked {
			break
		}
	}

	if len(selected) < opts.PerRun {
		rest, err := src.Candidates(ctx, instance, domain.CandidateQuery{
			MinScore: opts.MinScore,
			Limit:    len(seen) + opts.PerRun + opts.TopPerCategory,
		})
		if err != nil {
			return nil, fmt.Errorf("fill candidates: %w", err)
		}
		for _, a := range rest {
			if len(selected) >= opts.PerRun {
				break
			}
			if seen[a.ID] || (a.Category == domain.CategoryNoise && !opts.KeepNoise) {
				continue
			}
			take(a)
		}
	}

	return selected, nil
}

// Overlay serves candidates from a base source plus unsaved articles, as a dry run sees them.
type Overlay struct {
	Base  Source
	Extra []domain.Article
}

// Candidates merges base and extra candidates with the same filter and order as the store.
func (o Overlay) Candidates(ctx context.Context, instance string, q domain.CandidateQuery) ([]domain.Article, error) {
	var out []domain.Article
	if o.Base != nil {
		base, err := o.Base.Candidates(ctx, instance, domain.CandidateQuery{Category: q.Category, MinScore: q.MinScore})
		if err != nil {
			return nil, err
		}
		out = append(out, base...)
	}
	for _, a := range o.Extra {
		if a.Status != "" && a.Status != domain.StatusPending {
			continue
		}
		if q.Category != "" && a.Category != q.Category {
			continue
		}
		if a.Score <= q.MinScore {
			continue
		}
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
