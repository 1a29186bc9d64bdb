package usecase

import (
	"context"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// memoryWindow layers a dry run's unsaved accepts over the persisted dedup window.
type memoryWindow struct {
	base  ports.DedupWindow
	extra []domain.Article
}

var _ ports.DedupWindow = (*memoryWindow)(nil)

func (w *memoryWindow) add(a domain.Article) {
	w.extra = append(w.extra, a)
}

func (w *memoryWindow) FindByHash(ctx context.Context, instance, day, hash string) (*domain.Article, error) {
	for i := range w.extra {
		a := w.extra[i]
		if a.Instance == instance && a.CreatedDay == day && a.ContentHash == hash {
			return &a, nil
		}
	}
	if w.base == nil {
		return nil, nil
	}
	return w.base.FindByHash(ctx, instance, day, hash)
}

func (w *memoryWindow) WindowVectors(ctx context.Context, instance, day string) ([]domain.ArticleVector, error) {
	var out []domain.ArticleVector
	if w.base != nil {
		base, err := w.base.WindowVectors(ctx, instance, day)
		if err != nil {
			return nil, err
		}
		out = append(out, base...)
	}
	for _, a := range w.extra {
		if a.Instance == instance && a.CreatedDay == day && len(a.Embedding) > 0 {
			out = append(out, domain.ArticleVector{ID: a.ID, Vector: a.Embedding})
		}
	}
	return out, nil
}
