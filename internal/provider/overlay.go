package provider

import (
	"context"
	"sync"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// overlayBlocks reads persisted blocks but keeps new ones in memory.
type overlayBlocks struct {
	base ports.ProviderBlockRepository

	mu    sync.Mutex
	added []domain.ProviderBlock
}

func (o *overlayBlocks) Block(_ context.Context, block domain.ProviderBlock) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.added = append(o.added, block)
	return nil
}

func (o *overlayBlocks) BlockedOn(ctx context.Context, instance, day string) (map[string]bool, error) {
	blocked, err := o.base.BlockedOn(ctx, instance, day)
	if err != nil {
		return nil, err
	}
	if blocked == nil {
		blocked = make(map[string]bool)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, b := range o.added {
		if b.Instance == instance && b.BlockedDate == day {
			blocked[b.Provider] = true
		}
	}
	return blocked, nil
}

func (o *overlayBlocks) Prune(context.Context, string, string) (int64, error) {
	return 0, nil
}

// DryRun returns a registry that sees today's persisted blocks but never writes or alerts.
func (r *Registry) DryRun() *Registry {
	return &Registry{
		instance:  r.instance,
		blocks:    &overlayBlocks{base: r.blocks},
		loc:       r.loc,
		now:       r.now,
		logger:    r.logger.With("dry_run", true),
		exhausted: make(map[string]bool),
	}
}
