// Package provider calls external providers in preference order with per-day rate-limit blocks.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"NewsRelay/internal/clock"
	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// Policy decides what a non rate-limit failure does to the chain.
type Policy int

const (
	// FallThrough tries the next provider.
	FallThrough Policy = iota
	// Stop returns ErrProviderFailed so the caller can use its local fallback.
	Stop
)

// Capability names a pipeline stage served by a provider chain.
type Capability struct {
	Name   string
	Policy Policy
}

var (
	Generation     = Capability{Name: "generation", Policy: FallThrough}
	Classification = Capability{Name: "classification", Policy: Stop}
)

// Attempt is the three-way result of invoking one provider.
type Attempt[T any] struct {
	Value   T
	Outcome domain.Outcome
	Err     error
}

// RegistryDeps wires a registry for one instance.
type RegistryDeps struct {
	Instance string
	Blocks   ports.ProviderBlockRepository
	Alerter  ports.Alerter
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

// Registry tracks provider blocks and exhausted capabilities for one instance.
type Registry struct {
	instance string
	blocks   ports.ProviderBlockRepository
	alerter  ports.Alerter
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger

	mu        sync.Mutex
	exhausted map[string]bool
}

// NewRegistry creates a registry.
func NewRegistry(deps RegistryDeps) *Registry {
	r := &Registry{
		instance:  deps.Instance,
		blocks:    deps.Blocks,
		alerter:   deps.Alerter,
		loc:       deps.Location,
		now:       deps.Now,
		logger:    deps.Logger,
		exhausted: make(map[string]bool),
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "provider", "instance", deps.Instance)
	return r
}

// Today returns the instance-local calendar day used for blocks.
func (r *Registry) Today() string {
	return clock.Day(r.now(), r.loc)
}

// BeginRun clears the per-run exhausted markers and prunes stale blocks.
func (r *Registry) BeginRun(ctx context.Context) {
	r.mu.Lock()
	r.exhausted = make(map[string]bool)
	r.mu.Unlock()

	pruned, err := r.blocks.Prune(ctx, r.instance, r.Today())
	if err != nil {
		r.logger.Warn("prune provider blocks", "error", err)
		return
	}
	if pruned > 0 {
		r.logger.Debug("pruned stale provider blocks", "count", pruned)
	}
}

// Blocked returns the providers blocked today.
func (r *Registry) Blocked(ctx context.Context) (map[string]bool, error) {
	return r.blocks.BlockedOn(ctx, r.instance, r.Today())
}

// Exhausted reports whether capability already ran out of providers this run.
func (r *Registry) Exhausted(capability Capability) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exhausted[capability.Name]
}

// Call tries providers in order, skipping those blocked today. A rate-limited provider is
// blocked for the rest of the day before the next one is tried. When none can serve, the
// capability is marked exhausted for the run, one alert is sent and ErrAllProvidersBlocked
// is returned.
func Call[T any](
	ctx context.Context,
	r *Registry,
	capability Capability,
	providers []string,
	invoke func(ctx context.Context, name string) Attempt[T],
) (T, string, error) {
	var zero T

	if r.Exhausted(capability) {
		return zero, "", fmt.Errorf("%s: %w", capability.Name, domain.ErrAllProvidersBlocked)
	}

	day := r.Today()
	blocked, err := r.blocks.BlockedOn(ctx, r.instance, day)
	if err != nil {
		return zero, "", fmt.Errorf("load provider blocks: %w", err)
	}
	if blocked == nil {
		blocked = make(map[string]bool)
	}

	for _, name := range providers {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		if blocked[name] {
			r.logger.Debug("provider blocked today", "capability", capability.Name, "provider", name)
			continue
		}

		attempt := invoke(ctx, name)
		switch attempt.Outcome {
		case domain.OutcomeSuccess:
			return attempt.Value, name, nil

		case domain.OutcomeRateLimited:
			block := domain.ProviderBlock{Instance: r.instance, Provider: name, BlockedDate: day, CreatedAt: r.now()}
			if err := r.blocks.Block(ctx, block); err != nil {
				return zero, name, domain.Durability("record provider block", err)
			}
			blocked[name] = true
			r.logger.Warn("provider rate limited", "capability", capability.Name, "provider", name, "day", day)
			r.alert(ctx, fmt.Sprintf("[%s] provider %s rate limited (%s), blocked for %s", r.instance, name, capability.Name, day))

		default:
			r.logger.Warn("provider failed", "capability", capability.Name, "provider", name, "error", attempt.Err)
			if capability.Policy == Stop {
				return zero, name, fmt.Errorf("%s via %s: %w: %v", capability.Name, name, domain.ErrProviderFailed, attempt.Err)
			}
		}
	}

	r.mu.Lock()
	r.exhausted[capability.Name] = true
	r.mu.Unlock()

	r.alert(ctx, fmt.Sprintf("[%s] %s skipped today: all providers blocked or failed", r.instance, capability.Name))
	return zero, "", fmt.Errorf("%s: %w", capability.Name, domain.ErrAllProvidersBlocked)
}

func (r *Registry) alert(ctx context.Context, message string) {
	if r.alerter == nil {
		return
	}
	if err := r.alerter.Alert(ctx, message); err != nil {
		r.logger.Warn("alert failed", "error", err)
	}
}
