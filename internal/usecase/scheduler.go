package usecase

import (
	"context"
	"log/slog"
	"time"

	"NewsRelay/internal/ports"
)

// Runner is the part of the pipeline a scheduled job drives.
type Runner interface {
	Run(ctx context.Context, opts RunOptions) (RunReport, error)
}

// Scheduler wires the daily driver with live pipeline runs.
type Scheduler struct {
	driver ports.Scheduler
	runner Runner
	opts   RunOptions
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring live runs.
func NewScheduler(driver ports.Scheduler, runner Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		driver: driver,
		runner: runner,
		opts:   RunOptions{Live: true},
		logger: logger.With("component", "scheduler"),
	}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.logger.Info("scheduled run", "trigger", trigger.Format(time.RFC3339))
		if _, err := s.runner.Run(ctx, s.opts); err != nil {
			s.logger.Error("scheduled run failed", "trigger", trigger.Format(time.RFC3339), "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
