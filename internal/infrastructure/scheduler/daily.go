// Package scheduler triggers jobs at fixed local times of day.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"NewsRelay/internal/ports"
)

// DailyScheduler fires a job at each configured HH:MM in its location.
type DailyScheduler struct {
	slots []time.Duration
	loc   *time.Location
	now   func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*DailyScheduler)(nil)

// NewDailyScheduler parses times like "07:00" and "16:30".
func NewDailyScheduler(times []string, loc *time.Location) (*DailyScheduler, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("no run times configured")
	}
	if loc == nil {
		loc = time.UTC
	}
	slots := make([]time.Duration, 0, len(times))
	for _, t := range times {
		parsed, err := time.Parse("15:04", t)
		if err != nil {
			return nil, fmt.Errorf("parse run time %q: %w", t, err)
		}
		slots = append(slots, time.Duration(parsed.Hour())*time.Hour+time.Duration(parsed.Minute())*time.Minute)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return &DailyScheduler{slots: slots, loc: loc, now: time.Now}, nil
}

// NextRun returns the first slot strictly after from.
func (d *DailyScheduler) NextRun(from time.Time) time.Time {
	local := from.In(d.loc)
	for day := 0; day < 2; day++ {
		y, m, dd := local.AddDate(0, 0, day).Date()
		for _, slot := range d.slots {
			at := time.Date(y, m, dd, int(slot/time.Hour), int(slot%time.Hour/time.Minute), 0, 0, d.loc)
			if at.After(from) {
				return at
			}
		}
	}
	// Unreachable with at least one slot; keeps the loop bounded.
	return from.Add(24 * time.Hour)
}

// Start runs job at every slot until ctx ends or Stop is called. Runs never overlap:
// a slot that passes while a job is running is skipped.
func (d *DailyScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return nil
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})

	stop, done := d.stop, d.done
	go func() {
		defer close(done)
		for {
			next := d.NextRun(d.now())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-timer.C:
				job(next)
			case <-ctx.Done():
				timer.Stop()
				return
			case <-stop:
				timer.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop halts the loop and waits for a running job to return or ctx to end.
func (d *DailyScheduler) Stop(ctx context.Context) error {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
