package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestNextRun(t *testing.T) {
	t.Parallel()

	ist := time.FixedZone("IST", 5*3600+1800)
	s, err := NewDailyScheduler([]string{"19:00", "07:00", "16:30", "10:00", "13:00"}, ist)
	if err != nil {
		t.Fatalf("NewDailyScheduler: %v", err)
	}

	cases := []struct {
		from time.Time
		want time.Time
	}{
		{time.Date(2026, 10, 18, 6, 0, 0, 0, ist), time.Date(2026, 10, 18, 7, 0, 0, 0, ist)},
		{time.Date(2026, 10, 18, 7, 0, 0, 0, ist), time.Date(2026, 10, 18, 10, 0, 0, 0, ist)},
		{time.Date(2026, 10, 18, 14, 0, 0, 0, ist), time.Date(2026, 10, 18, 16, 30, 0, 0, ist)},
		{time.Date(2026, 10, 18, 19, 0, 1, 0, ist), time.Date(2026, 10, 19, 7, 0, 0, 0, ist)},
		{time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 18, 7, 0, 0, 0, ist)},
	}
	for _, tc := range cases {
		if got := s.NextRun(tc.from); !got.Equal(tc.want) {
			t.Fatalf("NextRun(%s) = %s, want %s", tc.from, got, tc.want)
		}
	}
}

func TestNewDailyScheduler_BadTime(t *testing.T) {
	t.Parallel()

	if _, err := NewDailyScheduler([]string{"7pm"}, nil); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := NewDailyScheduler(nil, nil); err == nil {
		t.Fatalf("expected error for empty schedule")
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	s, err := NewDailyScheduler([]string{"00:00"}, time.UTC)
	if err != nil {
		t.Fatalf("NewDailyScheduler: %v", err)
	}
	if err := s.Start(context.Background(), func(time.Time) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
