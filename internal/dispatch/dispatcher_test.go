package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/platform"
	"NewsRelay/internal/ports"
)

type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
	return nil
}

type scriptedPoster struct {
	name     string
	failures int
	down     bool
	calls    int
}

func (p *scriptedPoster) Name() string { return p.name }

func (p *scriptedPoster) Post(_ context.Context, c domain.PostContent) (domain.PostReceipt, error) {
	p.calls++
	if p.down || p.calls <= p.failures {
		return domain.PostReceipt{}, errors.New("503 service unavailable")
	}
	return domain.PostReceipt{Platform: p.name, PostID: p.name + "-post"}, nil
}

type statusRecorder struct {
	published, failed []int64
}

func (s *statusRecorder) MarkPublished(_ context.Context, _ string, ids []int64) error {
	s.published = append(s.published, ids...)
	return nil
}

func (s *statusRecorder) MarkFailed(_ context.Context, _ string, ids []int64) error {
	s.failed = append(s.failed, ids...)
	return nil
}

type publishLog struct{ records []domain.PublishRecord }

func (l *publishLog) RecordPublish(_ context.Context, r domain.PublishRecord) error {
	l.records = append(l.records, r)
	return nil
}

func newDispatcher(clk *fakeClock, status *statusRecorder, log *publishLog, limits map[string]platform.Limits) *Dispatcher {
	return NewDispatcher(DispatcherDeps{
		Instance: "alpha",
		Status:   status,
		Log:      log,
		Limits:   limits,
		Rand:     func() float64 { return 0.5 },
		Now:      clk.now,
		Sleep:    clk.sleep,
	})
}

var noThrottle = map[string]platform.Limits{
	"telegram": {RetryAttempts: 3, BackoffBase: 2},
	"facebook": {RetryAttempts: 3, BackoffBase: 2},
}

func items(ids ...int64) []domain.PostContent {
	out := make([]domain.PostContent, len(ids))
	for i, id := range ids {
		out[i] = domain.PostContent{ArticleID: id, Text: "post"}
	}
	return out
}

func TestJitteredDelayBetweenPosts(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Date(2026, time.May, 4, 7, 0, 0, 0, time.UTC)}
	status := &statusRecorder{}
	log := &publishLog{}
	d := newDispatcher(clk, status, log, noThrottle)

	tg, fb := &scriptedPoster{name: "telegram"}, &scriptedPoster{name: "facebook"}
	report, err := d.Dispatch(context.Background(), items(1, 2), []ports.Poster{tg, fb})
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{60 * time.Second, 60 * time.Second, 60 * time.Second}, clk.sleeps)
	assert.Equal(t, []int64{1, 2}, status.published)
	assert.Equal(t, 4, report.Posts)
	assert.Len(t, log.records, 4)
}

func TestSecondaryOutageDoesNotBlock(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Now()}
	status := &statusRecorder{}
	log := &publishLog{}
	d := newDispatcher(clk, status, log, noThrottle)

	tg, fb := &scriptedPoster{name: "telegram"}, &scriptedPoster{name: "facebook", down: true}
	report, err := d.Dispatch(context.Background(), items(1, 2), []ports.Poster{tg, fb})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, status.published)
	assert.Equal(t, 2, report.Errors)
	assert.Equal(t, 2, tg.calls)
	assert.Equal(t, 6, fb.calls, "three attempts per article")

	var failed int
	for _, r := range log.records {
		if r.Status == domain.StatusFailed {
			failed++
			assert.Equal(t, "facebook", r.Platform)
		}
	}
	assert.Equal(t, 2, failed)
}

func TestPrimaryFailureMarksFailed(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Now()}
	status := &statusRecorder{}
	d := NewDispatcher(DispatcherDeps{
		Instance: "alpha", Status: status, Limits: noThrottle, Primary: "facebook",
		Rand: func() float64 { return 0 }, Now: clk.now, Sleep: clk.sleep,
	})

	tg, fb := &scriptedPoster{name: "telegram"}, &scriptedPoster{name: "facebook", down: true}
	report, err := d.Dispatch(context.Background(), items(7), []ports.Poster{tg, fb})
	require.NoError(t, err)

	assert.Equal(t, []int64{7}, status.failed)
	assert.Empty(t, status.published)
	assert.Equal(t, []int64{7}, report.Failed)
}

func TestRetryBackoff(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Now()}
	status := &statusRecorder{}
	d := newDispatcher(clk, status, &publishLog{}, noThrottle)

	flaky := &scriptedPoster{name: "telegram", failures: 2}
	_, err := d.Dispatch(context.Background(), items(1), []ports.Poster{flaky})
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, clk.sleeps)
	assert.Equal(t, []int64{1}, status.published)
}

func TestHourlyBudgetSpacesRequests(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Date(2026, time.May, 4, 7, 0, 0, 0, time.UTC)}
	status := &statusRecorder{}
	d := NewDispatcher(DispatcherDeps{
		Instance: "alpha", Status: status,
		Limits:    map[string]platform.Limits{"telegram": {RequestsPerHour: 60, RetryAttempts: 1}},
		DelayBase: -1,
		Now:       clk.now, Sleep: clk.sleep,
	})

	_, err := d.Dispatch(context.Background(), items(1, 2, 3), []ports.Poster{&scriptedPoster{name: "telegram"}})
	require.NoError(t, err)

	var total time.Duration
	for _, s := range clk.sleeps {
		total += s
	}
	assert.Equal(t, 2*time.Minute, total.Round(time.Second))
}

func TestNoPlatformsPublishes(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Now()}
	status := &statusRecorder{}
	d := newDispatcher(clk, status, &publishLog{}, noThrottle)

	_, err := d.Dispatch(context.Background(), items(1), nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, status.published)
}
