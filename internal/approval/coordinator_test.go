package approval

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsRelay/internal/domain"
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

type fakeChannel struct {
	sent     []domain.ApprovalMessage
	failSend map[int]bool
	polls    int
	pollErr  func(n int) error
	onPoll   func(n int, ch *fakeChannel) []domain.DecisionEvent
	since    []int64
}

func (f *fakeChannel) SendApproval(_ context.Context, msg domain.ApprovalMessage) error {
	n := len(f.sent)
	f.sent = append(f.sent, msg)
	if f.failSend[n] {
		return errors.New("telegram: 502 bad gateway")
	}
	return nil
}

func (f *fakeChannel) PollDecisions(_ context.Context, since int64) ([]domain.DecisionEvent, int64, error) {
	f.polls++
	f.since = append(f.since, since)
	if f.pollErr != nil {
		if err := f.pollErr(f.polls); err != nil {
			return nil, since, err
		}
	}
	if f.onPoll == nil {
		return nil, since, nil
	}
	events := f.onPoll(f.polls, f)
	return events, since + int64(len(events)), nil
}

func (f *fakeChannel) event(i int, action domain.Action) domain.DecisionEvent {
	return domain.DecisionEvent{CorrelationID: f.sent[i].CorrelationID, Kind: f.sent[i].Kind, Action: action}
}

type memLog struct {
	records []domain.DecisionRecord
	err     error
}

func (m *memLog) RecordDecisions(_ context.Context, records []domain.DecisionRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, records...)
	return nil
}

type memCheckpoints struct{ values map[string]int64 }

func (m *memCheckpoints) LoadCheckpoint(_ context.Context, instance, name string) (int64, error) {
	return m.values[instance+"/"+name], nil
}

func (m *memCheckpoints) SaveCheckpoint(_ context.Context, instance, name string, v int64) error {
	m.values[instance+"/"+name] = v
	return nil
}

type recordingAlerter struct{ messages []string }

func (a *recordingAlerter) Alert(_ context.Context, msg string) error {
	a.messages = append(a.messages, msg)
	return nil
}

type harness struct {
	clock  *fakeClock
	ch     *fakeChannel
	log    *memLog
	cp     *memCheckpoints
	alerts *recordingAlerter
	coord  *Coordinator
}

func newHarness(autoApprove bool, withChannel bool) *harness {
	h := &harness{
		clock:  &fakeClock{t: time.Date(2026, time.May, 4, 7, 0, 0, 0, time.UTC)},
		ch:     &fakeChannel{failSend: map[int]bool{}},
		log:    &memLog{},
		cp:     &memCheckpoints{values: map[string]int64{}},
		alerts: &recordingAlerter{},
	}
	seq := 0
	deps := CoordinatorDeps{
		Instance:     "alpha",
		Checkpoints:  h.cp,
		Log:          h.log,
		Alerter:      h.alerts,
		AutoApprove:  autoApprove,
		SendDelay:    DefaultSendDelay,
		PollInterval: DefaultPollInterval,
		Now:          h.clock.now,
		Sleep:        h.clock.sleep,
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	}
	if withChannel {
		deps.Channel = h.ch
	}
	h.coord = NewCoordinator(deps)
	return h
}

func items(n int) []Item {
	out := make([]Item, n)
	for i := range out {
		out[i] = Item{ArticleID: int64(i + 1), Content: fmt.Sprintf("item %d", i+1)}
	}
	return out
}

func TestOpenSpacesMessages(t *testing.T) {
	t.Parallel()
	h := newHarness(false, true)

	batch, err := h.coord.Open(context.Background(), domain.KindNews, items(3), 0)
	require.NoError(t, err)
	require.Len(t, h.ch.sent, 3)
	assert.Equal(t, []time.Duration{DefaultSendDelay, DefaultSendDelay}, h.clock.sleeps)
	assert.Equal(t, h.clock.t.Add(DefaultNewsTimeout), batch.TimeoutAt)

	ids := map[string]bool{}
	for _, msg := range h.ch.sent {
		assert.Equal(t, domain.KindNews, msg.Kind)
		ids[msg.CorrelationID] = true
	}
	assert.Len(t, ids, 3)
}

func TestApproveAllRemaining(t *testing.T) {
	t.Parallel()
	h := newHarness(false, true)
	h.ch.onPoll = func(n int, ch *fakeChannel) []domain.DecisionEvent {
		if n == 2 {
			return []domain.DecisionEvent{ch.event(2, domain.ActionApproveAll)}
		}
		return nil
	}

	_, err := h.coord.Open(context.Background(), domain.KindNews, items(5), 300*time.Second)
	require.NoError(t, err)

	results, err := h.coord.Await(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	for _, res := range results {
		assert.Equal(t, []int64{1, 2, 3, 4, 5}, res.Approved())
		assert.Zero(t, res.Defaulted)
	}
	assert.Equal(t, 2, h.ch.polls, "resolved as soon as every item had a decision")
	assert.Empty(t, h.alerts.messages)
	assert.Len(t, h.log.records, 5)
}

func TestFirstDecisionWins(t *testing.T) {
	t.Parallel()
	h := newHarness(false, true)
	h.ch.onPoll = func(n int, ch *fakeChannel) []domain.DecisionEvent {
		if n == 1 {
			return []domain.DecisionEvent{
				ch.event(0, domain.ActionSkip),
				ch.event(0, domain.ActionApprove),
				ch.event(1, domain.ActionApproveAll),
			}
		}
		return nil
	}

	_, err := h.coord.Open(context.Background(), domain.KindNews, items(3), 0)
	require.NoError(t, err)
	results, err := h.coord.Await(context.Background())
	require.NoError(t, err)

	for _, res := range results {
		assert.Equal(t, []int64{1}, res.Skipped())
		assert.Equal(t, []int64{2, 3}, res.Approved())
	}
}

func TestTimeoutDefaultsToSkip(t *testing.T) {
	t.Parallel()
	h := newHarness(false, true)

	batch, err := h.coord.Open(context.Background(), domain.KindNews, items(3), 300*time.Second)
	require.NoError(t, err)
	opened := h.clock.t

	results, err := h.coord.Await(context.Background())
	require.NoError(t, err)

	res := results[batch.ID]
	assert.Equal(t, []int64{1, 2, 3}, res.Skipped())
	assert.Empty(t, res.Approved())
	assert.Equal(t, 3, res.Defaulted)
	assert.Equal(t, 300*time.Second, res.ResolvedAt.Sub(opened))
	assert.Equal(t, 11, h.ch.polls, "one poll per 30s wake, none busy")
	for _, d := range h.clock.sleeps[2:] {
		assert.Equal(t, DefaultPollInterval, d)
	}
	require.Len(t, h.alerts.messages, 1)
	assert.Contains(t, h.alerts.messages[0], "defaulted to skip")
	for _, r := range h.log.records {
		assert.True(t, r.TimedOut)
	}
}

func TestTimeoutWithAutoApprove(t *testing.T) {
	t.Parallel()
	h := newHarness(true, true)
	h.ch.onPoll = func(n int, ch *fakeChannel) []domain.DecisionEvent {
		if n == 1 {
			return []domain.DecisionEvent{ch.event(0, domain.ActionSkip)}
		}
		return nil
	}

	batch, err := h.coord.Open(context.Background(), domain.KindNews, items(3), 0)
	require.NoError(t, err)
	results, err := h.coord.Await(context.Background())
	require.NoError(t, err)

	res := results[batch.ID]
	assert.Equal(t, []int64{1}, res.Skipped())
	assert.Equal(t, []int64{2, 3}, res.Approved())
	assert.Equal(t, 2, res.Defaulted)
}

func TestSharedLoopKeepsKindsApart(t *testing.T) {
	t.Parallel()
	h := newHarness(false, true)

	news, err := h.coord.Open(context.Background(), domain.KindNews, items(2), 300*time.Second)
	require.NoError(t, err)
	blog, err := h.coord.Open(context.Background(), domain.KindBlog, items(2), 600*time.Second)
	require.NoError(t, err)

	h.ch.onPoll = func(n int, ch *fakeChannel) []domain.DecisionEvent {
		if n != 1 {
			return nil
		}
		forged := ch.event(0, domain.ActionApprove)
		forged.Kind = domain.KindBlog
		return []domain.DecisionEvent{
			forged,
			ch.event(2, domain.ActionApproveAll),
		}
	}

	results, err := h.coord.Await(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, []int64{1, 2}, results[blog.ID].Approved())
	assert.Equal(t, []int64{1, 2}, results[news.ID].Skipped(), "blog callbacks never apply to news")
	assert.Equal(t, 2, results[news.ID].Defaulted)
	assert.Zero(t, h.coord.Pending())
}

func TestSendFailureFallsToTimeout(t *testing.T) {
	t.Parallel()
	h := newHarness(false, true)
	h.ch.failSend[1] = true
	h.ch.onPoll = func(n int, ch *fakeChannel) []domain.DecisionEvent {
		if n == 1 {
			return []domain.DecisionEvent{ch.event(0, domain.ActionApproveAll)}
		}
		return nil
	}

	batch, err := h.coord.Open(context.Background(), domain.KindNews, items(3), 60*time.Second)
	require.NoError(t, err)
	results, err := h.coord.Await(context.Background())
	require.NoError(t, err)

	res := results[batch.ID]
	assert.Equal(t, []int64{1, 3}, res.Approved())
	assert.Equal(t, []int64{2}, res.Skipped())
	assert.Equal(t, 1, res.Defaulted)
	assert.Equal(t, batch.TimeoutAt, res.ResolvedAt)
}

func TestPollOutageDoesNotExtendTimeout(t *testing.T) {
	t.Parallel()
	h := newHarness(false, true)
	h.ch.pollErr = func(int) error { return errors.New("connection refused") }

	batch, err := h.coord.Open(context.Background(), domain.KindNews, items(1), 90*time.Second)
	require.NoError(t, err)
	results, err := h.coord.Await(context.Background())
	require.NoError(t, err)

	assert.Equal(t, batch.TimeoutAt, results[batch.ID].ResolvedAt)
	assert.Equal(t, 4, h.ch.polls)
}

func TestCheckpointPersisted(t *testing.T) {
	t.Parallel()
	h := newHarness(false, true)
	h.cp.values["alpha/"+checkpointName] = 40
	h.ch.onPoll = func(n int, ch *fakeChannel) []domain.DecisionEvent {
		return []domain.DecisionEvent{ch.event(0, domain.ActionApprove)}
	}

	_, err := h.coord.Open(context.Background(), domain.KindNews, items(1), 0)
	require.NoError(t, err)
	_, err = h.coord.Await(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{40}, h.ch.since)
	assert.Equal(t, int64(41), h.cp.values["alpha/"+checkpointName])
}

func TestNoChannelResolvesByPolicy(t *testing.T) {
	t.Parallel()
	h := newHarness(true, false)

	batch, err := h.coord.Open(context.Background(), domain.KindNews, items(2), 0)
	require.NoError(t, err)
	results, err := h.coord.Await(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, results[batch.ID].Approved())
	assert.Empty(t, h.clock.sleeps)
	assert.Empty(t, h.alerts.messages)
}

func TestDecisionLogFailureIsDurability(t *testing.T) {
	t.Parallel()
	h := newHarness(false, false)
	h.log.err = errors.New("disk full")

	_, err := h.coord.Open(context.Background(), domain.KindNews, items(1), 0)
	require.NoError(t, err)
	_, err = h.coord.Await(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsDurability(err))
}
