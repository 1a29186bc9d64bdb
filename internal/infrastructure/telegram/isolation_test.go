package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"NewsRelay/internal/approval"
	"NewsRelay/internal/domain"
)

// updateQueue mimics getUpdates offset semantics: polling with an offset confirms and
// drops every earlier update for all clients of the same bot.
type updateQueue struct {
	mu      sync.Mutex
	nextID  int64
	pending map[string][]json.RawMessage
	ids     map[string][]int64
}

func newUpdateQueue(t *testing.T) (*updateQueue, *httptest.Server) {
	t.Helper()
	q := &updateQueue{nextID: 100, pending: map[string][]json.RawMessage{}, ids: map[string][]int64{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/bot"), "/", 2)
		if len(parts) != 2 {
			t.Errorf("unexpected path %s", r.URL.Path)
			return
		}
		token, method := parts[0], parts[1]
		var payload struct {
			Offset int64 `json:"offset"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)

		result := "true"
		switch method {
		case "sendMessage":
			result = `{"message_id": 1}`
		case "getUpdates":
			result = q.poll(token, payload.Offset)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":` + result + `}`))
	}))
	t.Cleanup(srv.Close)
	return q, srv
}

func (q *updateQueue) press(token, data string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	raw := fmt.Sprintf(`{"update_id": %d, "callback_query": {"id": "cb%d", "data": %q}}`, q.nextID, q.nextID, data)
	q.pending[token] = append(q.pending[token], json.RawMessage(raw))
	q.ids[token] = append(q.ids[token], q.nextID)
}

func (q *updateQueue) poll(token string, offset int64) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var keep []json.RawMessage
	var keepIDs []int64
	for i, id := range q.ids[token] {
		if id >= offset {
			keep = append(keep, q.pending[token][i])
			keepIDs = append(keepIDs, id)
		}
	}
	q.pending[token], q.ids[token] = keep, keepIDs
	out, _ := json.Marshal(keep)
	if len(keep) == 0 {
		return "[]"
	}
	return string(out)
}

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func (c *stepClock) sleep(_ context.Context, d time.Duration) error {
	c.t = c.t.Add(d)
	return nil
}

func newInstanceCoordinator(name string, bot *Bot, clk *stepClock) *approval.Coordinator {
	n := 0
	return approval.NewCoordinator(approval.CoordinatorDeps{
		Instance:     name,
		Channel:      bot,
		PollInterval: 10 * time.Second,
		Now:          clk.now,
		Sleep:        clk.sleep,
		NewID: func() string {
			n++
			return fmt.Sprintf("%s-%d", name, n)
		},
	})
}

func TestInstancesWithOwnBotsKeepTheirDecisions(t *testing.T) {
	t.Parallel()

	queue, srv := newUpdateQueue(t)
	clk := &stepClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	alphaBot := NewBot(Config{BotToken: "alpha-token", ChatID: "-1", APIBase: srv.URL})
	betaBot := NewBot(Config{BotToken: "beta-token", ChatID: "-2", APIBase: srv.URL})
	alpha := newInstanceCoordinator("alpha", alphaBot, clk)
	beta := newInstanceCoordinator("beta", betaBot, clk)

	_, err := alpha.Open(ctx, domain.KindNews, []approval.Item{{ArticleID: 3, Content: "alpha item"}}, time.Minute)
	if err != nil {
		t.Fatalf("open alpha: %v", err)
	}
	betaBatch, err := beta.Open(ctx, domain.KindNews, []approval.Item{{ArticleID: 7, Content: "beta item"}}, time.Minute)
	if err != nil {
		t.Fatalf("open beta: %v", err)
	}

	queue.press("beta-token", CallbackData(domain.KindNews, domain.ActionApprove, "beta-2"))

	alphaResults, err := alpha.Await(ctx)
	if err != nil {
		t.Fatalf("await alpha: %v", err)
	}
	for _, res := range alphaResults {
		if res.Defaulted != 1 || len(res.Skipped()) != 1 {
			t.Fatalf("alpha should time out to skip, got %+v", res)
		}
	}

	betaResults, err := beta.Await(ctx)
	if err != nil {
		t.Fatalf("await beta: %v", err)
	}
	res := betaResults[betaBatch.ID]
	if got := res.Approved(); len(got) != 1 || got[0] != 7 || res.Defaulted != 0 {
		t.Fatalf("beta reviewer approval lost: approved=%v defaulted=%d", got, res.Defaulted)
	}
}
