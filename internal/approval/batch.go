package approval

import (
	"time"

	"NewsRelay/internal/domain"
)

// Item is one reviewable entry of a batch.
type Item struct {
	ArticleID int64
	Content   string
	Link      string
}

// Batch is the transient state of one approval round.
type Batch struct {
	ID        string
	Kind      domain.BatchKind
	Items     []Item
	CreatedAt time.Time
	TimeoutAt time.Time

	sent      map[int64]bool
	decisions map[int64]domain.Decision
}

func newBatch(id string, kind domain.BatchKind, items []Item, created time.Time, timeout time.Duration) *Batch {
	return &Batch{
		ID:        id,
		Kind:      kind,
		Items:     append([]Item(nil), items...),
		CreatedAt: created,
		TimeoutAt: created.Add(timeout),
		sent:      make(map[int64]bool, len(items)),
		decisions: make(map[int64]domain.Decision, len(items)),
	}
}

// decide records the first decision for an item; later ones are ignored.
func (b *Batch) decide(articleID int64, action domain.Action) bool {
	if _, done := b.decisions[articleID]; done {
		return false
	}

	switch action {
	case domain.ActionApprove:
		b.decisions[articleID] = domain.DecisionApprove
	case domain.ActionSkip:
		b.decisions[articleID] = domain.DecisionSkip
	case domain.ActionApproveAll:
		b.decisions[articleID] = domain.DecisionApprove
		for _, item := range b.Items {
			if _, done := b.decisions[item.ArticleID]; !done && b.sent[item.ArticleID] {
				b.decisions[item.ArticleID] = domain.DecisionApprove
			}
		}
	default:
		return false
	}
	return true
}

func (b *Batch) complete() bool {
	return len(b.decisions) == len(b.Items)
}

// Resolution is the final decision set of a batch.
type Resolution struct {
	BatchID    string
	Kind       domain.BatchKind
	Items      []Item
	Decisions  map[int64]domain.Decision
	Defaulted  int
	ResolvedAt time.Time
}

// TimedOut reports whether the timeout policy decided at least one item.
func (r Resolution) TimedOut() bool {
	return r.Defaulted > 0
}

// Approved returns approved article ids in batch order.
func (r Resolution) Approved() []int64 {
	return r.with(domain.DecisionApprove)
}

// Skipped returns skipped article ids in batch order.
func (r Resolution) Skipped() []int64 {
	return r.with(domain.DecisionSkip)
}

func (r Resolution) with(decision domain.Decision) []int64 {
	var ids []int64
	for _, item := range r.Items {
		if r.Decisions[item.ArticleID] == decision {
			ids = append(ids, item.ArticleID)
		}
	}
	return ids
}
