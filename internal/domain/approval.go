package domain

import "time"

// BatchKind tags an approval batch so callbacks of one kind never apply to another.
type BatchKind string

const (
	KindNews BatchKind = "news"
	KindBlog BatchKind = "blog"
)

// Decision is the resolved verdict for one batch item.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionSkip    Decision = "skip"
)

// Action is a reviewer button press.
type Action string

const (
	ActionApprove    Action = "approve"
	ActionSkip       Action = "skip"
	ActionApproveAll Action = "approve_all"
)

// Valid reports whether a is one of the three reviewer actions.
func (a Action) Valid() bool {
	return a == ActionApprove || a == ActionSkip || a == ActionApproveAll
}

// ApprovalMessage is one reviewable item sent to the approval channel.
type ApprovalMessage struct {
	CorrelationID string
	Kind          BatchKind
	Content       string
	Link          string
}

// DecisionEvent is a reviewer action pulled from the approval channel.
type DecisionEvent struct {
	CorrelationID string
	Kind          BatchKind
	Action        Action
	ReceivedAt    time.Time
}

// DecisionRecord is one row of the approval log.
type DecisionRecord struct {
	Instance  string
	BatchID   string
	Kind      BatchKind
	ArticleID int64
	Decision  Decision
	TimedOut  bool
	DecidedAt time.Time
}
