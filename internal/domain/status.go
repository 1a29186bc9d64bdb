package domain

// Status enumerates article lifecycle milestones.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSelected  Status = "selected"
	StatusPublished Status = "published"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusSelected, StatusPublished, StatusSkipped, StatusFailed}

// transitions is the only source of legal status changes.
// {selected, failed} -> pending is the operator requeue path.
var transitions = map[Status][]Status{
	StatusPending:  {StatusSelected},
	StatusSelected: {StatusPublished, StatusFailed, StatusSkipped, StatusPending},
	StatusFailed:   {StatusPending},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an InvalidTransitionError for illegal moves.
func ValidateTransition(articleID int64, from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return &InvalidTransitionError{ArticleID: articleID, From: from, To: to}
}
