package domain

// Outcome classifies a single call to an external provider.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRateLimited
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate-limited"
	default:
		return "failure"
	}
}

// OutcomeFromStatus maps an HTTP status code to an outcome.
func OutcomeFromStatus(code int) Outcome {
	switch {
	case code == 429:
		return OutcomeRateLimited
	case code >= 200 && code < 300:
		return OutcomeSuccess
	default:
		return OutcomeFailure
	}
}
