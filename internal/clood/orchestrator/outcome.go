package orchestrator

// Outcome is the result of a terminal session operation.
type Outcome int

const (
	OutcomeMerged Outcome = iota
	OutcomeNoChanges
	OutcomeDiscarded
	OutcomeReverted
	OutcomeClosed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMerged:
		return "merged"
	case OutcomeNoChanges:
		return "no_changes"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeReverted:
		return "reverted"
	case OutcomeClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Message returns a sentence describing the outcome to a user.
func (o Outcome) Message() string {
	switch o {
	case OutcomeMerged:
		return "Changes merged successfully."
	case OutcomeNoChanges:
		return "No changes to merge."
	case OutcomeDiscarded:
		return "Changes discarded."
	case OutcomeReverted:
		return "Changes reverted successfully. Returned to original state."
	case OutcomeClosed:
		return "Session closed. No changes were applied."
	default:
		return ""
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result is the response to a terminal operation.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
}

func resultOf(o Outcome) *Result {
	return &Result{Outcome: o, Message: o.Message()}
}
