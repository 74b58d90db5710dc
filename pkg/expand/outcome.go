package expand

import "fmt"

// Outcome classifies one pagination step
type Outcome int

const (
	// Expanded means the trigger was clicked and new content was requested
	Expanded Outcome = iota
	// NoMoreContent means the trigger is no longer present on the page
	NoMoreContent
	// LookupError means the trigger could not be looked up or clicked
	LookupError
)

func (o Outcome) String() string {
	switch o {
	case Expanded:
		return "expanded"
	case NoMoreContent:
		return "no-more-content"
	case LookupError:
		return "lookup-error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// StepResult is the result of a single pagination step. Err is only set
// for LookupError.
type StepResult struct {
	Outcome Outcome
	Err     error
}

func (r StepResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Outcome, r.Err)
	}
	return r.Outcome.String()
}

// Event is reported to progress observers after every step and once more
// when expansion finishes.
type Event struct {
	Clicks int
	Items  int
	Step   StepResult
	Done   bool
}
