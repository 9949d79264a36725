package harness

import (
	"github.com/dlaw/fixpoint/internal/planner"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every expectation matched.
	Pass bool `json:"pass"`

	// Trace is the evaluation transcript for evaluation scenarios.
	// Nil for rejection scenarios and when evaluation errored.
	Trace *planner.Trace `json:"trace,omitempty"`

	// Diagnostics are the generation diagnostics the unit produced.
	// Empty for units that planned cleanly.
	Diagnostics []planner.Diagnostic `json:"diagnostics,omitempty"`

	// Errors contains expectation failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
