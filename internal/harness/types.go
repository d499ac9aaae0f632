package harness

import "github.com/roach88/wholesale/internal/engine"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: counters matched and every
	// assertion held.
	Pass bool `json:"pass"`

	// Summary holds the driver's run counters.
	Summary engine.Summary `json:"summary"`

	// Output is everything the driver wrote to the console.
	Output string `json:"output"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
