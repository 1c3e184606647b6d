package harness

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every case matched its expectation on every backend.
	Pass bool `json:"pass"`

	// Cases holds one entry per scenario case, in scenario order.
	Cases []CaseResult `json:"cases"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// CaseResult is what one case resolved and selected.
type CaseResult struct {
	Name string `json:"name"`

	// Expression is the resolved expression in selector.Format notation.
	Expression string `json:"expression,omitempty"`

	// Selected is the in-memory selection, sorted by unique_id.
	Selected []string `json:"selected"`

	// Error is the resolution error, if any.
	Error string `json:"error,omitempty"`

	// Warnings are parser diagnostics logged while resolving.
	Warnings []string `json:"warnings,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Cases:  []CaseResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
