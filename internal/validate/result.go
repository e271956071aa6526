// Package validate is the stateless rule evaluator for catalog entities.
// Validation collects every applicable issue before returning instead of
// stopping at the first failure, so callers can surface complete feedback
// for a record in one pass.
package validate

import "strings"

// Issue is a single field-level finding.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result aggregates the findings for one proposed entity state.
type Result struct {
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// AddError appends an error finding.
func (r *Result) AddError(field, message string) {
	r.Errors = append(r.Errors, Issue{Field: field, Message: message})
}

// AddWarning appends a warning finding. Warnings never make a result invalid.
func (r *Result) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, Issue{Field: field, Message: message})
}

// Valid reports whether the result carries no errors.
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

func (r *Result) String() string {
	if len(r.Errors) == 0 && len(r.Warnings) == 0 {
		return "valid"
	}
	var b strings.Builder
	if len(r.Errors) > 0 {
		b.WriteString("errors:\n")
		for _, e := range r.Errors {
			b.WriteString("  " + e.Field + ": " + e.Message + "\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("warnings:\n")
		for _, w := range r.Warnings {
			b.WriteString("  " + w.Field + ": " + w.Message + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
