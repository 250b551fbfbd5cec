package cohort

import (
	"fmt"
	"strings"
)

// Violation is one key-integrity problem found while building a snapshot.
type Violation struct {
	Table  string   `json:"table"`
	Column string   `json:"column"`
	Reason string   `json:"reason"`
	Values []string `json:"values,omitempty"`
}

func (v Violation) String() string {
	if len(v.Values) == 0 {
		return fmt.Sprintf("%s.%s: %s", v.Table, v.Column, v.Reason)
	}
	return fmt.Sprintf("%s.%s: %s: %s", v.Table, v.Column, v.Reason, strings.Join(v.Values, ", "))
}

// DataIntegrityError is returned by Load and Reload when the sources cannot
// be joined into a consistent snapshot. It blocks publication.
type DataIntegrityError struct {
	Violations []Violation
}

func (e *DataIntegrityError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "data integrity: " + strings.Join(parts, "; ")
}

// UnknownFieldError reports a field, trait or series name that does not
// exist in the current snapshot.
type UnknownFieldError struct {
	Kind string // "filter field", "trait", "time series", "variable"...
	Name string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

// InvalidFilterError reports a malformed constraint.
type InvalidFilterError struct {
	Field  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter on %q: %s", e.Field, e.Reason)
}
