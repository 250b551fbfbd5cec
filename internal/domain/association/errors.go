package association

import (
	"fmt"
	"strings"
)

// Failure kinds embedded in results.
const (
	KindInsufficientData    = "insufficient_data"
	KindUnsupportedMethod   = "unsupported_method"
	KindControlsUnsupported = "control_variables_unsupported"
	KindFit                 = "fit_error"
)

// pairError is an error scoped to one (outcome, variable) pair. It is
// recorded in that pair's result and never aborts the run.
type pairError interface {
	error
	kind() string
}

// InvalidRequestError rejects a whole request before any pair is evaluated.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid analysis request: " + e.Reason
}

type InsufficientDataError struct {
	N        int
	Required int
	Reason   string
}

func (e *InsufficientDataError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("insufficient data: %s (n=%d)", e.Reason, e.N)
	}
	return fmt.Sprintf("insufficient data: %d complete observations, need at least %d", e.N, e.Required)
}

func (e *InsufficientDataError) kind() string { return KindInsufficientData }

type UnsupportedMethodError struct {
	Method Method
	Reason string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("%s not applicable: %s", e.Method, e.Reason)
}

func (e *UnsupportedMethodError) kind() string { return KindUnsupportedMethod }

type ControlVariablesUnsupportedError struct {
	Method   Method
	Controls []string
}

func (e *ControlVariablesUnsupportedError) Error() string {
	return fmt.Sprintf("%s does not accept control variables (%s)", e.Method, strings.Join(e.Controls, ", "))
}

func (e *ControlVariablesUnsupportedError) kind() string { return KindControlsUnsupported }

// FitError reports a model that could not be estimated, such as a singular
// design or a logistic fit that did not converge.
type FitError struct {
	Reason string
	Err    error
}

func (e *FitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fit failed: %s: %v", e.Reason, e.Err)
	}
	return "fit failed: " + e.Reason
}

func (e *FitError) Unwrap() error { return e.Err }

func (e *FitError) kind() string { return KindFit }
