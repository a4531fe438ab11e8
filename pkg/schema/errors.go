package schema

import (
	"errors"
	"fmt"
)

// ValidationError represents a single item that failed validation or import.
type ValidationError struct {
	Key    string // Item or field name
	Reason string // Human-readable reason for failure
	Value  any    // The value that failed validation
	Hint   string // Optional suggestion, e.g. a close match for a misspelled reference
	Err    error  // Optional underlying error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("field %q: %s", e.Key, e.Reason)
	if e.Value != nil {
		msg = fmt.Sprintf("%s (got %T)", msg, e.Value)
	}
	if e.Hint != "" {
		msg = fmt.Sprintf("%s; did you mean %q?", msg, e.Hint)
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// Collect returns nil when errs is empty and an AggregateError otherwise.
func Collect(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &AggregateError{Errors: errs}
}

// ValidationErrors returns all validation errors if err is an AggregateError.
// Otherwise returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}
