package faults

import (
	"fmt"
	"strings"
)

// DataSourceError marks a reference table that cannot be used: unreadable
// source or missing required columns. Fatal to that directory's load; the
// message carries the missing and found column names for the operator.
type DataSourceError struct {
	Source  string
	Missing []string
	Found   []string
	Err     error
}

func (e *DataSourceError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: missing columns [%s]; found columns [%s]",
			e.Source, strings.Join(e.Missing, ", "), strings.Join(e.Found, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	}
	return e.Source + ": unreadable source"
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// NotFoundError marks a resolution that cannot proceed: unknown incident code
// for a district, or a mandatory alarm-system match that is absent. The
// operator recovers by correcting the input; nothing is retried.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// NotFound builds a NotFoundError from a format string.
func NotFound(format string, args ...any) *NotFoundError {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

// ValidationError marks structurally incomplete caller input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invalid builds a ValidationError from a format string.
func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
