package rules

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for rule parsing and matching.
var (
	// ErrInvalidPattern indicates a glob pattern that cannot be compiled.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrValidation indicates a rule file that failed validation.
	ErrValidation = errors.New("rule file validation failed")
)

// Failure is a single validation finding tied to a rule file line.
type Failure struct {
	// Line is the 1-based source line of the offending directive.
	Line int `json:"line"`
	// Message describes the problem.
	Message string `json:"message"`
}

func (f Failure) String() string {
	return fmt.Sprintf("line %d: %s", f.Line, f.Message)
}

// ValidationError aggregates every Failure found in a rule file.
type ValidationError struct {
	Failures []Failure
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("%s:\n  %s", ErrValidation, strings.Join(parts, "\n  "))
}

// Unwrap lets callers test for ErrValidation with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
