package ruleset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no rule set matches a category and version.
var ErrNotFound = errors.New("rule set not found")

// LoadError represents an error that occurred while reading a rule-set file.
type LoadError struct {
	// FilePath is the path to the file that failed to load
	FilePath string

	// Message describes the error
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load rule set %q: %s: %v", e.FilePath, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load rule set %q: %s", e.FilePath, e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// ValidationError represents a structural problem in a rule-set definition.
type ValidationError struct {
	// FilePath is the file the definition came from (may be empty)
	FilePath string

	// RuleID is the rule that failed validation (if applicable)
	RuleID string

	// FieldPath is the offending field (e.g., "Rules[0].Expression")
	FieldPath string

	// Message describes the problem
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := []string{"validation error"}
	if e.FilePath != "" {
		parts = append(parts, fmt.Sprintf("in %q", e.FilePath))
	}
	if e.RuleID != "" {
		parts = append(parts, fmt.Sprintf("in rule %q", e.RuleID))
	}
	if e.FieldPath != "" {
		parts = append(parts, fmt.Sprintf("at %s", e.FieldPath))
	}
	parts = append(parts, e.Message)
	return strings.Join(parts, " ")
}

// CompileError represents a CEL expression that failed to compile.
type CompileError struct {
	RuleID     string
	Expression string
	Cause      error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("rule %q: compile error: %v", e.RuleID, e.Cause)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *CompileError) Unwrap() error {
	return e.Cause
}

// ErrorList contains multiple errors from one load or lint run.
type ErrorList struct {
	Errors []error
}

// Error implements the error interface.
func (e *ErrorList) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors occurred:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "  %d. %v\n", i+1, err)
	}
	return sb.String()
}

// Add adds an error to the list.
func (e *ErrorList) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if the list contains any errors.
func (e *ErrorList) HasErrors() bool {
	return len(e.Errors) > 0
}

// ToError returns nil, the single error, or the list itself.
func (e *ErrorList) ToError() error {
	switch len(e.Errors) {
	case 0:
		return nil
	case 1:
		return e.Errors[0]
	default:
		return e
	}
}

// Unwrap returns the contained errors for errors.Is/As.
func (e *ErrorList) Unwrap() []error {
	return e.Errors
}
