package ruleengine

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinel errors
var (
	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrMalformedRules indicates the rule set handed to ProcessRules is unusable.
	ErrMalformedRules = errors.New("malformed rule set")

	// ErrNilValidator indicates a rule without a validator.
	ErrNilValidator = errors.New("rule has no validator")

	// ErrNilOutcome indicates a validator returned neither an outcome nor an error.
	ErrNilOutcome = errors.New("validator returned no outcome")
)

// TimeoutError indicates a rule exceeded its timeout.
type TimeoutError struct {
	RuleID  string
	Timeout time.Duration
}

// Error returns the error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("rule %s timed out after %dms", e.RuleID, e.Timeout.Milliseconds())
}

// PanicError wraps a value recovered from a panicking validator.
type PanicError struct {
	RuleID string
	Value  any
	Stack  []byte
}

// Error returns the error message.
func (e *PanicError) Error() string {
	return fmt.Sprintf("rule %s panicked: %v", e.RuleID, e.Value)
}

// RuleError indicates a validator returned an error.
type RuleError struct {
	RuleID string
	Cause  error
}

// Error returns the error message.
func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RuleError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
