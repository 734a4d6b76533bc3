package ruleengine

import (
	"context"
	"time"
)

// RuleType classifies what a rule checks. The engine does not branch on it;
// it is carried through for reporting.
type RuleType string

const (
	// RuleTypeRequired checks that a field is present.
	RuleTypeRequired RuleType = "required"

	// RuleTypeFormat checks the shape of a value (pattern, length, enum).
	RuleTypeFormat RuleType = "format"

	// RuleTypeRange checks numeric bounds.
	RuleTypeRange RuleType = "range"

	// RuleTypeConsistency checks relationships between fields.
	RuleTypeConsistency RuleType = "consistency"

	// RuleTypeCultural checks values against cultural constraints in the context.
	RuleTypeCultural RuleType = "cultural"

	// RuleTypeQuality produces a graded quality score.
	RuleTypeQuality RuleType = "quality"

	// RuleTypeCustom is anything else.
	RuleTypeCustom RuleType = "custom"
)

// Severity determines whether a rule's findings are errors or warnings.
type Severity string

const (
	// SeverityError findings make the verdict invalid.
	SeverityError Severity = "error"

	// SeverityWarning findings are reported but never affect validity.
	SeverityWarning Severity = "warning"
)

// DefaultPriority is used for rules that do not set a priority.
// Lower values run earlier.
const DefaultPriority = 100

// Validator checks a data object and reports an outcome.
//
// Implementations must treat data and vctx as read-only and should be free
// of side effects: a validator may be abandoned by the executor after a
// timeout and keep running in the background. Long-running validators
// should return when ctx is done.
type Validator interface {
	Validate(ctx context.Context, data any, vctx *ValidationContext) (*ValidationOutcome, error)
}

// ValidatorFunc adapts a plain function to the Validator interface.
type ValidatorFunc func(ctx context.Context, data any, vctx *ValidationContext) (*ValidationOutcome, error)

// Validate calls f(ctx, data, vctx).
func (f ValidatorFunc) Validate(ctx context.Context, data any, vctx *ValidationContext) (*ValidationOutcome, error) {
	return f(ctx, data, vctx)
}

// Rule is a single named unit of validation logic.
type Rule struct {
	// ID identifies the rule within a rule set. Uniqueness is assumed, not enforced.
	ID string

	// Type classifies the rule (required, format, range, ...).
	Type RuleType

	// Field is the data field the rule inspects, if any.
	Field string

	// Validator performs the check.
	Validator Validator

	// Severity of the findings this rule reports.
	Severity Severity

	// Message is the human-readable description of the rule.
	Message string

	// Required marks the validated field as mandatory.
	Required bool

	// Priority orders rules before dependency grouping. Lower runs earlier.
	// nil means DefaultPriority.
	Priority *int

	// Dependencies lists rule ids that must run (and succeed, when
	// SkipDependentOnFailure is enabled) before this rule.
	Dependencies []string

	// Timeout bounds the validator. Zero uses the processor default.
	Timeout time.Duration
}

// EffectivePriority returns the rule's priority or DefaultPriority.
func (r Rule) EffectivePriority() int {
	if r.Priority == nil {
		return DefaultPriority
	}
	return *r.Priority
}

// PriorityOf returns a pointer to p, for use in Rule literals.
func PriorityOf(p int) *int {
	return &p
}

// ValidationError is a finding that invalidates the verdict.
type ValidationError struct {
	ID       string   `json:"id"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code,omitempty"`
}

// ValidationWarning is a finding that is reported but does not affect validity.
type ValidationWarning struct {
	ID         string `json:"id"`
	Field      string `json:"field,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ValidationOutcome is what a validator returns.
type ValidationOutcome struct {
	IsValid  bool                `json:"is_valid"`
	Errors   []ValidationError   `json:"errors"`
	Warnings []ValidationWarning `json:"warnings"`

	// Score is expected in [0,1].
	Score float64 `json:"score"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// RuleExecutionResult records one rule's run within a pass.
// It is created once and never mutated afterwards.
type RuleExecutionResult struct {
	// RuleID is the id of the executed (or skipped) rule.
	RuleID string

	// Success is true when the validator returned an outcome in time.
	Success bool

	// Outcome is the validator's outcome (only when Success is true).
	Outcome *ValidationOutcome

	// Err is the captured failure (validator error, panic or timeout).
	Err error

	// ExecutionTime is the wall-clock time spent on the rule.
	ExecutionTime time.Duration

	// Skipped is true when the rule was never invoked.
	Skipped bool

	// SkipReason explains why the rule was skipped.
	SkipReason string
}

// ExecutionTimeMs returns ExecutionTime in whole milliseconds.
func (r RuleExecutionResult) ExecutionTimeMs() int64 {
	return r.ExecutionTime.Milliseconds()
}

// TimedOut reports whether the rule failed because it exceeded its timeout.
func (r RuleExecutionResult) TimedOut() bool {
	return IsTimeout(r.Err)
}

// ResultMetadata describes how a verdict was produced.
type ResultMetadata struct {
	RulesExecuted    int           `json:"rules_executed"`
	RulesSkipped     int           `json:"rules_skipped"`
	ValidationTime   time.Duration `json:"-"`
	ValidationTimeMs int64         `json:"validation_time_ms"`
	Timestamp        time.Time     `json:"timestamp"`
	TemplateID       string        `json:"template_id,omitempty"`
	TemplateVersion  string        `json:"template_version,omitempty"`
	PassID           string        `json:"pass_id,omitempty"`
}

// ValidationResult is the single verdict of a pass.
type ValidationResult struct {
	IsValid  bool                `json:"is_valid"`
	Errors   []ValidationError   `json:"errors"`
	Warnings []ValidationWarning `json:"warnings"`
	Score    float64             `json:"score"`
	Metadata ResultMetadata      `json:"metadata"`
}

// PassReport is handed to observers after each pass.
type PassReport struct {
	// PassID identifies the pass (also in Result.Metadata.PassID).
	PassID string

	// Result is the aggregated verdict.
	Result *ValidationResult

	// Results are the per-rule results in execution order.
	Results []RuleExecutionResult

	// GroupsExecuted is the number of plan groups walked.
	GroupsExecuted int

	// Duration is the total wall-clock time of the pass.
	Duration time.Duration
}

// PassObserver receives a report after every completed pass.
// Observers are called synchronously on the caller's goroutine and must
// not block; hand work off to a buffer if needed.
type PassObserver interface {
	ObservePass(ctx context.Context, report *PassReport)
}

// PassObserverFunc adapts a function to PassObserver.
type PassObserverFunc func(ctx context.Context, report *PassReport)

// ObservePass calls f(ctx, report).
func (f PassObserverFunc) ObservePass(ctx context.Context, report *PassReport) {
	f(ctx, report)
}
