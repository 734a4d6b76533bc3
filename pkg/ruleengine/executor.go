package ruleengine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Executor runs a single rule under a timeout guard.
//
// ExecuteRule never panics and never returns an error: every failure mode is
// captured into the returned RuleExecutionResult.
type Executor struct {
	defaultTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// NewExecutor creates a rule executor. A non-positive defaultTimeout falls
// back to DefaultRuleTimeout.
func NewExecutor(defaultTimeout time.Duration, logger *slog.Logger) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultRuleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		defaultTimeout: defaultTimeout,
		logger:         logger,
		now:            time.Now,
	}
}

// DefaultTimeout returns the timeout applied to rules without their own.
func (e *Executor) DefaultTimeout() time.Duration {
	return e.defaultTimeout
}

type validatorReturn struct {
	outcome *ValidationOutcome
	err     error
}

// ExecuteRule invokes rule.Validator and races it against the rule's timeout.
//
// When the timer wins the validator goroutine is abandoned: its context is
// cancelled but it may keep running until it returns on its own.
func (e *Executor) ExecuteRule(ctx context.Context, rule Rule, data any, vctx *ValidationContext) RuleExecutionResult {
	start := e.now()
	result := RuleExecutionResult{RuleID: rule.ID}

	if rule.Validator == nil {
		result.Err = &RuleError{RuleID: rule.ID, Cause: ErrNilValidator}
		result.ExecutionTime = e.now().Sub(start)
		return result
	}

	timeout := rule.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	ruleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so an abandoned validator can still complete its send.
	done := make(chan validatorReturn, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- validatorReturn{err: &PanicError{
					RuleID: rule.ID,
					Value:  r,
					Stack:  debug.Stack(),
				}}
			}
		}()
		outcome, err := rule.Validator.Validate(ruleCtx, data, vctx)
		done <- validatorReturn{outcome: outcome, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ret := <-done:
		switch {
		case ret.err != nil:
			if pe, isPanic := ret.err.(*PanicError); isPanic {
				result.Err = pe
				e.logger.Error("rule validator panicked",
					"rule_id", rule.ID,
					"panic", fmt.Sprint(pe.Value),
				)
			} else {
				result.Err = &RuleError{RuleID: rule.ID, Cause: ret.err}
			}
		case ret.outcome == nil:
			result.Err = &RuleError{RuleID: rule.ID, Cause: ErrNilOutcome}
		default:
			result.Success = true
			result.Outcome = ret.outcome
		}

	case <-timer.C:
		result.Err = &TimeoutError{RuleID: rule.ID, Timeout: timeout}
		e.logger.Warn("rule timed out, abandoning validator",
			"rule_id", rule.ID,
			"timeout_ms", timeout.Milliseconds(),
		)

	case <-ctx.Done():
		result.Err = &RuleError{RuleID: rule.ID, Cause: ctx.Err()}
	}

	result.ExecutionTime = e.now().Sub(start)
	return result
}
