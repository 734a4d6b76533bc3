package ruleengine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

// SkipReasonDependencyFailed is the skip reason for rules whose dependency failed.
const SkipReasonDependencyFailed = "Dependency failed"

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTracer sets the tracer used for pass, group and rule spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithObserver registers an observer notified after every pass.
func WithObserver(observer PassObserver) Option {
	return func(o *Orchestrator) {
		if observer != nil {
			o.observers = append(o.observers, observer)
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator drives validation passes over rule sets.
//
// One Orchestrator owns one MetricsCollector. It is safe for concurrent use:
// each pass snapshots the configuration when it starts, so UpdateConfig
// never affects a pass already in flight.
type Orchestrator struct {
	mu     sync.RWMutex
	config *Config

	metrics   *MetricsCollector
	logger    *slog.Logger
	tracer    trace.Tracer
	observers []PassObserver
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator. A nil cfg uses DefaultConfig.
func NewOrchestrator(cfg *Config, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := *cfg
	o := &Orchestrator{
		config:  &c,
		metrics: NewMetricsCollector(),
		logger:  logger,
		tracer:  noop.NewTracerProvider().Tracer("ruleflow"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Config returns a copy of the current configuration.
func (o *Orchestrator) Config() Config {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return *o.config
}

// UpdateConfig merges opts onto the current configuration.
// The merged configuration must validate, otherwise nothing changes.
func (o *Orchestrator) UpdateConfig(opts Options) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	merged := opts.Merge(o.config)
	if err := merged.Validate(); err != nil {
		return err
	}
	o.config = merged

	o.logger.Info("engine configuration updated",
		"max_parallel_rules", merged.MaxParallelRules,
		"default_timeout_ms", merged.DefaultTimeout.Milliseconds(),
		"parallelization", merged.EnableParallelization,
		"skip_dependent_on_failure", merged.SkipDependentOnFailure,
		"detailed_metrics", merged.CollectDetailedMetrics,
	)
	return nil
}

// Metrics returns a snapshot of this orchestrator's cross-pass statistics.
func (o *Orchestrator) Metrics() ProcessorMetrics {
	return o.metrics.Metrics()
}

// ResetMetrics zeroes this orchestrator's statistics.
func (o *Orchestrator) ResetMetrics() {
	o.metrics.Reset()
}

// ProcessRules runs one validation pass and returns the verdict.
//
// A nil rules slice is malformed input: nothing is executed and the verdict
// carries a single critical error. An empty, non-nil slice is a valid pass
// with nothing to run.
func (o *Orchestrator) ProcessRules(ctx context.Context, rules []Rule, data any, vctx *ValidationContext) *ValidationResult {
	start := o.now()
	cfg := o.Config()
	passID := uuid.NewString()

	ctx, span := o.tracer.Start(ctx, "ruleflow.process_rules",
		trace.WithAttributes(
			attribute.String("ruleflow.pass_id", passID),
			attribute.Int("ruleflow.rule_count", len(rules)),
			attribute.String("ruleflow.template_id", vctx.TemplateID()),
			attribute.String("ruleflow.template_version", vctx.TemplateVersion()),
		),
	)
	defer span.End()

	logger := o.logger.With("pass_id", passID)

	if rules == nil {
		result := criticalResult(ErrMalformedRules, start, o.now(), vctx)
		result.Metadata.PassID = passID
		span.SetStatus(codes.Error, ErrMalformedRules.Error())
		logger.ErrorContext(ctx, "rejecting malformed rule set", "error", ErrMalformedRules)
		o.notify(ctx, &PassReport{
			PassID:   passID,
			Result:   result,
			Duration: result.Metadata.ValidationTime,
		})
		return result
	}

	plan := CreatePlanWithLogger(rules, logger)
	executor := NewExecutor(cfg.DefaultTimeout, logger)
	executor.now = o.now

	logger.DebugContext(ctx, "starting validation pass",
		"rules", len(rules),
		"groups", len(plan.ParallelGroups),
		"forced", plan.Forced,
	)

	results := make([]RuleExecutionResult, 0, len(rules))
	failed := make(map[string]struct{})
	groups := 0

	for gi, group := range plan.ParallelGroups {
		groupResults := o.runGroup(ctx, gi, group, data, vctx, &cfg, executor, failed)
		for _, r := range groupResults {
			if !r.Skipped && !r.Success {
				failed[r.RuleID] = struct{}{}
			}
		}
		results = append(results, groupResults...)
		groups++
	}

	result := aggregateAt(results, start, o.now(), vctx)
	result.Metadata.PassID = passID

	if cfg.CollectDetailedMetrics {
		o.metrics.update(results, result.Metadata.ValidationTime, groups)
	}

	span.SetAttributes(
		attribute.Bool("ruleflow.valid", result.IsValid),
		attribute.Float64("ruleflow.score", result.Score),
		attribute.Int("ruleflow.rules_executed", result.Metadata.RulesExecuted),
		attribute.Int("ruleflow.rules_skipped", result.Metadata.RulesSkipped),
	)
	if !result.IsValid {
		span.SetStatus(codes.Error, "validation failed")
	}

	logger.InfoContext(ctx, "validation pass complete",
		"valid", result.IsValid,
		"score", result.Score,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
		"rules_executed", result.Metadata.RulesExecuted,
		"rules_skipped", result.Metadata.RulesSkipped,
		"duration_ms", result.Metadata.ValidationTimeMs,
	)

	o.notify(ctx, &PassReport{
		PassID:         passID,
		Result:         result,
		Results:        results,
		GroupsExecuted: groups,
		Duration:       result.Metadata.ValidationTime,
	})

	return result
}

// runGroup applies the skip policy to one group and executes the rest.
// Skipped results come first, then executed results in rule order.
func (o *Orchestrator) runGroup(
	ctx context.Context,
	index int,
	group []Rule,
	data any,
	vctx *ValidationContext,
	cfg *Config,
	executor *Executor,
	failed map[string]struct{},
) []RuleExecutionResult {
	ctx, span := o.tracer.Start(ctx, "ruleflow.group",
		trace.WithAttributes(
			attribute.Int("ruleflow.group_index", index),
			attribute.Int("ruleflow.group_size", len(group)),
		),
	)
	defer span.End()

	results := make([]RuleExecutionResult, 0, len(group))
	executable := make([]Rule, 0, len(group))

	for _, rule := range group {
		if cfg.SkipDependentOnFailure && dependsOnFailed(rule, failed) {
			o.logger.DebugContext(ctx, "skipping rule, dependency failed",
				"rule_id", rule.ID,
				"group_index", index,
			)
			results = append(results, RuleExecutionResult{
				RuleID:     rule.ID,
				Skipped:    true,
				SkipReason: SkipReasonDependencyFailed,
			})
			continue
		}
		executable = append(executable, rule)
	}

	executed := make([]RuleExecutionResult, len(executable))

	if cfg.EnableParallelization && len(executable) > 1 {
		for lo := 0; lo < len(executable); lo += cfg.MaxParallelRules {
			hi := min(lo+cfg.MaxParallelRules, len(executable))

			var g errgroup.Group
			for i := lo; i < hi; i++ {
				g.Go(func() error {
					executed[i] = o.runRule(ctx, executor, executable[i], data, vctx)
					return nil
				})
			}
			// Chunk barrier: the next chunk starts only after this one settles.
			_ = g.Wait()
		}
	} else {
		for i, rule := range executable {
			executed[i] = o.runRule(ctx, executor, rule, data, vctx)
		}
	}

	return append(results, executed...)
}

func (o *Orchestrator) runRule(ctx context.Context, executor *Executor, rule Rule, data any, vctx *ValidationContext) RuleExecutionResult {
	ctx, span := o.tracer.Start(ctx, "ruleflow.rule",
		trace.WithAttributes(
			attribute.String("ruleflow.rule_id", rule.ID),
			attribute.String("ruleflow.rule_type", string(rule.Type)),
		),
	)
	defer span.End()

	r := executor.ExecuteRule(ctx, rule, data, vctx)

	span.SetAttributes(
		attribute.Bool("ruleflow.success", r.Success),
		attribute.Int64("ruleflow.duration_ms", r.ExecutionTimeMs()),
	)
	if r.Err != nil {
		span.RecordError(r.Err)
		span.SetStatus(codes.Error, r.Err.Error())
	}
	return r
}

func (o *Orchestrator) notify(ctx context.Context, report *PassReport) {
	for _, obs := range o.observers {
		obs.ObservePass(ctx, report)
	}
}

func dependsOnFailed(rule Rule, failed map[string]struct{}) bool {
	for _, dep := range rule.Dependencies {
		if _, ok := failed[dep]; ok {
			return true
		}
	}
	return false
}
