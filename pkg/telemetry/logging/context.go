package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Context keys for common log fields.
type contextKey string

const (
	// PassIDKey is the context key for validation pass ids.
	PassIDKey contextKey = "pass_id"

	// RuleSetKey is the context key for the rule set ("category@version").
	RuleSetKey contextKey = "ruleset"

	// RequestIDKey is the context key for HTTP request ids.
	RequestIDKey contextKey = "request_id"
)

// WithPassID adds a pass id to the context.
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, PassIDKey, passID)
}

// GetPassID retrieves the pass id from the context.
func GetPassID(ctx context.Context) string {
	if v, ok := ctx.Value(PassIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRuleSet adds a rule-set identifier to the context.
func WithRuleSet(ctx context.Context, ruleset string) context.Context {
	return context.WithValue(ctx, RuleSetKey, ruleset)
}

// GetRuleSet retrieves the rule-set identifier from the context.
func GetRuleSet(ctx context.Context) string {
	if v, ok := ctx.Value(RuleSetKey).(string); ok {
		return v
	}
	return ""
}

// WithRequestID adds a request id to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// extractContextFields returns the log attributes carried by ctx,
// including the active OpenTelemetry trace and span ids.
func extractContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if v := GetRequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(string(RequestIDKey), v))
	}
	if v := GetPassID(ctx); v != "" {
		attrs = append(attrs, slog.String(string(PassIDKey), v))
	}
	if v := GetRuleSet(ctx); v != "" {
		attrs = append(attrs, slog.String(string(RuleSetKey), v))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}

// ContextHandler decorates records with fields from the record's context.
type ContextHandler struct {
	next slog.Handler
}

// NewContextHandler wraps next.
func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := extractContextFields(ctx); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}
