package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/ruleflow/pkg/history"
	"mercator-hq/ruleflow/pkg/ruleengine"
	"mercator-hq/ruleflow/pkg/ruleset"
	"mercator-hq/ruleflow/pkg/telemetry/logging"
	"mercator-hq/ruleflow/pkg/telemetry/tracing"
)

// ValidateRequest is the body of POST /v1/rulesets/{category}/{version}/validate.
type ValidateRequest struct {
	Data    any             `json:"data"`
	Context *RequestContext `json:"context,omitempty"`
}

// RequestContext is the wire form of ruleengine.ContextOptions.
type RequestContext struct {
	Request             map[string]any               `json:"request,omitempty"`
	TemplateVariables   map[string]any               `json:"template_variables,omitempty"`
	CulturalConstraints map[string]any               `json:"cultural_constraints,omitempty"`
	UserSignals         map[string]any               `json:"user_signals,omitempty"`
	Attempt             int                          `json:"attempt,omitempty"`
	PreviousErrors      []ruleengine.ValidationError `json:"previous_errors,omitempty"`
	TemplateVersion     string                       `json:"template_version,omitempty"`
}

// Options converts the wire context for rule set rs.
func (c *RequestContext) Options(rs *ruleset.RuleSet) ruleengine.ContextOptions {
	opts := ruleengine.ContextOptions{
		TemplateID:      rs.TemplateID,
		TemplateVersion: rs.Version,
	}
	if c == nil {
		return opts
	}
	opts.Request = c.Request
	opts.TemplateVariables = c.TemplateVariables
	opts.CulturalConstraints = c.CulturalConstraints
	opts.UserSignals = c.UserSignals
	opts.Attempt = c.Attempt
	opts.PreviousErrors = c.PreviousErrors
	if c.TemplateVersion != "" {
		opts.TemplateVersion = c.TemplateVersion
	}
	return opts
}

// RuleSetResponse describes one loaded rule set.
type RuleSetResponse struct {
	ruleset.Summary
	Description string             `json:"description,omitempty"`
	Rules       []ruleset.RuleSpec `json:"rules"`
}

// HistoryResponse is the body of GET /v1/history.
type HistoryResponse struct {
	Records []*history.Record `json:"records"`
	Total   int64             `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
}

func (s *Server) handleListRuleSets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"rulesets": s.deps.RuleSets.List(),
	})
}

func (s *Server) lookupRuleSet(w http.ResponseWriter, r *http.Request) (*ruleset.RuleSet, bool) {
	category := chi.URLParam(r, "category")
	version := chi.URLParam(r, "version")

	rs, err := s.deps.RuleSets.Get(category, version)
	if err != nil {
		if errors.Is(err, ruleset.ErrNotFound) {
			respondError(w, http.StatusNotFound, "rule set not found", err)
		} else {
			respondError(w, http.StatusInternalServerError, "failed to resolve rule set", err)
		}
		return nil, false
	}
	return rs, true
}

func (s *Server) handleGetRuleSet(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.lookupRuleSet(w, r)
	if !ok {
		return
	}
	specs := rs.Specs
	if specs == nil {
		specs = []ruleset.RuleSpec{}
	}
	respondJSON(w, http.StatusOK, RuleSetResponse{
		Summary: ruleset.Summary{
			Category:   rs.Category,
			Version:    rs.Version,
			TemplateID: rs.TemplateID,
			RuleCount:  len(rs.Rules),
			Source:     rs.Source,
			LoadedAt:   rs.LoadedAt,
		},
		Description: rs.Description,
		Rules:       specs,
	})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.lookupRuleSet(w, r)
	if !ok {
		return
	}
	plan := ruleengine.CreatePlanWithLogger(rs.Rules, s.logger)
	respondJSON(w, http.StatusOK, plan.Summary())
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.lookupRuleSet(w, r)
	if !ok {
		return
	}

	var req ValidateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return
		}
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Data == nil {
		respondError(w, http.StatusBadRequest, "data is required", nil)
		return
	}

	ctx := history.WithRuleSet(r.Context(), rs.Category, rs.Version)
	ctx = logging.WithRuleSet(ctx, rs.Key().String())

	vctx := ruleengine.NewValidationContext(req.Context.Options(rs))
	result := s.deps.Engine.ProcessRules(ctx, rs.Rules, req.Data, vctx)

	span := trace.SpanFromContext(r.Context())
	tracing.SetRuleSetAttributes(span, rs.Category, rs.Version, len(rs.Rules))
	tracing.SetVerdictAttributes(span, result)

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleEngineMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Engine.Metrics())
}

func (s *Server) handleResetEngineMetrics(w http.ResponseWriter, r *http.Request) {
	s.deps.Engine.ResetMetrics()
	s.logger.InfoContext(r.Context(), "engine metrics reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		respondError(w, http.StatusNotFound, "history is not enabled", nil)
		return
	}

	q, err := parseHistoryQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid query", err)
		return
	}
	q.ApplyDefaults(s.deps.HistoryQuery.DefaultLimit)
	if err := q.Validate(s.deps.HistoryQuery.MaxLimit); err != nil {
		respondError(w, http.StatusBadRequest, "invalid query", err)
		return
	}

	records, err := s.deps.History.Query(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history query failed", err)
		return
	}
	total, err := s.deps.History.Count(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history count failed", err)
		return
	}

	respondJSON(w, http.StatusOK, HistoryResponse{
		Records: records,
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
	})
}

// parseHistoryQuery reads filters from the URL. Times are RFC 3339.
func parseHistoryQuery(r *http.Request) (*history.Query, error) {
	v := r.URL.Query()
	q := &history.Query{
		Category:  v.Get("category"),
		Version:   v.Get("version"),
		PassID:    v.Get("pass_id"),
		SortOrder: v.Get("order"),
	}

	if s := v.Get("valid"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("valid: %w", err)
		}
		q.Valid = &b
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &q.Since}, {"until", &q.Until}} {
		if s := v.Get(p.name); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.name, err)
			}
			*p.dst = &t
		}
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &q.Limit}, {"offset", &q.Offset}} {
		if s := v.Get(p.name); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.name, err)
			}
			*p.dst = n
		}
	}
	return q, nil
}

func decodeJSON(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}
