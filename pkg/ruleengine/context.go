package ruleengine

// ContextOptions is the input for NewValidationContext.
type ContextOptions struct {
	// Request is the original request descriptor.
	Request map[string]any

	// TemplateVariables are the variables the template was rendered with.
	TemplateVariables map[string]any

	// CulturalConstraints restrict acceptable values (locale, taboos, ...).
	CulturalConstraints map[string]any

	// UserSignals carry user preferences and feedback.
	UserSignals map[string]any

	// Attempt is the current generation attempt, starting at 1.
	Attempt int

	// PreviousErrors are the errors accumulated by prior attempts.
	PreviousErrors []ValidationError

	// TemplateID and TemplateVersion identify the rule set in the verdict metadata.
	TemplateID      string
	TemplateVersion string
}

// ValidationContext is shared by reference across every rule in a pass.
//
// It is immutable: NewValidationContext deep-copies its input, and the
// accessors return copies, so concurrently running validators cannot
// observe each other's writes.
type ValidationContext struct {
	request     map[string]any
	variables   map[string]any
	constraints map[string]any
	signals     map[string]any
	attempt     int
	previous    []ValidationError
	templateID  string
	templateVer string
}

// NewValidationContext builds an immutable context from opts.
func NewValidationContext(opts ContextOptions) *ValidationContext {
	return &ValidationContext{
		request:     copyMap(opts.Request),
		variables:   copyMap(opts.TemplateVariables),
		constraints: copyMap(opts.CulturalConstraints),
		signals:     copyMap(opts.UserSignals),
		attempt:     opts.Attempt,
		previous:    append([]ValidationError(nil), opts.PreviousErrors...),
		templateID:  opts.TemplateID,
		templateVer: opts.TemplateVersion,
	}
}

// Request returns a copy of the original request descriptor.
func (c *ValidationContext) Request() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	return copyMap(c.request)
}

// TemplateVariables returns a copy of the template variables.
func (c *ValidationContext) TemplateVariables() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	return copyMap(c.variables)
}

// CulturalConstraints returns a copy of the cultural constraints.
func (c *ValidationContext) CulturalConstraints() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	return copyMap(c.constraints)
}

// UserSignals returns a copy of the user signals.
func (c *ValidationContext) UserSignals() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	return copyMap(c.signals)
}

// Attempt returns the current generation attempt number.
func (c *ValidationContext) Attempt() int {
	if c == nil {
		return 0
	}
	return c.attempt
}

// PreviousErrors returns a copy of the errors from prior attempts.
func (c *ValidationContext) PreviousErrors() []ValidationError {
	if c == nil {
		return nil
	}
	return append([]ValidationError(nil), c.previous...)
}

// TemplateID returns the id of the template being validated.
func (c *ValidationContext) TemplateID() string {
	if c == nil {
		return ""
	}
	return c.templateID
}

// TemplateVersion returns the version of the template being validated.
func (c *ValidationContext) TemplateVersion() string {
	if c == nil {
		return ""
	}
	return c.templateVer
}

// copyMap deep-copies nested maps and slices; other values are shared.
func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
