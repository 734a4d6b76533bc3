package ruleset

import (
	"time"

	"mercator-hq/ruleflow/pkg/ruleengine"
)

// File is the on-disk YAML form of a rule set.
type File struct {
	Category    string     `yaml:"category" json:"category" validate:"required"`
	Version     string     `yaml:"version" json:"version" validate:"required"`
	TemplateID  string     `yaml:"template_id,omitempty" json:"template_id,omitempty"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Rules       []RuleSpec `yaml:"rules" json:"rules" validate:"required,min=1,dive"`
}

// RuleSpec is one rule definition in a rule-set file.
type RuleSpec struct {
	ID   string `yaml:"id" json:"id" validate:"required"`
	Type string `yaml:"type,omitempty" json:"type,omitempty" validate:"omitempty,oneof=required format range consistency cultural quality custom"`

	// Field is a dotted path into the data object, exposed to the
	// expression as `value`.
	Field string `yaml:"field,omitempty" json:"field,omitempty"`

	// Expression is a CEL expression returning bool, int or double.
	Expression string `yaml:"expression" json:"expression" validate:"required"`

	Severity   string `yaml:"severity,omitempty" json:"severity,omitempty" validate:"omitempty,oneof=error warning"`
	Message    string `yaml:"message,omitempty" json:"message,omitempty"`
	Code       string `yaml:"code,omitempty" json:"code,omitempty"`
	Suggestion string `yaml:"suggestion,omitempty" json:"suggestion,omitempty"`
	Required   bool   `yaml:"required,omitempty" json:"required,omitempty"`

	Priority     *int          `yaml:"priority,omitempty" json:"priority,omitempty"`
	Dependencies []string      `yaml:"dependencies,omitempty" json:"dependencies,omitempty" validate:"dive,required"`
	Timeout      time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" validate:"gte=0"`

	// PassScore is the minimum numeric result treated as valid (default 0.5).
	PassScore *float64 `yaml:"pass_score,omitempty" json:"pass_score,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// RuleSet is a compiled rule set ready for the engine.
type RuleSet struct {
	Category    string
	Version     string
	TemplateID  string
	Description string
	Rules       []ruleengine.Rule

	// Specs are the definitions the rules were compiled from.
	Specs []RuleSpec

	// Source is the file the rule set was loaded from, if any.
	Source   string
	LoadedAt time.Time
}

// Key identifies a rule set in a Registry.
type Key struct {
	Category string
	Version  string
}

// String returns "category@version".
func (k Key) String() string {
	return k.Category + "@" + k.Version
}

// Key returns the registry key of rs.
func (rs *RuleSet) Key() Key {
	return Key{Category: rs.Category, Version: rs.Version}
}

// Summary is the listing form of a rule set.
type Summary struct {
	Category   string    `json:"category"`
	Version    string    `json:"version"`
	TemplateID string    `json:"template_id,omitempty"`
	RuleCount  int       `json:"rule_count"`
	Source     string    `json:"source,omitempty"`
	LoadedAt   time.Time `json:"loaded_at"`
}
