// Package ruleset loads validation rule sets from YAML and compiles each
// rule's CEL expression into a ruleengine.Validator.
//
// # File Format
//
//	category: persona
//	version: v1
//	template_id: persona-card
//	rules:
//	  - id: name-present
//	    type: required
//	    field: name
//	    required: true
//	    expression: value != ""
//	    message: name must not be empty
//	  - id: age-range
//	    type: range
//	    field: age
//	    expression: value >= 18 && value <= 120
//	    dependencies: [name-present]
//	    priority: 10
//	    timeout: 250ms
//	  - id: bio-quality
//	    type: quality
//	    expression: double(size(data.bio)) / 200.0
//	    pass_score: 0.4
//	    severity: warning
//
// A bool result maps to score 1 or 0. A numeric result is clamped to [0,1]
// and passes when it reaches pass_score (default 0.5). Warning-severity
// rules report warnings and never invalidate the verdict.
//
// # Registry
//
// Registry holds compiled rule sets keyed by (category, version). Reload
// swaps the whole set atomically and keeps the previous contents when any
// file fails to load.
package ruleset
