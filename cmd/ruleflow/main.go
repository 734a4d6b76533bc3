// Ruleflow runs dependency-ordered validation rules over structured data.
//
// Rule sets are YAML files of CEL rules. The engine orders rules by their
// dependencies and priority, runs independent rules concurrently, skips
// rules whose dependencies failed and aggregates one verdict per pass.
//
// Usage:
//
//	# Serve the HTTP API
//	ruleflow serve --config config.yaml
//
//	# Validate a data file against a rule set
//	ruleflow validate --rules rules/persona.yaml --data persona.json
//
//	# Show the execution plan of a rule set
//	ruleflow plan --rules rules/persona.yaml
//
//	# Lint every rule set under a directory
//	ruleflow lint --rules rules/
//
//	# Query recorded verdicts
//	ruleflow history query --category persona --since 2026-10-01T00:00:00Z
package main

func main() {
	Execute()
}
