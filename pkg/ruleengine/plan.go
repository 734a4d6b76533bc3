package ruleengine

import (
	"log/slog"
	"sort"
)

// ExecutionPlan is the ordered sequence of groups a pass walks through.
//
// Every rule in group i has its in-set dependencies in groups before i,
// except where forced progress broke a cycle.
type ExecutionPlan struct {
	// ParallelGroups are executed strictly in order. Rules within a group
	// may run concurrently.
	ParallelGroups [][]Rule

	// DependencyMap maps each rule id to its declared dependencies.
	DependencyMap map[string][]string

	// PriorityOrder is every rule, stably sorted by priority ascending.
	PriorityOrder []Rule

	// Forced counts the iterations that had to break a dependency stall.
	Forced int
}

// RuleCount returns the number of rules across all groups.
func (p *ExecutionPlan) RuleCount() int {
	n := 0
	for _, g := range p.ParallelGroups {
		n += len(g)
	}
	return n
}

// PlanSummary is the rule-id view of an ExecutionPlan.
type PlanSummary struct {
	Groups        [][]string          `json:"groups"`
	Dependencies  map[string][]string `json:"dependencies"`
	PriorityOrder []string            `json:"priority_order"`
	Forced        int                 `json:"forced"`
	RuleCount     int                 `json:"rule_count"`
}

// Summary returns the plan with rules replaced by their ids.
func (p *ExecutionPlan) Summary() PlanSummary {
	s := PlanSummary{
		Groups:        make([][]string, len(p.ParallelGroups)),
		Dependencies:  make(map[string][]string, len(p.DependencyMap)),
		PriorityOrder: make([]string, len(p.PriorityOrder)),
		Forced:        p.Forced,
		RuleCount:     p.RuleCount(),
	}
	for i, g := range p.ParallelGroups {
		s.Groups[i] = make([]string, len(g))
		for j, r := range g {
			s.Groups[i][j] = r.ID
		}
	}
	for id, deps := range p.DependencyMap {
		s.Dependencies[id] = append([]string{}, deps...)
	}
	for i, r := range p.PriorityOrder {
		s.PriorityOrder[i] = r.ID
	}
	return s
}

// CreatePlan builds an execution plan for rules. It never mutates rules.
func CreatePlan(rules []Rule) *ExecutionPlan {
	return CreatePlanWithLogger(rules, nil)
}

// CreatePlanWithLogger is CreatePlan with forced-progress warnings sent to logger.
func CreatePlanWithLogger(rules []Rule, logger *slog.Logger) *ExecutionPlan {
	if logger == nil {
		logger = slog.Default()
	}

	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EffectivePriority() < ordered[j].EffectivePriority()
	})

	plan := &ExecutionPlan{
		DependencyMap: make(map[string][]string, len(ordered)),
		PriorityOrder: ordered,
	}

	// Ids not in this set are external and never block a rule.
	known := make(map[string]struct{}, len(ordered))
	for _, r := range ordered {
		known[r.ID] = struct{}{}
		deps := r.Dependencies
		if deps == nil {
			deps = []string{}
		}
		plan.DependencyMap[r.ID] = append([]string(nil), deps...)
	}

	processed := make(map[string]struct{}, len(ordered))
	remaining := make([]int, len(ordered))
	for i := range ordered {
		remaining[i] = i
	}

	for len(remaining) > 0 {
		var group, rest []int
		for _, idx := range remaining {
			if depsSatisfied(ordered[idx], known, processed) {
				group = append(group, idx)
			} else {
				rest = append(rest, idx)
			}
		}

		if len(group) == 0 {
			group, rest = forceProgress(ordered, remaining)
			plan.Forced++

			ids := make([]string, len(group))
			for i, idx := range group {
				ids[i] = ordered[idx].ID
			}
			logger.Warn("circular or unresolvable rule dependencies, forcing progress",
				"admitted", ids,
				"remaining", len(rest),
			)
		}

		rulesInGroup := make([]Rule, len(group))
		for i, idx := range group {
			rulesInGroup[i] = ordered[idx]
			processed[ordered[idx].ID] = struct{}{}
		}
		plan.ParallelGroups = append(plan.ParallelGroups, rulesInGroup)
		remaining = rest
	}

	return plan
}

// depsSatisfied reports whether every in-set dependency of r is processed.
func depsSatisfied(r Rule, known, processed map[string]struct{}) bool {
	for _, dep := range r.Dependencies {
		if _, inSet := known[dep]; !inSet {
			continue
		}
		if _, done := processed[dep]; !done {
			return false
		}
	}
	return true
}

// forceProgress admits the remaining rules with no dependencies at all,
// or, if there are none, the first remaining rule.
func forceProgress(ordered []Rule, remaining []int) (group, rest []int) {
	for _, idx := range remaining {
		if len(ordered[idx].Dependencies) == 0 {
			group = append(group, idx)
		} else {
			rest = append(rest, idx)
		}
	}
	if len(group) > 0 {
		return group, rest
	}
	return remaining[:1], append([]int(nil), remaining[1:]...)
}
