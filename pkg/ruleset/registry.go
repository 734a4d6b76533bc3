package ruleset

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"mercator-hq/ruleflow/pkg/ruleengine"
)

// Provider resolves the rule set for a category and version.
type Provider interface {
	RuleSet(ctx context.Context, category, version string) (*RuleSet, error)
}

// Registry is a thread-safe in-memory store of compiled rule sets keyed by
// category and version. Reload swaps the whole contents atomically.
type Registry struct {
	mu     sync.RWMutex
	sets   map[Key]*RuleSet
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sets:   make(map[Key]*RuleSet),
		logger: logger,
	}
}

// Get returns the rule set for category and version.
func (r *Registry) Get(category, version string) (*RuleSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rs, ok := r.sets[Key{Category: category, Version: version}]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", ErrNotFound, category, version)
	}
	return rs, nil
}

// RuleSet implements Provider.
func (r *Registry) RuleSet(_ context.Context, category, version string) (*RuleSet, error) {
	return r.Get(category, version)
}

// Rules returns a copy of the engine rules for category and version.
func (r *Registry) Rules(category, version string) ([]ruleengine.Rule, error) {
	rs, err := r.Get(category, version)
	if err != nil {
		return nil, err
	}
	return append([]ruleengine.Rule(nil), rs.Rules...), nil
}

// List returns summaries of every registered rule set, ordered by key.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Summary, 0, len(r.sets))
	for _, rs := range r.sets {
		out = append(out, Summary{
			Category:   rs.Category,
			Version:    rs.Version,
			TemplateID: rs.TemplateID,
			RuleCount:  len(rs.Rules),
			Source:     rs.Source,
			LoadedAt:   rs.LoadedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// Len returns the number of registered rule sets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sets)
}

// Register adds or replaces a single rule set.
func (r *Registry) Register(rs *RuleSet) error {
	if rs == nil || rs.Category == "" || rs.Version == "" {
		return fmt.Errorf("rule set must have a category and version")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[rs.Key()] = rs
	return nil
}

// Replace swaps the registry contents for sets. Duplicate keys are rejected
// and leave the registry unchanged.
func (r *Registry) Replace(sets []*RuleSet) error {
	next := make(map[Key]*RuleSet, len(sets))
	for _, rs := range sets {
		if rs == nil {
			continue
		}
		if prev, dup := next[rs.Key()]; dup {
			return fmt.Errorf("duplicate rule set %s in %q and %q", rs.Key(), prev.Source, rs.Source)
		}
		next[rs.Key()] = rs
	}

	r.mu.Lock()
	r.sets = next
	r.mu.Unlock()
	return nil
}

// Reload loads every rule set from source and replaces the registry
// contents. On error the previous contents stay in place.
func (r *Registry) Reload(ctx context.Context, source Source) error {
	sets, err := source.Load(ctx)
	if err != nil {
		r.logger.Error("rule set reload failed, keeping previous rule sets", "error", err)
		return err
	}
	if err := r.Replace(sets); err != nil {
		r.logger.Error("rule set reload failed, keeping previous rule sets", "error", err)
		return err
	}

	r.logger.Info("rule sets loaded", "count", len(sets))
	return nil
}
