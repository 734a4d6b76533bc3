package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"mercator-hq/ruleflow/pkg/cli"
	"mercator-hq/ruleflow/pkg/ruleset"
	"mercator-hq/ruleflow/pkg/server"
)

// ruleSelector picks one rule set out of a file or directory.
type ruleSelector struct {
	path     string
	category string
	version  string
}

// load loads every rule set under s.path and returns the one matching
// category and version. Both may be empty when exactly one set matches.
func (s ruleSelector) load(ctx context.Context) (*ruleset.RuleSet, error) {
	if s.path == "" {
		return nil, cli.NewConfigError("rules", "--rules is required")
	}
	src, err := ruleset.NewFileSource(s.path)
	if err != nil {
		return nil, err
	}
	sets, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*ruleset.RuleSet
	for _, rs := range sets {
		if s.category != "" && rs.Category != s.category {
			continue
		}
		if s.version != "" && rs.Version != s.version {
			continue
		}
		matched = append(matched, rs)
	}

	switch len(matched) {
	case 1:
		return matched[0], nil
	case 0:
		return nil, fmt.Errorf("no rule set matches category %q version %q in %s", s.category, s.version, s.path)
	default:
		return nil, cli.NewConfigError("rules",
			fmt.Sprintf("%d rule sets found in %s, select one with --category and --version", len(matched), s.path))
	}
}

// readJSONFile decodes path into v. "-" reads stdin.
func readJSONFile(path string, stdin io.Reader, v any) error {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// readContext loads an optional validation context file. It shares the
// wire form of the HTTP validate endpoint.
func readContext(path string, stdin io.Reader) (*server.RequestContext, error) {
	if path == "" {
		return nil, nil
	}
	var rc server.RequestContext
	if err := readJSONFile(path, stdin, &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}
