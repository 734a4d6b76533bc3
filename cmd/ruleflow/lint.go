package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/ruleflow/pkg/cli"
	"mercator-hq/ruleflow/pkg/ruleengine"
	"mercator-hq/ruleflow/pkg/ruleset"
)

var lintFlags struct {
	rules    string
	strict   bool
	format   string
	progress bool
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate rule-set files",
	Long: `Validate rule-set files without running them.

The lint command loads every rule-set file and checks:
  - YAML syntax and unknown keys
  - Required fields, rule types and severities
  - Duplicate rule ids and duplicate category/version pairs
  - CEL compilation of every expression
  - Dependencies on unknown rule ids (warning)
  - Dependency cycles (warning)

Examples:
  # Lint a single file
  ruleflow lint --rules rules/persona.yaml

  # Lint a directory, warnings as errors
  ruleflow lint --rules rules/ --strict

  # JSON output for CI/CD
  ruleflow lint --rules rules/ --format json`,
	RunE: runLint,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	f := lintCmd.Flags()
	f.StringVarP(&lintFlags.rules, "rules", "r", "", "rule-set file or directory")
	f.BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	f.StringVar(&lintFlags.format, "format", "text", "output format: text, json")
	f.BoolVar(&lintFlags.progress, "progress", false, "show a progress bar on stderr")
}

// LintResult is the lint outcome of one file.
type LintResult struct {
	File     string   `json:"file"`
	RuleSet  string   `json:"ruleset,omitempty"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func runLint(cmd *cobra.Command, args []string) error {
	if lintFlags.rules == "" {
		return cli.NewConfigError("rules", "--rules is required")
	}
	format, err := cli.ParseFormat(lintFlags.format)
	if err != nil {
		return err
	}
	if format == cli.FormatCSV {
		return cli.NewConfigError("format", "lint supports text and json output")
	}

	src, err := ruleset.NewFileSource(lintFlags.rules)
	if err != nil {
		return err
	}
	if _, err := os.Stat(lintFlags.rules); err != nil {
		return cli.NewCommandError("lint", err)
	}
	files, err := src.Files()
	if err != nil {
		return cli.NewCommandError("lint", err)
	}
	if len(files) == 0 {
		return cli.NewCommandError("lint", fmt.Errorf("no rule-set files found in %s", lintFlags.rules))
	}

	var progress cli.ProgressReporter = cli.NoProgress{}
	if lintFlags.progress {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "files")
	}
	progress.Start(int64(len(files)))

	results := make([]LintResult, 0, len(files))
	owners := make(map[string]string)
	for i, file := range files {
		res := lintFile(file, src.Compiler)
		if res.RuleSet != "" {
			if prev, dup := owners[res.RuleSet]; dup {
				res.Errors = append(res.Errors, fmt.Sprintf("duplicate rule set %s, also defined in %s", res.RuleSet, prev))
			} else {
				owners[res.RuleSet] = file
			}
		}
		res.Valid = len(res.Errors) == 0 && (!lintFlags.strict || len(res.Warnings) == 0)
		results = append(results, res)
		progress.Update(int64(i + 1))
	}
	progress.Finish()

	out := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		err = cli.NewFormatter(format).FormatTo(out, results)
	} else {
		err = writeLintText(out, results)
	}
	if err != nil {
		return err
	}

	for _, r := range results {
		if !r.Valid {
			return fmt.Errorf("lint: %w", cli.ErrValidationFailed)
		}
	}
	return nil
}

func lintFile(path string, compiler *ruleset.Compiler) LintResult {
	res := LintResult{File: path}

	rs, err := ruleset.LoadFile(path, compiler)
	if err != nil {
		res.Errors = flattenErrors(err)
		return res
	}
	res.RuleSet = rs.Key().String()

	known := make(map[string]struct{}, len(rs.Rules))
	for _, r := range rs.Rules {
		known[r.ID] = struct{}{}
	}
	for _, r := range rs.Rules {
		for _, dep := range r.Dependencies {
			if _, ok := known[dep]; !ok {
				res.Warnings = append(res.Warnings, fmt.Sprintf("rule %s depends on unknown rule %s", r.ID, dep))
			}
		}
	}

	if plan := ruleengine.CreatePlan(rs.Rules); plan.Forced > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("dependency cycle: %d group(s) formed by forced progress", plan.Forced))
	}
	return res
}

func flattenErrors(err error) []string {
	var list *ruleset.ErrorList
	if errors.As(err, &list) {
		msgs := make([]string, 0, len(list.Errors))
		for _, e := range list.Errors {
			msgs = append(msgs, flattenErrors(e)...)
		}
		return msgs
	}
	return []string{err.Error()}
}

func writeLintText(w io.Writer, results []LintResult) error {
	var b strings.Builder
	failed := 0
	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(&b, "✓ %s", r.File)
		} else {
			failed++
			fmt.Fprintf(&b, "✗ %s", r.File)
		}
		if r.RuleSet != "" {
			fmt.Fprintf(&b, " (%s)", r.RuleSet)
		}
		b.WriteString("\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "    error: %s\n", e)
		}
		for _, warn := range r.Warnings {
			fmt.Fprintf(&b, "    warning: %s\n", warn)
		}
	}
	fmt.Fprintf(&b, "\n%d file(s) checked, %d failed\n", len(results), failed)
	_, err := io.WriteString(w, b.String())
	return err
}
