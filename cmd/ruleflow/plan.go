package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/ruleflow/pkg/cli"
	"mercator-hq/ruleflow/pkg/ruleengine"
)

var planFlags struct {
	rules  ruleSelector
	format string
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the execution plan of a rule set",
	Long: `Print the dependency groups a rule set runs in.

Rules in one group run concurrently; each group starts after the previous
one finishes. Dependency cycles are broken by forced progress and reported.

Examples:
  ruleflow plan --rules rules/persona.yaml
  ruleflow plan --rules rules/ --category persona --version v2 --format json`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	f := planCmd.Flags()
	f.StringVarP(&planFlags.rules.path, "rules", "r", "", "rule-set file or directory")
	f.StringVar(&planFlags.rules.category, "category", "", "rule-set category")
	f.StringVar(&planFlags.rules.version, "version", "", "rule-set version")
	f.StringVar(&planFlags.format, "format", "text", "output format: text, json")
}

func runPlan(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(planFlags.format)
	if err != nil {
		return err
	}
	rs, err := planFlags.rules.load(cmd.Context())
	if err != nil {
		return cli.NewCommandError("plan", err)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), ruleengine.CreatePlan(rs.Rules).Summary())
}
