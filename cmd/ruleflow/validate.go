package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/ruleflow/pkg/cli"
	"mercator-hq/ruleflow/pkg/ruleengine"
	"mercator-hq/ruleflow/pkg/telemetry/logging"
)

var validateFlags struct {
	rules       ruleSelector
	dataFile    string
	contextFile string
	format      string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a data file against a rule set",
	Long: `Run one validation pass over a JSON data file and print the verdict.

The command exits 0 when the data is valid and 1 when it is not.

Examples:
  # Validate a persona document
  ruleflow validate --rules rules/persona.yaml --data persona.json

  # Pick a rule set from a directory and pass a validation context
  ruleflow validate --rules rules/ --category persona --version v2 \
      --data persona.json --context context.json

  # Read data from stdin, print JSON
  cat persona.json | ruleflow validate --rules rules/persona.yaml --data - --format json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	f := validateCmd.Flags()
	f.StringVarP(&validateFlags.rules.path, "rules", "r", "", "rule-set file or directory")
	f.StringVar(&validateFlags.rules.category, "category", "", "rule-set category")
	f.StringVar(&validateFlags.rules.version, "version", "", "rule-set version")
	f.StringVarP(&validateFlags.dataFile, "data", "d", "", "JSON data file (- for stdin)")
	f.StringVar(&validateFlags.contextFile, "context", "", "JSON validation context file")
	f.StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if validateFlags.dataFile == "" {
		return cli.NewConfigError("data", "--data is required")
	}
	format, err := cli.ParseFormat(validateFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rs, err := validateFlags.rules.load(ctx)
	if err != nil {
		return cli.NewCommandError("validate", err)
	}

	var data any
	if err := readJSONFile(validateFlags.dataFile, cmd.InOrStdin(), &data); err != nil {
		return cli.NewCommandError("validate", err)
	}
	rc, err := readContext(validateFlags.contextFile, cmd.InOrStdin())
	if err != nil {
		return cli.NewCommandError("validate", err)
	}

	orch, err := ruleengine.NewOrchestrator(cfg.Engine.EngineConfig(), logger.With("component", "engine"))
	if err != nil {
		return cli.NewConfigError("engine", err.Error())
	}

	ctx = logging.WithRuleSet(ctx, rs.Key().String())
	result := orch.ProcessRules(ctx, rs.Rules, data, ruleengine.NewValidationContext(rc.Options(rs)))

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.IsValid {
		return fmt.Errorf("%s: %w", rs.Key(), cli.ErrValidationFailed)
	}
	return nil
}
