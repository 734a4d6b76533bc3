/*
Package cli provides helpers shared by the ruleflow commands.

Output Formatting:

Results are rendered as text, JSON or (for history records) CSV:

	format, err := cli.ParseFormat(flagValue)
	if err := cli.NewFormatter(format).FormatTo(os.Stdout, result); err != nil {
		return err
	}

Exit Codes:

ExitCode maps the error a command returns to the process exit status.
Wrapping ErrValidationFailed exits 1, a ConfigError exits 2, any other
error exits 3.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
