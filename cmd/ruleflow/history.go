package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/ruleflow/pkg/cli"
	"mercator-hq/ruleflow/pkg/config"
	"mercator-hq/ruleflow/pkg/history"
	"mercator-hq/ruleflow/pkg/history/retention"
	"mercator-hq/ruleflow/pkg/history/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query and prune recorded verdicts",
	Long: `Inspect the verdict history recorded by "ruleflow serve".

History must use the sqlite backend to be shared between the server and
this command.`,
}

var historyQueryFlags struct {
	category string
	version  string
	passID   string
	valid    string
	since    string
	until    string
	limit    int
	offset   int
	order    string
	format   string
}

var historyQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List recorded verdicts",
	Long: `List recorded verdicts, newest first.

Examples:
  # Last 20 failing persona verdicts
  ruleflow history query --category persona --valid false --limit 20

  # Export a day as CSV
  ruleflow history query --since 2026-10-01T00:00:00Z --until 2026-10-02T00:00:00Z --format csv`,
	RunE: runHistoryQuery,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy now",
	Long: `Delete records older than history.retention.days and beyond
history.retention.max_records. Records are archived to
history.retention.archive_path first when it is set.`,
	RunE: runHistoryPrune,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyQueryCmd, historyPruneCmd)

	f := historyQueryCmd.Flags()
	f.StringVar(&historyQueryFlags.category, "category", "", "filter by rule-set category")
	f.StringVar(&historyQueryFlags.version, "version", "", "filter by rule-set version")
	f.StringVar(&historyQueryFlags.passID, "pass-id", "", "filter by pass id")
	f.StringVar(&historyQueryFlags.valid, "valid", "", "filter by verdict (true, false)")
	f.StringVar(&historyQueryFlags.since, "since", "", "only records at or after this RFC3339 time")
	f.StringVar(&historyQueryFlags.until, "until", "", "only records before this RFC3339 time")
	f.IntVar(&historyQueryFlags.limit, "limit", 0, "maximum records (default history.query.default_limit)")
	f.IntVar(&historyQueryFlags.offset, "offset", 0, "records to skip")
	f.StringVar(&historyQueryFlags.order, "order", history.SortDesc, "sort order: asc, desc")
	f.StringVar(&historyQueryFlags.format, "format", "text", "output format: text, json, csv")
}

// buildHistoryQuery converts the query flags. Limits follow qc.
func buildHistoryQuery(qc config.QueryConfig) (*history.Query, error) {
	q := &history.Query{
		Category:  historyQueryFlags.category,
		Version:   historyQueryFlags.version,
		PassID:    historyQueryFlags.passID,
		Limit:     historyQueryFlags.limit,
		Offset:    historyQueryFlags.offset,
		SortOrder: historyQueryFlags.order,
	}
	if historyQueryFlags.valid != "" {
		v, err := strconv.ParseBool(historyQueryFlags.valid)
		if err != nil {
			return nil, cli.NewConfigError("valid", fmt.Sprintf("invalid boolean %q", historyQueryFlags.valid))
		}
		q.Valid = &v
	}
	for _, tf := range []struct {
		name string
		raw  string
		dst  **time.Time
	}{
		{"since", historyQueryFlags.since, &q.Since},
		{"until", historyQueryFlags.until, &q.Until},
	} {
		if tf.raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, tf.raw)
		if err != nil {
			return nil, cli.NewConfigError(tf.name, fmt.Sprintf("invalid RFC3339 time %q", tf.raw))
		}
		*tf.dst = history.TimePtr(t)
	}

	q.ApplyDefaults(qc.DefaultLimit)
	if err := q.Validate(qc.MaxLimit); err != nil {
		return nil, cli.NewConfigError("query", err.Error())
	}
	return q, nil
}

func runHistoryQuery(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(historyQueryFlags.format)
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
	q, err := buildHistoryQuery(cfg.History.Query)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.History, logger)
	if err != nil {
		return cli.NewCommandError("history query", err)
	}
	defer store.Close()

	records, err := store.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("history query", err)
	}
	if records == nil {
		records = []*history.Record{}
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), records)
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.History, logger)
	if err != nil {
		return cli.NewCommandError("history prune", err)
	}
	defer store.Close()

	res, err := retention.NewPruner(store, cfg.History.Retention, logger).Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("history prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d record(s) (%d by age, %d by count, %d archived)\n",
		res.Total(), res.ByAge, res.ByCount, res.Archived)
	return nil
}
