package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"mercator-hq/ruleflow/pkg/cli"
	"mercator-hq/ruleflow/pkg/config"
	"mercator-hq/ruleflow/pkg/history"
	"mercator-hq/ruleflow/pkg/history/recorder"
	"mercator-hq/ruleflow/pkg/history/retention"
	"mercator-hq/ruleflow/pkg/history/storage"
	"mercator-hq/ruleflow/pkg/ruleengine"
	"mercator-hq/ruleflow/pkg/ruleset"
	"mercator-hq/ruleflow/pkg/server"
	"mercator-hq/ruleflow/pkg/telemetry/health"
	"mercator-hq/ruleflow/pkg/telemetry/metrics"
	"mercator-hq/ruleflow/pkg/telemetry/tracing"
	"mercator-hq/ruleflow/pkg/watch"
)

var serveFlags struct {
	listenAddress string
	rulesPath     string
	watch         bool
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ruleflow HTTP API",
	Long: `Start the ruleflow HTTP API with the specified configuration.

The server loads every rule set under rulesets.path and validates data
posted to /v1/rulesets/{category}/{version}/validate. SIGHUP reloads the
configuration file and the rule sets.

Examples:
  # Start with default config
  ruleflow serve

  # Start with custom config, reloading rule sets on change
  ruleflow serve --config /etc/ruleflow/config.yaml --watch

  # Override listen address
  ruleflow serve --listen 0.0.0.0:8080

  # Validate config and rule sets without starting the server
  ruleflow serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	f.StringVarP(&serveFlags.rulesPath, "rules", "r", "", "override rule-set path")
	f.BoolVar(&serveFlags.watch, "watch", false, "reload rule sets when files change")
	f.BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config and rule sets without starting the server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.rulesPath != "" {
		cfg.RuleSets.Path = serveFlags.rulesPath
	}
	if serveFlags.watch {
		cfg.RuleSets.Watch = true
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	registry := ruleset.NewRegistry(logger.With("component", "ruleset"))
	src, err := ruleset.NewFileSource(cfg.RuleSets.Path)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	src.SkipHidden = cfg.RuleSets.SkipHiddenFiles()

	if serveFlags.dryRun {
		if err := registry.Reload(ctx, src); err != nil {
			return cli.NewCommandError("serve", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid\n✓ %d rule set(s) loaded\n", registry.Len())
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ruleflow v%s\n", Version)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("serve", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	reloadRuleSets := func() error {
		err := registry.Reload(ctx, src)
		collector.RecordReload(err, registry.Len())
		return err
	}
	if err := reloadRuleSets(); err != nil {
		logger.Warn("initial rule set load failed, serving without rule sets", "path", cfg.RuleSets.Path, "error", err)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Rule sets loaded (%d)\n", registry.Len())
	}

	checker := health.New(0)
	checker.RegisterCheck("rulesets", health.NonEmptyCheck(registry, "rule sets"))

	opts := []ruleengine.Option{
		ruleengine.WithTracer(tracer.Tracer()),
		ruleengine.WithObserver(collector),
	}

	var store history.Storage
	if cfg.History.Enabled {
		store, err = storage.Open(cfg.History, logger)
		if err != nil {
			return cli.NewCommandError("serve", fmt.Errorf("failed to open history storage: %w", err))
		}
		defer store.Close()

		rec := recorder.New(store, recorder.Config{
			AsyncBuffer:  cfg.History.Recorder.AsyncBuffer,
			WriteTimeout: cfg.History.Recorder.WriteTimeout,
		}, logger)
		defer rec.Close()
		opts = append(opts, ruleengine.WithObserver(rec))

		scheduler := retention.NewScheduler(
			retention.NewPruner(store, cfg.History.Retention, logger),
			cfg.History.Retention.PruneSchedule,
			logger,
		)
		if err := scheduler.Start(ctx); err != nil {
			logger.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer scheduler.Stop()
			if next := scheduler.NextRun(); next != nil {
				logger.Debug("history retention scheduler started", "next_run", next)
			}
		}

		checker.RegisterCheck("history", health.PingCheck(store))
		fmt.Fprintf(cmd.OutOrStdout(), "✓ History store initialized (%s)\n", cfg.History.Backend)
	}

	orch, err := ruleengine.NewOrchestrator(cfg.Engine.EngineConfig(), logger.With("component", "engine"), opts...)
	if err != nil {
		return cli.NewConfigError("engine", err.Error())
	}

	if cfg.RuleSets.Watch {
		fw, err := watch.New(&watch.Config{
			Path:             cfg.RuleSets.Path,
			DebounceInterval: cfg.RuleSets.DebounceInterval,
			Extensions:       []string{".yaml", ".yml"},
			SkipHidden:       cfg.RuleSets.SkipHiddenFiles(),
		}, logger.With("component", "watch"))
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		defer fw.Stop()
		go func() {
			if err := fw.Watch(ctx, reloadRuleSets); err != nil {
				logger.Error("rule set watcher stopped", "error", err)
			}
		}()
	}

	if _, err := os.Stat(cfgFile); err == nil {
		cw, err := watch.New(&watch.Config{
			Path:             cfgFile,
			DebounceInterval: cfg.RuleSets.DebounceInterval,
		}, logger.With("component", "watch"))
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		defer cw.Stop()
		go func() {
			err := cw.Watch(ctx, func() error {
				reloadConfig(logger, orch)
				return nil
			})
			if err != nil {
				logger.Error("config watcher stopped", "error", err)
			}
		}()
	}

	hup := cli.ReloadSignals()
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				reloadConfig(logger, orch)
				_ = reloadRuleSets()
			}
		}
	}()

	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.IsEnabled() {
		metricsHandler = collector.Handler()
	}

	srv, err := server.New(cfg.Server, server.Deps{
		Engine:       orch,
		RuleSets:     registry,
		History:      store,
		HistoryQuery: cfg.History.Query,
		Health:       checker,
		Version:      health.NewVersionInfo(Version, GitCommit, BuildDate),
		Metrics:      metricsHandler,
		MetricsPath:  cfg.Telemetry.Metrics.Path,
		Tracer:       tracer.Tracer(),
		Logger:       logger,
	})
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintln(cmd.OutOrStdout(), "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Server stopped")
	return nil
}

// reloadConfig re-reads the engine section of the config file. Other
// sections need a restart.
func reloadConfig(logger *slog.Logger, orch *ruleengine.Orchestrator) {
	next, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		if _, statErr := os.Stat(cfgFile); statErr != nil {
			logger.Debug("no config file to reload", "path", cfgFile)
			return
		}
		logger.Error("config reload failed, keeping current engine settings", "path", cfgFile, "error", err)
		return
	}
	if err := orch.UpdateConfig(next.Engine.Options()); err != nil {
		logger.Error("engine config rejected", "error", err)
	}
}
