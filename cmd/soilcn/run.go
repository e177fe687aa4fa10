package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/soilcn-simulator/core"
	"github.com/signalsfoundry/soilcn-simulator/internal/config"
	"github.com/signalsfoundry/soilcn-simulator/internal/logging"
	"github.com/signalsfoundry/soilcn-simulator/internal/observability"
	"github.com/signalsfoundry/soilcn-simulator/internal/report"
)

// errUnitsFailed is returned after all outputs are written when at least one
// unit failed or did not converge.
var errUnitsFailed = errors.New("one or more units failed")

type runFlags struct {
	workers       int
	maxIterations int
	tolerance     float64
	outputDir     string
	sqlitePath    string
	metricsAddr   string
	pedotransfer  string
	logLevel      string
}

func newRunCmd() *cobra.Command {
	var fl runFlags
	cmd := &cobra.Command{
		Use:   "run <study>",
		Short: "Run steady state and forward simulations for every unit in a study",
		Long: `Loads a JSON or YAML study, runs each management unit to steady state and
over its forward schedule, and writes carbon, nitrogen, water and summary
tables as CSV plus an optional SQLite run log.

Settings are read from SOILCN_* environment variables; flags override them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			fl.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Logging.Output == nil {
				cfg.Logging.Output = cmd.ErrOrStderr()
			}
			return run(cmd.Context(), cfg, args[0], logging.New(cfg.Logging), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.IntVar(&fl.workers, "workers", 1, "units simulated concurrently")
	f.IntVar(&fl.maxIterations, "max-iterations", 1000, "steady-state iteration cap")
	f.Float64Var(&fl.tolerance, "tolerance", 1e-7, "steady-state SOC tolerance (t C/ha)")
	f.StringVarP(&fl.outputDir, "output", "o", ".", "directory for CSV tables")
	f.StringVar(&fl.sqlitePath, "sqlite", "", "SQLite database recording runs (disabled when empty)")
	f.StringVar(&fl.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (disabled when empty)")
	f.StringVar(&fl.pedotransfer, "pedotransfer", "halaba", "soil water equations: halaba or hollis")
	f.StringVar(&fl.logLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}

// apply copies explicitly set flags over the environment configuration.
func (fl runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("workers") {
		cfg.Workers = fl.workers
	}
	if changed("max-iterations") {
		cfg.MaxIterations = fl.maxIterations
	}
	if changed("tolerance") {
		cfg.Tolerance = fl.tolerance
	}
	if changed("output") {
		cfg.OutputDir = fl.outputDir
	}
	if changed("sqlite") {
		cfg.SQLitePath = fl.sqlitePath
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = fl.metricsAddr
	}
	if changed("pedotransfer") {
		cfg.Pedotransfer = fl.pedotransfer
	}
	if changed("log-level") {
		cfg.Logging.Level = fl.logLevel
	}
}

func run(ctx context.Context, cfg config.Config, studyPath string, log logging.Logger, out io.Writer) (retErr error) {
	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	collector, err := observability.NewSimCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if srv := serveMetrics(cfg.MetricsAddr, collector, log); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	st, err := core.LoadStudy(ctx, studyPath, log)
	if err != nil {
		return err
	}
	sim := st.NewSimulator(log,
		core.WithMetricsRecorder(collector),
		core.WithPedotransfer(core.PedotransferMethod(cfg.Pedotransfer)),
		core.WithConvergence(core.ConvergenceConfig{
			MaxIterations:    cfg.MaxIterations,
			Tolerance:        cfg.Tolerance,
			ProgressInterval: cfg.ProgressInterval,
		}),
	)

	sink, err := openSinks(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("close outputs: %w", err)
		}
	}()

	outcomes, err := core.RunStudy(ctx, sim, st.Units, cfg.Workers)
	if err != nil {
		return err
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			log.Warn(ctx, "unit did not complete",
				logging.String("unit", o.Unit),
				logging.String("status", o.Status()),
				logging.Err(o.Err),
			)
		}
		if err := sink.Write(ctx, st.Name, o); err != nil {
			return fmt.Errorf("write unit %q: %w", o.Unit, err)
		}
	}
	if err := printOutcomes(out, outcomes); err != nil {
		return err
	}

	log.Info(ctx, "study finished",
		logging.String("study", st.Name),
		logging.Int("units", len(outcomes)),
		logging.Int("failed", failed),
		logging.String("output_dir", cfg.OutputDir),
	)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errUnitsFailed, failed, len(outcomes))
	}
	return nil
}

func openSinks(cfg config.Config) (report.Sink, error) {
	csvSink, err := report.NewCSVSink(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	sinks := report.MultiSink{csvSink}
	if cfg.SQLitePath != "" {
		db, err := report.NewSQLiteSink(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, db)
	}
	return sinks, nil
}

func printOutcomes(out io.Writer, outcomes []core.UnitOutcome) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UNIT\tSTATUS\tITERATIONS\tSOC_MEASURED\tSOC_FINAL")
	for _, o := range outcomes {
		iterations, measured, final := "-", "-", "-"
		if res := o.Result; res != nil {
			if ss := res.SteadyState; ss != nil {
				iterations = fmt.Sprint(ss.Iterations)
				measured = fmt.Sprintf("%.3f", ss.Measured)
				final = fmt.Sprintf("%.3f", ss.FinalCarbon.Total())
			}
			if res.Forward != nil {
				final = fmt.Sprintf("%.3f", res.Forward.FinalCarbon.Total())
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.Unit, o.Status(), iterations, measured, final)
	}
	return w.Flush()
}
