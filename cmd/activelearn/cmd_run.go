package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mimir-aip/activelearn/pkg/config"
	"github.com/mimir-aip/activelearn/pkg/experiment"
	"github.com/mimir-aip/activelearn/pkg/models"
	"github.com/mimir-aip/activelearn/pkg/observability"
	"github.com/mimir-aip/activelearn/pkg/report"
	"github.com/mimir-aip/activelearn/pkg/scheduler"
)

var (
	runConfigFile     string
	runDataPath       string
	runName           string
	runSeed           int64
	runIterations     int
	runModel          string
	runWorkers        int
	runReportMetric   string
	runJSONPath       string
	runNoStore        bool
	runNoBaseline     bool
	runNoSignificance bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one active-learning experiment",
	Long: `Loads the pool (a CSV file, or a synthetic pool when --data is empty),
runs the active learner and its comparisons, stores the run and prints the
learning curve.

Configuration is layered: defaults, the YAML file from --config or
$AL_CONFIG_FILE, AL_* environment variables, then flags.`,
	RunE: runExperiment,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runConfigFile, "config", "c", "", "Experiment YAML file")
	f.StringVarP(&runDataPath, "data", "d", "", "Labeled pool CSV (id, flagged, features...)")
	f.StringVarP(&runName, "name", "n", "experiment", "Run name")
	f.Int64Var(&runSeed, "seed", 0, "Random seed")
	f.IntVar(&runIterations, "iterations", 0, "Number of active-learning iterations")
	f.StringVar(&runModel, "model", "", "Model type (logistic_regression, decision_tree, random_forest)")
	f.IntVar(&runWorkers, "workers", 0, "Parallel workers for baselines and trials")
	f.StringVar(&runReportMetric, "metric", "", "Metric to plot (default: first configured metric)")
	f.StringVar(&runJSONPath, "json", "", "Also write the run as JSON to this file")
	f.BoolVar(&runNoStore, "no-store", false, "Do not persist the run or use the result cache")
	f.BoolVar(&runNoBaseline, "no-baseline", false, "Skip the random baseline and full-data model")
	f.BoolVar(&runNoSignificance, "no-significance", false, "Skip the Monte Carlo significance test")
}

// experimentConfig layers flags over the file and environment configuration
func experimentConfig(cmd *cobra.Command) (models.ExperimentConfig, error) {
	path := runConfigFile
	if path == "" {
		path = appConfig.ExperimentFile
	}
	cfg, err := config.LoadExperimentConfig(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = runSeed
	}
	if flags.Changed("iterations") {
		cfg.NumIterations = runIterations
	}
	if flags.Changed("model") {
		cfg.Model = models.ModelType(runModel)
	}
	if flags.Changed("workers") {
		cfg.Workers = runWorkers
	} else if appConfig.Workers > 0 {
		cfg.Workers = appConfig.Workers
	}
	return cfg, config.ValidateExperimentConfig(cfg)
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := experimentConfig(cmd)
	if err != nil {
		return err
	}

	pool, err := scheduler.LoadPool(runDataPath, cfg.Seed)
	if err != nil {
		return fmt.Errorf("failed to load pool: %w", err)
	}

	opts := []experiment.Option{
		experiment.WithLogger(logger),
		experiment.WithMetrics(observability.NewMetrics()),
	}
	if !runNoStore {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		opts = append(opts, experiment.WithCache(st), experiment.WithRecorder(st))
	}
	if runNoBaseline {
		opts = append(opts, experiment.WithoutBaseline())
	}
	if runNoSignificance {
		opts = append(opts, experiment.WithoutSignificance())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := experiment.NewRunner(opts...).Run(ctx, runName, pool, cfg)
	if err != nil {
		if experiment.IsUserError(err) {
			return fmt.Errorf("experiment rejected: %w", err)
		}
		return err
	}

	run := result.Run
	logger.Info("Run stored", zap.String("run_id", run.ID), zap.Bool("persisted", !runNoStore))
	return printRun(cmd, run, runReportMetric)
}

func printRun(cmd *cobra.Command, run *models.ExperimentRun, metric string) error {
	out := cmd.OutOrStdout()
	if metric == "" && len(run.Config.Metrics) > 0 {
		metric = run.Config.Metrics[0]
	}

	fmt.Fprintf(out, "Run %s (%s), pool of %d, status %s\n\n", run.ID, run.Name, run.PoolSize, run.Status)
	report.PerformanceTable(out, run)
	fmt.Fprintln(out)
	report.LearningCurve(out, run, metric)
	fmt.Fprintln(out)
	fmt.Fprintln(out, report.Plot(run, metric, 10))
	if run.Significance != nil {
		fmt.Fprintln(out)
		report.Significance(out, run)
	}

	if runJSONPath != "" {
		file, err := os.Create(runJSONPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", runJSONPath, err)
		}
		defer file.Close()
		if err := report.WriteJSON(file, run); err != nil {
			return fmt.Errorf("failed to write %s: %w", runJSONPath, err)
		}
	}
	return nil
}
