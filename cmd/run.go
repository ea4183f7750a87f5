package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/imishinist/coldbench/internal/awsclient"
	"github.com/imishinist/coldbench/internal/benchmark"
	"github.com/imishinist/coldbench/internal/config"
	"github.com/imishinist/coldbench/internal/invoke"
	"github.com/imishinist/coldbench/internal/logger"
	"github.com/imishinist/coldbench/internal/models"
	"github.com/imishinist/coldbench/internal/parser"
	"github.com/imishinist/coldbench/internal/store"
	"github.com/imishinist/coldbench/internal/telemetry"
	"github.com/imishinist/coldbench/internal/traces"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Benchmark functions",
	Long: `Benchmark every function on every memory tier: force cold starts, invoke the
function, then decompose the X-Ray traces of the invocations.`,
	Example: `  # Benchmark two functions on the default tiers
  coldbench run --functions ms-gateway,ms-router

  # Custom tiers and payload, publishing the results to MLflow
  coldbench run --functions ms-gateway --tiers 256,512,1024 --payload-file payload.json --publish --experiment-id 1

  # Recompute the results of a previous run from its stored traces
  coldbench run --functions ms-gateway --run-id 20240101-120000 --dry-run`,
	PreRunE: bindFlags,
	RunE:    runBenchmark,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addBenchmarkFlags(runCmd)

	runCmd.Flags().Int("cold-starts", 10, "Cold start invocations per tier")
	runCmd.Flags().Int("warm-starts", 10, "Warm start invocations per tier")
	runCmd.Flags().String("payload-file", "", "JSON or YAML payload template (##DATE## and ##NUM## are substituted)")
	runCmd.Flags().Duration("invoke-delay", 500*time.Millisecond, "Pause after every invocation")
	runCmd.Flags().Duration("settle-delay", 5*time.Second, "Wait before collecting traces of a tier")
	runCmd.Flags().Bool("dry-run", false, "Skip invocations and reuse the stored traces of --run-id")
	runCmd.Flags().Bool("publish", false, "Publish the results to MLflow")
	runCmd.Flags().Bool("otel-enabled", false, "Export spans of the benchmark run to stderr")
}

// addBenchmarkFlags registers the flags shared by run and replay.
func addBenchmarkFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("functions", "f", nil, "Functions to benchmark (required)")
	cmd.Flags().StringSlice("tiers", []string{"512", "1024", "2048"}, "Memory sizes in MB")
	cmd.Flags().Bool("fail-fast", false, "Abort on the first failed tier")
	cmd.Flags().Int("concurrency", 1, "Functions benchmarked at the same time")
	cmd.Flags().String("report-file", "", "Write the run report to this file (.json/.yaml)")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg := config.New()
	if cfg.RunID == "" && !cfg.DryRun {
		cfg.RunID = time.Now().UTC().Format("20060102-150405")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otel, err := telemetry.Setup(cfg.OTelEnabled, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := otel.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush spans", "error", err)
		}
	}()

	st, err := store.New(cfg.StoreDriver, cfg.StorePath)
	if err != nil {
		return fmt.Errorf("failed to open trace store: %w", err)
	}
	defer st.Close()

	deps := benchmark.Dependencies{Store: st, Tracer: otel.Tracer}
	if !cfg.DryRun {
		if err := wireLive(ctx, cfg, &deps); err != nil {
			return err
		}
	}

	runner := benchmark.NewRunner(deps, benchmark.Options{
		RunID:               cfg.RunID,
		Tiers:               cfg.Tiers,
		ExpectedInvocations: cfg.ExpectedInvocations(),
		SettleDelay:         cfg.SettleDelay,
		FailFast:            cfg.FailFast,
		Concurrency:         cfg.Concurrency,
	})

	logger.Info("Starting benchmark", "run_id", cfg.RunID, "functions", cfg.Functions, "dry_run", cfg.DryRun)
	report, runErr := runner.RunAll(ctx, cfg.Functions, cfg.DryRun)

	return finish(ctx, cmd, cfg, report, runErr)
}

// wireLive connects the runner to AWS.
func wireLive(ctx context.Context, cfg *config.Config, deps *benchmark.Dependencies) error {
	payload, err := parser.ParsePayloadFile(cfg.PayloadFile)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	backend, control, err := awsclient.New(ctx, cfg)
	if err != nil {
		return err
	}

	deps.Control = control
	deps.Driver = invoke.NewDriver(control, invoke.NewHTTPInvoker(nil), invoke.DriverOptions{
		ColdStarts:      cfg.ColdStarts,
		WarmStarts:      cfg.WarmStarts,
		InvokeDelay:     cfg.InvokeDelay,
		MutationBackoff: cfg.MutationBackoff,
		Payload:         invoke.Template(payload),
	})
	deps.Collector = traces.NewCollector(backend, traces.CollectorOptions{
		PollInterval:      cfg.SummaryPollInterval,
		MaxAttempts:       cfg.SummaryMaxAttempts,
		CompletenessRatio: cfg.CompletenessRatio,
	})
	deps.Fetcher = traces.NewFetcher(backend, traces.FetcherOptions{
		BatchSize:             cfg.BatchSize,
		PollInterval:          cfg.UnprocessedPollInterval,
		MaxUnprocessedRetries: cfg.UnprocessedMaxRetries,
	})
	return nil
}

// finish prints and saves the report, publishes it when asked, and decides
// the exit status.
func finish(ctx context.Context, cmd *cobra.Command, cfg *config.Config, report *models.RunReport, runErr error) error {
	printSummary(cmd.OutOrStdout(), report)

	if cfg.ReportFile != "" {
		if err := parser.WriteReportFile(cfg.ReportFile, report); err != nil {
			logger.Error("Failed to write report", "path", cfg.ReportFile, "error", err)
		} else {
			logger.Info("Report written", "path", cfg.ReportFile)
		}
	}

	if cfg.Publish && len(report.Results) > 0 {
		if err := publish(ctx, cfg, report, cfg.ReportFile, nil); err != nil {
			logger.Error("Failed to publish results", "error", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("benchmark aborted: %w", runErr)
	}
	if len(report.Results) == 0 {
		return fmt.Errorf("no tier succeeded")
	}
	return nil
}
