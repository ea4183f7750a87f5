// Package benchmark sequences the tiers of each function: drive the
// invocations, wait for the traces, decompose them and collect the results.
package benchmark

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/imishinist/coldbench/internal/analysis"
	"github.com/imishinist/coldbench/internal/clock"
	"github.com/imishinist/coldbench/internal/invoke"
	"github.com/imishinist/coldbench/internal/logger"
	"github.com/imishinist/coldbench/internal/models"
	"github.com/imishinist/coldbench/internal/store"
)

type TierDriver interface {
	Run(ctx context.Context, fn invoke.Function, tier models.Tier) (models.Window, error)
}

type SummaryCollector interface {
	Collect(ctx context.Context, functionID string, window models.Window, expected int) ([]models.TraceSummary, error)
}

type TraceFetcher interface {
	Fetch(ctx context.Context, summaries []models.TraceSummary) ([]models.MinimalTrace, error)
}

// Dependencies are the collaborators of a Runner. A replay only needs Store.
type Dependencies struct {
	Control   invoke.FunctionControl
	Driver    TierDriver
	Collector SummaryCollector
	Fetcher   TraceFetcher
	Store     store.Store
	Tracer    oteltrace.Tracer
}

type Options struct {
	RunID               string
	Tiers               []models.Tier
	ExpectedInvocations int
	SettleDelay         time.Duration
	FailFast            bool
	Concurrency         int
}

type Runner struct {
	deps  Dependencies
	opts  Options
	sleep clock.SleepFunc
	now   func() time.Time
}

func NewRunner(deps Dependencies, opts Options) *Runner {
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("coldbench/benchmark")
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Runner{
		deps:  deps,
		opts:  opts,
		sleep: clock.Sleep,
		now:   time.Now,
	}
}

// WithSleep replaces the settle wait, for tests.
func (r *Runner) WithSleep(sleep clock.SleepFunc) *Runner {
	r.sleep = sleep
	return r
}

// RunAll benchmarks every function, at most Concurrency at a time, and merges
// the reports in the order the functions were given. With replay set the
// traces come from the store instead of the live system.
func (r *Runner) RunAll(ctx context.Context, functions []string, replay bool) (*models.RunReport, error) {
	reports := make([]*models.RunReport, len(functions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, function := range functions {
		g.Go(func() error {
			var err error
			if replay {
				reports[i], err = r.Replay(gctx, function)
			} else {
				reports[i], err = r.Run(gctx, function)
			}
			return err
		})
	}
	err := g.Wait()

	merged := r.newReport()
	for _, rep := range reports {
		merged.Merge(rep)
	}
	return merged, err
}

// Run benchmarks every tier of function against the live system.
func (r *Runner) Run(ctx context.Context, function string) (*models.RunReport, error) {
	report := r.newReport(function)
	log := logger.With("function", function, "run_id", r.opts.RunID)

	fn, err := r.deps.Control.Resolve(ctx, function)
	if err != nil {
		err = fmt.Errorf("resolve: %w", err)
		log.Error("Failed to resolve function", "error", err)
		for _, tier := range r.opts.Tiers {
			report.Failures = append(report.Failures, failure(function, tier, err))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}
		if r.opts.FailFast {
			return report, fmt.Errorf("%s: %w", function, err)
		}
		return report, nil
	}

	for _, tier := range r.opts.Tiers {
		result, err := r.liveTier(ctx, fn, tier)
		if err := r.settle(ctx, report, function, tier, result, err); err != nil {
			return report, err
		}
	}
	return report, nil
}

// Replay recomputes the results of a previous run from stored traces.
func (r *Runner) Replay(ctx context.Context, function string) (*models.RunReport, error) {
	report := r.newReport(function)

	for _, tier := range r.opts.Tiers {
		result, err := r.replayTier(ctx, function, tier)
		if err := r.settle(ctx, report, function, tier, result, err); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (r *Runner) liveTier(ctx context.Context, fn invoke.Function, tier models.Tier) (models.BenchmarkResult, error) {
	ctx, span := r.startSpan(ctx, "benchmark.tier", fn.Name, tier)
	defer span.End()
	log := logger.With("function", fn.Name, "tier", tier.String())

	log.Info("Invoking function")
	window, err := r.deps.Driver.Run(ctx, fn, tier)
	if err != nil {
		return fail(span, fmt.Errorf("invoke: %w", err))
	}

	// Traces need a moment to show up in the backend.
	if err := r.sleep(ctx, r.opts.SettleDelay); err != nil {
		return fail(span, err)
	}

	log.Info("Fetching trace summaries")
	summaries, err := r.deps.Collector.Collect(ctx, fn.Name, window, r.opts.ExpectedInvocations)
	if err != nil {
		return fail(span, fmt.Errorf("collect: %w", err))
	}

	log.Info("Fetching trace batches", "summaries", len(summaries))
	traces, err := r.deps.Fetcher.Fetch(ctx, summaries)
	if err != nil {
		return fail(span, fmt.Errorf("fetch: %w", err))
	}

	if r.deps.Store != nil {
		if err := r.deps.Store.Save(ctx, fn.Name, r.opts.RunID, tier, traces); err != nil {
			log.Error("Failed to save traces", "error", err)
		}
	}

	result := analysis.Process(fn.Name, tier, traces)
	span.SetAttributes(
		attribute.Int("traces.fetched", len(traces)),
		attribute.Int("traces.valid", len(result.TraceTimes)),
	)
	return result, nil
}

func (r *Runner) replayTier(ctx context.Context, function string, tier models.Tier) (models.BenchmarkResult, error) {
	ctx, span := r.startSpan(ctx, "benchmark.replay", function, tier)
	defer span.End()

	traces, err := r.deps.Store.Load(ctx, function, r.opts.RunID, tier)
	if err != nil {
		return fail(span, fmt.Errorf("load: %w", err))
	}

	result := analysis.Process(function, tier, traces)
	span.SetAttributes(attribute.Int("traces.valid", len(result.TraceTimes)))
	return result, nil
}

// settle records the outcome of a tier. The returned error aborts the run:
// on cancellation, or on any failure when FailFast is set.
func (r *Runner) settle(ctx context.Context, report *models.RunReport, function string, tier models.Tier, result models.BenchmarkResult, err error) error {
	if err == nil {
		report.Results = append(report.Results, result)
		return nil
	}

	report.Failures = append(report.Failures, failure(function, tier, err))
	logger.Error("Tier failed", "function", function, "tier", tier.String(), "error", err)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if r.opts.FailFast {
		return fmt.Errorf("%s (%s): %w", function, tier, err)
	}
	return nil
}

func (r *Runner) startSpan(ctx context.Context, name, function string, tier models.Tier) (context.Context, oteltrace.Span) {
	return r.deps.Tracer.Start(ctx, name, oteltrace.WithAttributes(
		attribute.String("function", function),
		attribute.Int("memory_size", int(tier.MemorySize)),
		attribute.String("run_id", r.opts.RunID),
	))
}

func (r *Runner) newReport(functions ...string) *models.RunReport {
	return &models.RunReport{
		RunID:         r.opts.RunID,
		StartedAt:     r.now().UTC(),
		FunctionNames: functions,
		Results:       []models.BenchmarkResult{},
	}
}

func fail(span oteltrace.Span, err error) (models.BenchmarkResult, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return models.BenchmarkResult{}, err
}

func failure(function string, tier models.Tier, err error) models.TierFailure {
	return models.TierFailure{Function: function, Tier: tier, Reason: err.Error()}
}
