package mlflow

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/imishinist/coldbench/internal/logger"
	"github.com/imishinist/coldbench/internal/models"
)

// ResultMetrics converts a tier result into metrics stepped by memory size,
// so every tier of a function lands on the same MLflow chart. Aggregates of
// an empty group are left out.
func ResultMetrics(result models.BenchmarkResult, ts time.Time) []models.Metric {
	step := int64(result.Tier.MemorySize)
	o := result.OverallTimes

	var metrics []models.Metric
	add := func(key string, v *float64) {
		if v != nil {
			metrics = append(metrics, models.Metric{Key: key, Value: *v, Timestamp: ts, Step: step})
		}
	}
	count := func(key string, n int) {
		v := float64(n)
		add(key, &v)
	}

	add("avg_warm_ms", o.AvgWarmMs)
	add("avg_cold_ms", o.AvgColdMs)
	add("fastest_warm_ms", o.FastestWarmMs)
	add("fastest_cold_ms", o.FastestColdMs)
	add("slowest_warm_ms", o.SlowestWarmMs)
	add("slowest_cold_ms", o.SlowestColdMs)
	count("warm_count", o.WarmCount)
	count("cold_count", o.ColdCount)
	count("valid_traces", len(result.TraceTimes))
	return metrics
}

// PublishReport creates one MLflow run per function of the report and logs
// its tiers. A function with a failed tier ends as FAILED.
func (c *Client) PublishReport(ctx context.Context, report *models.RunReport, experimentID string) ([]models.RunInfo, error) {
	ts := report.StartedAt.Truncate(time.Second)
	if ts.IsZero() {
		ts = time.Now().Truncate(time.Second)
	}

	var runs []models.RunInfo
	for _, function := range report.Functions() {
		info, err := c.publishFunction(ctx, report, function, experimentID, ts)
		if err != nil {
			return runs, fmt.Errorf("publish %s: %w", function, err)
		}
		runs = append(runs, *info)
	}
	return runs, nil
}

func (c *Client) publishFunction(ctx context.Context, report *models.RunReport, function, experimentID string, ts time.Time) (*models.RunInfo, error) {
	var results []models.BenchmarkResult
	for _, res := range report.Results {
		if res.Function == function {
			results = append(results, res)
		}
	}
	var failed []string
	for _, f := range report.Failures {
		if f.Function == function {
			failed = append(failed, strconv.Itoa(int(f.Tier.MemorySize)))
		}
	}

	tags := map[string]string{}
	maps.Copy(tags, c.tags)
	tags["coldbench.function"] = function
	tags["coldbench.run_id"] = report.RunID

	info, err := c.CreateRun(ctx, models.RunConfig{
		ExperimentID: experimentID,
		RunName:      function + "-" + report.RunID,
		Tags:         tags,
	})
	if err != nil {
		return nil, err
	}
	log := logger.With("function", function, "mlflow_run_id", info.RunID)

	if err := c.logFunction(ctx, info.RunID, report.RunID, results, failed, ts); err != nil {
		if uerr := c.UpdateRun(ctx, info.RunID, models.RunStatusFailed); uerr != nil {
			log.Warn("Failed to mark run as failed", "error", uerr)
		}
		return nil, err
	}

	status := models.RunStatusFinished
	if len(failed) > 0 {
		status = models.RunStatusFailed
	}
	if err := c.UpdateRun(ctx, info.RunID, status); err != nil {
		return nil, err
	}
	info.Status = status

	log.Info("Published results", "tiers", len(results), "failed_tiers", len(failed))
	return info, nil
}

func (c *Client) logFunction(ctx context.Context, mlflowRunID, runID string, results []models.BenchmarkResult, failed []string, ts time.Time) error {
	var tiers []string
	for _, res := range results {
		tiers = append(tiers, strconv.Itoa(int(res.Tier.MemorySize)))
	}

	params := map[string]string{
		"run_id": runID,
		"tiers":  strings.Join(tiers, ","),
	}
	if len(failed) > 0 {
		params["failed_tiers"] = strings.Join(failed, ",")
	}
	if c.config != nil {
		params["cold_starts"] = strconv.Itoa(c.config.ColdStarts)
		params["warm_starts"] = strconv.Itoa(c.config.WarmStarts)
	}
	if err := c.LogParamsFromMap(ctx, mlflowRunID, params); err != nil {
		return err
	}

	for _, res := range results {
		if err := c.LogBatchMetrics(ctx, mlflowRunID, ResultMetrics(res, ts)); err != nil {
			return err
		}
	}
	return nil
}
