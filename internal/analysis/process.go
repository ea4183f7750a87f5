package analysis

import (
	"github.com/imishinist/coldbench/internal/logger"
	"github.com/imishinist/coldbench/internal/models"
)

// Process decomposes traces in order, drops and logs invalid ones, and
// returns the valid metrics together with their aggregate.
func Process(function string, tier models.Tier, traces []models.MinimalTrace) models.BenchmarkResult {
	log := logger.With("function", function, "tier", tier.String())
	log.Info("Processing trace information", "traces", len(traces))

	acc := NewAccumulator()
	seen := make(map[string]bool, len(traces))
	result := models.BenchmarkResult{
		Function:   function,
		Tier:       tier,
		TraceTimes: []models.SingleInvocationMetric{},
	}

	for _, trace := range traces {
		if seen[trace.ID] {
			log.Warn("Skipping duplicate trace", "trace_id", trace.ID)
			continue
		}
		seen[trace.ID] = true

		metric, err := Decompose(trace)
		if err != nil {
			log.Error("Discarding invalid trace", "trace_id", trace.ID, "reason", err)
			continue
		}

		result.TraceTimes = append(result.TraceTimes, metric)
		acc.Add(metric)
	}

	result.OverallTimes = acc.Result()
	return result
}
