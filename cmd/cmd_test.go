package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imishinist/coldbench/internal/config"
	"github.com/imishinist/coldbench/internal/models"
	"github.com/imishinist/coldbench/internal/parser"
)

func TestParseTags(t *testing.T) {
	tags, err := parseTags([]string{"team=perf", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"team": "perf", "note": "a=b"}, tags)

	_, err = parseTags([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseTags([]string{"=x"})
	assert.Error(t, err)
}

func TestPrintSummary(t *testing.T) {
	avg := 150.0
	report := &models.RunReport{
		Results: []models.BenchmarkResult{{
			Function:     "ms-gateway",
			Tier:         models.Tier{MemorySize: 512},
			OverallTimes: models.AggregateMetrics{AvgWarmMs: &avg},
			TraceTimes:   make([]models.SingleInvocationMetric, 3),
		}},
		Failures: []models.TierFailure{
			{Function: "ms-gateway", Tier: models.Tier{MemorySize: 1024}, Reason: "collect: incomplete trace window"},
		},
	}

	var buf bytes.Buffer
	printSummary(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "ms-gateway")
	assert.Contains(t, out, "512 MB")
	assert.Contains(t, out, "150.0 ms")
	assert.Contains(t, out, "Failed tiers:")
	assert.Contains(t, out, "ms-gateway (1024 MB): collect: incomplete trace window")
}

func TestFlagKey(t *testing.T) {
	assert.Equal(t, "cold_starts", flagKey("cold-starts"))
	assert.Equal(t, "functions", flagKey("functions"))
}

func TestFinish(t *testing.T) {
	tier512 := models.Tier{MemorySize: 512}
	tier1024 := models.Tier{MemorySize: 1024}
	avg := 150.0
	ok := models.BenchmarkResult{
		Function:     "ms-gateway",
		Tier:         tier512,
		OverallTimes: models.AggregateMetrics{AvgWarmMs: &avg},
	}
	failed := models.TierFailure{Function: "ms-gateway", Tier: tier1024, Reason: "collect: incomplete trace window"}

	tests := []struct {
		name    string
		report  *models.RunReport
		runErr  error
		wantErr string
	}{
		{
			name: "partial success",
			report: &models.RunReport{
				RunID:    "bench-1",
				Results:  []models.BenchmarkResult{ok},
				Failures: []models.TierFailure{failed},
			},
		},
		{
			name: "all tiers failed",
			report: &models.RunReport{
				RunID:    "bench-1",
				Results:  []models.BenchmarkResult{},
				Failures: []models.TierFailure{failed, {Function: "ms-gateway", Tier: tier512, Reason: "resolve: not found"}},
			},
			wantErr: "no tier succeeded",
		},
		{
			name: "aborted run",
			report: &models.RunReport{
				RunID:    "bench-1",
				Results:  []models.BenchmarkResult{ok},
				Failures: []models.TierFailure{failed},
			},
			runErr:  errors.New("ms-gateway: collect: incomplete trace window"),
			wantErr: "benchmark aborted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "report.json")
			cfg := &config.Config{ReportFile: path}

			var out bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetOut(&out)

			err := finish(context.Background(), cmd, cfg, tt.report, tt.runErr)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			if tt.runErr != nil {
				assert.ErrorIs(t, err, tt.runErr)
			}

			assert.Contains(t, out.String(), "Failed tiers:", "failures are printed")

			written, err := parser.ParseReportFile(path)
			require.NoError(t, err, "report file is written")
			assert.Equal(t, tt.report.RunID, written.RunID)
			assert.Len(t, written.Results, len(tt.report.Results))
			assert.Len(t, written.Failures, len(tt.report.Failures))
		})
	}
}
