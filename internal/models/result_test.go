package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierString(t *testing.T) {
	assert.Equal(t, "512 MB", Tier{MemorySize: 512}.String())
}

func TestRunReportMergeAndFunctions(t *testing.T) {
	r := &RunReport{RunID: "r1", Results: []BenchmarkResult{{Function: "a", Tier: Tier{MemorySize: 512}}}}
	r.Merge(&RunReport{
		Results:  []BenchmarkResult{{Function: "b", Tier: Tier{MemorySize: 512}}},
		Failures: []TierFailure{{Function: "c", Tier: Tier{MemorySize: 1024}, Reason: "boom"}},
	})
	r.Merge(nil)

	assert.Len(t, r.Results, 2)
	assert.Len(t, r.Failures, 1)
	assert.Equal(t, []string{"a", "b", "c"}, r.Functions())
}

func TestRunReportFunctionsKeepsMergeOrder(t *testing.T) {
	r := &RunReport{RunID: "r1"}
	r.Merge(&RunReport{
		FunctionNames: []string{"alpha"},
		Results:       []BenchmarkResult{{Function: "alpha", Tier: Tier{MemorySize: 512}}},
	})
	r.Merge(&RunReport{
		FunctionNames: []string{"gone"},
		Failures:      []TierFailure{{Function: "gone", Tier: Tier{MemorySize: 512}, Reason: "not found"}},
	})
	r.Merge(&RunReport{
		FunctionNames: []string{"beta"},
		Results:       []BenchmarkResult{{Function: "beta", Tier: Tier{MemorySize: 512}}},
	})

	assert.Equal(t, []string{"alpha", "gone", "beta"}, r.Functions())
	assert.Equal(t, []string{"alpha", "gone", "beta"}, r.FunctionNames)
}

func TestSingleInvocationMetricIsCold(t *testing.T) {
	init := 120.0
	assert.True(t, SingleInvocationMetric{InitTime: &init}.IsCold())
	assert.False(t, SingleInvocationMetric{}.IsCold())
}
