package models

import (
	"fmt"
	"slices"
	"time"
)

// Tier is a resource configuration the function is benchmarked under.
type Tier struct {
	MemorySize int32 `json:"memorySize" yaml:"memory_size"`
}

func (t Tier) String() string {
	return fmt.Sprintf("%d MB", t.MemorySize)
}

// Window is the wall-clock interval that contains every invocation of a tier.
type Window struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// BenchmarkResult is the complete output for one function and tier.
type BenchmarkResult struct {
	Function     string                   `json:"function" yaml:"function"`
	Tier         Tier                     `json:"tier" yaml:"tier"`
	OverallTimes AggregateMetrics         `json:"overallTimes" yaml:"overall_times"`
	TraceTimes   []SingleInvocationMetric `json:"traceTimes" yaml:"trace_times"`
}

type TierFailure struct {
	Function string `json:"function" yaml:"function"`
	Tier     Tier   `json:"tier" yaml:"tier"`
	Reason   string `json:"reason" yaml:"reason"`
}

// RunReport collects the outcome of every tier of a benchmark run.
// FunctionNames keeps the order the functions were benchmarked in, so a
// function whose tiers all failed keeps its position.
type RunReport struct {
	RunID         string            `json:"runId" yaml:"run_id"`
	StartedAt     time.Time         `json:"startedAt" yaml:"started_at"`
	FunctionNames []string          `json:"functions,omitempty" yaml:"functions,omitempty"`
	Results       []BenchmarkResult `json:"results" yaml:"results"`
	Failures      []TierFailure     `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Merge appends the results and failures of other into r.
func (r *RunReport) Merge(other *RunReport) {
	if other == nil {
		return
	}
	r.FunctionNames = appendUnique(r.Functions(), other.Functions()...)
	r.Results = append(r.Results, other.Results...)
	r.Failures = append(r.Failures, other.Failures...)
}

// Functions returns the distinct function names in the report. Names in
// FunctionNames come first, in that order; functions only seen in results
// or failures follow in order of first appearance.
func (r *RunReport) Functions() []string {
	names := appendUnique(nil, r.FunctionNames...)
	for _, res := range r.Results {
		names = appendUnique(names, res.Function)
	}
	for _, f := range r.Failures {
		names = appendUnique(names, f.Function)
	}
	return names
}

func appendUnique(names []string, add ...string) []string {
	for _, name := range add {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}
