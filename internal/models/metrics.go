package models

import "time"

// SingleInvocationMetric is the decomposed timing of one invocation, in
// milliseconds. A nil field was not measured.
type SingleInvocationMetric struct {
	ID           string   `json:"id" yaml:"id"`
	TotalTime    *float64 `json:"totalTime,omitempty" yaml:"total_time,omitempty"`
	InitTime     *float64 `json:"initTime,omitempty" yaml:"init_time,omitempty"`
	InvocTime    *float64 `json:"invocTime,omitempty" yaml:"invoc_time,omitempty"`
	OverheadTime *float64 `json:"overheadTime,omitempty" yaml:"overhead_time,omitempty"`
}

// IsCold reports whether the invocation went through an initialization phase.
func (m SingleInvocationMetric) IsCold() bool {
	return m.InitTime != nil
}

// AggregateMetrics holds the running per-tier statistics in milliseconds.
type AggregateMetrics struct {
	AvgWarmMs     *float64 `json:"avgWarmMs,omitempty" yaml:"avg_warm_ms,omitempty"`
	AvgColdMs     *float64 `json:"avgColdMs,omitempty" yaml:"avg_cold_ms,omitempty"`
	FastestWarmMs *float64 `json:"fastestWarmMs,omitempty" yaml:"fastest_warm_ms,omitempty"`
	FastestColdMs *float64 `json:"fastestColdMs,omitempty" yaml:"fastest_cold_ms,omitempty"`
	SlowestWarmMs *float64 `json:"slowestWarmMs,omitempty" yaml:"slowest_warm_ms,omitempty"`
	SlowestColdMs *float64 `json:"slowestColdMs,omitempty" yaml:"slowest_cold_ms,omitempty"`
	WarmCount     int      `json:"warmCount" yaml:"warm_count"`
	ColdCount     int      `json:"coldCount" yaml:"cold_count"`
}

// Metric is a single MLflow metric data point.
type Metric struct {
	Key       string    `json:"key"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Step      int64     `json:"step"`
}
