// Package analysis turns sanitized traces into per-invocation timings and
// folds them into per-tier aggregates.
package analysis

import (
	"errors"
	"fmt"

	"github.com/imishinist/coldbench/internal/models"
)

var (
	// ErrInvalidTrace marks a trace that cannot be measured reliably.
	ErrInvalidTrace = errors.New("invalid trace")

	// ErrInconsistentSum is returned when the phases add up to more than the
	// end-to-end time.
	ErrInconsistentSum = fmt.Errorf("%w: total time less than sum of phases", ErrInvalidTrace)

	// ErrMissingInvocation is returned when the invocation phase was not
	// captured, so the trace cannot be classified.
	ErrMissingInvocation = fmt.Errorf("%w: missing invocation time", ErrInvalidTrace)
)

// Decompose extracts phase timings, in milliseconds, from a trace and
// validates them. Zero-length phases are treated as not measured.
func Decompose(trace models.MinimalTrace) (models.SingleInvocationMetric, error) {
	metric := models.SingleInvocationMetric{ID: trace.ID}

	for _, seg := range trace.Segments {
		switch seg.Origin {
		case models.OriginInvocationService:
			metric.TotalTime = millis(seg.Duration())
		case models.OriginFunctionRuntime:
			for _, sub := range seg.Subsegments {
				switch sub.Name {
				case models.PhaseInitialization:
					metric.InitTime = millis(sub.Duration())
				case models.PhaseInvocation:
					metric.InvocTime = millis(sub.Duration())
				case models.PhaseOverhead:
					metric.OverheadTime = millis(sub.Duration())
				}
			}
		}
	}

	total := value(metric.TotalTime)
	parts := value(metric.InitTime) + value(metric.InvocTime) + value(metric.OverheadTime)
	if total < parts {
		return metric, fmt.Errorf("%w (total %.3fms, phases %.3fms)", ErrInconsistentSum, total, parts)
	}

	if metric.InvocTime == nil {
		return metric, ErrMissingInvocation
	}

	return metric, nil
}

// millis converts a duration in seconds to milliseconds, returning nil for
// non-positive durations.
func millis(seconds float64) *float64 {
	if seconds <= 0 {
		return nil
	}
	ms := seconds * 1000
	return &ms
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
