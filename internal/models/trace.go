package models

// Segment origins reported by the tracing backend.
const (
	OriginInvocationService = "AWS::Lambda"
	OriginFunctionRuntime   = "AWS::Lambda::Function"
)

// Sub-segment names under the function runtime segment.
const (
	PhaseInitialization = "Initialization"
	PhaseInvocation     = "Invocation"
	PhaseOverhead       = "Overhead"
)

type TraceSummary struct {
	ID string `json:"Id"`
}

// MinimalTrace is the whitelisted subset of a backend trace. It is produced
// once by the detail fetcher and never mutated afterwards.
type MinimalTrace struct {
	ID       string            `json:"Id" yaml:"id"`
	Segments []SegmentDocument `json:"Segments" yaml:"segments"`
}

// SegmentDocument times are epoch seconds.
type SegmentDocument struct {
	Origin      string       `json:"origin,omitempty" yaml:"origin,omitempty"`
	StartTime   float64      `json:"start_time" yaml:"start_time"`
	EndTime     float64      `json:"end_time" yaml:"end_time"`
	Subsegments []SubSegment `json:"subsegments,omitempty" yaml:"subsegments,omitempty"`
}

type SubSegment struct {
	Name      string  `json:"name,omitempty" yaml:"name,omitempty"`
	StartTime float64 `json:"start_time" yaml:"start_time"`
	EndTime   float64 `json:"end_time" yaml:"end_time"`
}

// Duration returns the segment length in seconds.
func (s SegmentDocument) Duration() float64 {
	return s.EndTime - s.StartTime
}

func (s SubSegment) Duration() float64 {
	return s.EndTime - s.StartTime
}
