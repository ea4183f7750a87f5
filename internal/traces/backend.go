// Package traces resolves benchmark invocations into sanitized trace
// documents. It talks to the tracing backend through the Backend port and
// tolerates eventual consistency, sampling and pagination on the way.
package traces

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imishinist/coldbench/internal/models"
)

var (
	// ErrIncompleteTraceWindow is returned when too few summaries appear
	// within the attempt budget.
	ErrIncompleteTraceWindow = errors.New("incomplete trace window")

	// ErrUnprocessedTraces is returned when the backend keeps reporting
	// unprocessed trace IDs past the retry budget.
	ErrUnprocessedTraces = errors.New("traces still unprocessed")

	// ErrBackend wraps any other failure of the tracing backend.
	ErrBackend = errors.New("tracing backend error")
)

// SummaryQuery scopes a summary lookup to one function and time window.
type SummaryQuery struct {
	FunctionID string
	StartTime  time.Time
	EndTime    time.Time
}

// FilterExpression returns the backend filter selecting the function's
// invocation service segments.
func (q SummaryQuery) FilterExpression() string {
	return fmt.Sprintf(`service(id(name: "%s", type: "%s"))`, q.FunctionID, models.OriginInvocationService)
}

type SummaryPage struct {
	Summaries []models.TraceSummary
	NextToken string
}

// RawSegment carries the serialized segment document exactly as returned by
// the backend. A nil Document means the backend sent none.
type RawSegment struct {
	ID       string
	Document *string
}

type RawTrace struct {
	ID       string
	Segments []RawSegment
}

type BatchPage struct {
	Traces         []RawTrace
	UnprocessedIDs []string
	NextToken      string
}

// Backend is the tracing backend contract. An empty token requests the
// first page; an empty NextToken marks the last one.
type Backend interface {
	GetTraceSummaries(ctx context.Context, query SummaryQuery, token string) (*SummaryPage, error)
	BatchGetTraces(ctx context.Context, ids []string, token string) (*BatchPage, error)
}
