package traces

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/imishinist/coldbench/internal/clock"
	"github.com/imishinist/coldbench/internal/logger"
	"github.com/imishinist/coldbench/internal/models"
)

type CollectorOptions struct {
	// PollInterval is the wait between incomplete passes.
	PollInterval time.Duration
	// MaxAttempts bounds the number of full pagination passes.
	MaxAttempts int
	// CompletenessRatio is the share of expected traces that must be seen.
	CompletenessRatio float64
}

// Collector resolves the trace IDs recorded for a function in a window.
type Collector struct {
	backend Backend
	opts    CollectorOptions
	sleep   clock.SleepFunc
}

func NewCollector(backend Backend, opts CollectorOptions) *Collector {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Collector{
		backend: backend,
		opts:    opts,
		sleep:   clock.Sleep,
	}
}

// WithSleep replaces the wait between passes.
func (c *Collector) WithSleep(sleep clock.SleepFunc) *Collector {
	c.sleep = sleep
	return c
}

// Threshold is the minimum number of summaries accepted for expected
// invocations.
func (c *Collector) Threshold(expected int) int {
	// The epsilon keeps float noise such as 8.000000000000002 from rounding up.
	return int(math.Ceil(float64(expected)*c.opts.CompletenessRatio - 1e-9))
}

// Collect paginates the summary query until it is exhausted. A pass that
// observes fewer than Threshold(expected) summaries is discarded and the
// query restarts from the first page after PollInterval.
func (c *Collector) Collect(ctx context.Context, functionID string, window models.Window, expected int) ([]models.TraceSummary, error) {
	query := SummaryQuery{
		FunctionID: functionID,
		StartTime:  window.Start,
		EndTime:    window.End,
	}
	threshold := c.Threshold(expected)
	log := logger.With("function", functionID)

	var observed int
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		summaries, err := c.collectPass(ctx, query)
		if err != nil {
			return nil, err
		}

		observed = len(summaries)
		if observed >= threshold {
			log.Info("Fetched trace summaries", "count", observed, "attempt", attempt)
			return summaries, nil
		}

		if attempt == c.opts.MaxAttempts {
			break
		}
		log.Info("Traces have not appeared yet, waiting",
			"observed", observed, "threshold", threshold, "attempt", attempt, "wait", c.opts.PollInterval)
		if err := c.sleep(ctx, c.opts.PollInterval); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: found %d of %d expected traces for %s after %d attempts",
		ErrIncompleteTraceWindow, observed, expected, functionID, c.opts.MaxAttempts)
}

// collectPass walks every page once, deduplicating IDs in first-seen order.
func (c *Collector) collectPass(ctx context.Context, query SummaryQuery) ([]models.TraceSummary, error) {
	seen := make(map[string]bool)
	var summaries []models.TraceSummary

	token := ""
	for {
		page, err := c.backend.GetTraceSummaries(ctx, query, token)
		if err != nil {
			return nil, fmt.Errorf("%w: get trace summaries: %w", ErrBackend, err)
		}

		for _, s := range page.Summaries {
			if s.ID == "" || seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			summaries = append(summaries, s)
		}

		if page.NextToken == "" {
			return summaries, nil
		}
		token = page.NextToken
	}
}
