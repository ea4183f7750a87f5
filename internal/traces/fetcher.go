package traces

import (
	"context"
	"fmt"
	"time"

	"github.com/imishinist/coldbench/internal/clock"
	"github.com/imishinist/coldbench/internal/logger"
	"github.com/imishinist/coldbench/internal/models"
)

// MaxBatchSize is the largest number of IDs the batch detail API accepts.
const MaxBatchSize = 5

type FetcherOptions struct {
	BatchSize int
	// PollInterval is the wait before reissuing a call that reported
	// unprocessed IDs.
	PollInterval time.Duration
	// MaxUnprocessedRetries bounds reissues per batch.
	MaxUnprocessedRetries int
}

// Fetcher converts trace IDs into sanitized trace documents.
type Fetcher struct {
	backend Backend
	opts    FetcherOptions
	sleep   clock.SleepFunc
}

func NewFetcher(backend Backend, opts FetcherOptions) *Fetcher {
	if opts.BatchSize < 1 || opts.BatchSize > MaxBatchSize {
		opts.BatchSize = MaxBatchSize
	}
	return &Fetcher{
		backend: backend,
		opts:    opts,
		sleep:   clock.Sleep,
	}
}

// WithSleep replaces the wait between reissued calls.
func (f *Fetcher) WithSleep(sleep clock.SleepFunc) *Fetcher {
	f.sleep = sleep
	return f
}

// Fetch retrieves the detail of every summarized trace in batches. The
// result holds each trace ID at most once.
func (f *Fetcher) Fetch(ctx context.Context, summaries []models.TraceSummary) ([]models.MinimalTrace, error) {
	seen := make(map[string]bool)
	var traces []models.MinimalTrace

	for i, batch := range chunkIDs(summaries, f.opts.BatchSize) {
		raw, err := f.fetchBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}

		for _, t := range raw {
			if t.ID == "" || seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			traces = append(traces, Sanitize(t))
		}
	}

	return traces, nil
}

// fetchBatch paginates one batch. Unprocessed IDs cause the same call to be
// reissued rather than advancing the token.
func (f *Fetcher) fetchBatch(ctx context.Context, ids []string) ([]RawTrace, error) {
	var traces []RawTrace
	token := ""
	retries := 0

	for {
		page, err := f.backend.BatchGetTraces(ctx, ids, token)
		if err != nil {
			return nil, fmt.Errorf("%w: batch get traces: %w", ErrBackend, err)
		}

		if len(page.UnprocessedIDs) > 0 {
			if retries >= f.opts.MaxUnprocessedRetries {
				return nil, fmt.Errorf("%w: %d IDs after %d retries", ErrUnprocessedTraces, len(page.UnprocessedIDs), retries)
			}
			retries++
			logger.Info("Detailed traces are still being processed, waiting",
				"unprocessed", len(page.UnprocessedIDs), "retry", retries, "wait", f.opts.PollInterval)
			if err := f.sleep(ctx, f.opts.PollInterval); err != nil {
				return nil, err
			}
			continue
		}

		traces = append(traces, page.Traces...)

		if page.NextToken == "" {
			return traces, nil
		}
		token = page.NextToken
	}
}

// chunkIDs splits the distinct, non-empty IDs into batches of size.
func chunkIDs(summaries []models.TraceSummary, size int) [][]string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range summaries {
		if s.ID == "" || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		ids = append(ids, s.ID)
	}

	var batches [][]string
	for len(ids) > 0 {
		n := min(size, len(ids))
		batches = append(batches, ids[:n])
		ids = ids[n:]
	}
	return batches
}
