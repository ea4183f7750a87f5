package benchmark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/imishinist/coldbench/internal/invoke"
	"github.com/imishinist/coldbench/internal/models"
	"github.com/imishinist/coldbench/internal/store"
	"github.com/imishinist/coldbench/internal/traces"
)

var (
	tier512  = models.Tier{MemorySize: 512}
	tier1024 = models.Tier{MemorySize: 1024}
)

type fakeControl struct {
	missing map[string]bool
}

func (f *fakeControl) Resolve(_ context.Context, name string) (invoke.Function, error) {
	if f.missing[name] {
		return invoke.Function{}, errors.New("function not found")
	}
	return invoke.Function{Name: name, URL: "https://" + name}, nil
}

func (f *fakeControl) ApplyTier(context.Context, invoke.Function, models.Tier, string) error {
	return nil
}

type fakeDriver struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeDriver) Run(_ context.Context, fn invoke.Function, tier models.Tier) (models.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%s/%d", fn.Name, tier.MemorySize))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return models.Window{Start: start, End: start.Add(time.Minute)}, nil
}

// fakeCollector returns a cold and a warm summary. failures is keyed by
// "<function>#<call index>".
type fakeCollector struct {
	mu       sync.Mutex
	failures map[string]error
	expected []int
	calls    map[string]int
}

func (f *fakeCollector) Collect(_ context.Context, functionID string, _ models.Window, expected int) ([]models.TraceSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	key := fmt.Sprintf("%s#%d", functionID, f.calls[functionID])
	f.calls[functionID]++
	f.expected = append(f.expected, expected)

	if err := f.failures[key]; err != nil {
		return nil, err
	}
	return []models.TraceSummary{{ID: functionID + "-cold"}, {ID: functionID + "-warm"}}, nil
}

type fakeFetcher struct{}

func (fakeFetcher) Fetch(_ context.Context, summaries []models.TraceSummary) ([]models.MinimalTrace, error) {
	var out []models.MinimalTrace
	for _, s := range summaries {
		if strings.HasSuffix(s.ID, "-cold") {
			out = append(out, trace(s.ID, 1.2, 0.3, 0.8))
		} else {
			out = append(out, trace(s.ID, 0.15, 0, 0.14))
		}
	}
	return out, nil
}

func trace(id string, total, init, invoc float64) models.MinimalTrace {
	fn := models.SegmentDocument{Origin: models.OriginFunctionRuntime, StartTime: 0, EndTime: total}
	if init > 0 {
		fn.Subsegments = append(fn.Subsegments, models.SubSegment{Name: models.PhaseInitialization, StartTime: 0, EndTime: init})
	}
	fn.Subsegments = append(fn.Subsegments, models.SubSegment{Name: models.PhaseInvocation, StartTime: init, EndTime: init + invoc})
	return models.MinimalTrace{
		ID: id,
		Segments: []models.SegmentDocument{
			{Origin: models.OriginInvocationService, StartTime: 0, EndTime: total},
			fn,
		},
	}
}

type harness struct {
	runner    *Runner
	driver    *fakeDriver
	collector *fakeCollector
	store     store.Store
	recorder  *tracetest.SpanRecorder
	settles   []time.Duration
}

func newHarness(t *testing.T, opts Options, control *fakeControl, failures map[string]error) *harness {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	h := &harness{
		driver:    &fakeDriver{},
		collector: &fakeCollector{failures: failures},
		store:     s,
		recorder:  rec,
	}
	if control == nil {
		control = &fakeControl{}
	}
	if opts.RunID == "" {
		opts.RunID = "run-1"
	}
	if opts.Tiers == nil {
		opts.Tiers = []models.Tier{tier512, tier1024}
	}
	opts.ExpectedInvocations = 2
	opts.SettleDelay = 5 * time.Second

	var mu sync.Mutex
	h.runner = NewRunner(Dependencies{
		Control:   control,
		Driver:    h.driver,
		Collector: h.collector,
		Fetcher:   fakeFetcher{},
		Store:     s,
		Tracer:    tp.Tracer("test"),
	}, opts).WithSleep(func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		h.settles = append(h.settles, d)
		return ctx.Err()
	})
	return h
}

func TestRunner_Run(t *testing.T) {
	h := newHarness(t, Options{}, nil, nil)

	report, err := h.runner.Run(context.Background(), "fn")
	require.NoError(t, err)

	assert.Equal(t, []string{"fn/512", "fn/1024"}, h.driver.calls)
	assert.Equal(t, []int{2, 2}, h.collector.expected)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, h.settles)

	require.Len(t, report.Results, 2)
	assert.Empty(t, report.Failures)
	assert.Equal(t, "run-1", report.RunID)
	for i, tier := range []models.Tier{tier512, tier1024} {
		res := report.Results[i]
		assert.Equal(t, tier, res.Tier)
		assert.Len(t, res.TraceTimes, 2)
		assert.InDelta(t, 1200, *res.OverallTimes.AvgColdMs, 1e-6)
		assert.InDelta(t, 150, *res.OverallTimes.AvgWarmMs, 1e-6)
	}

	saved, err := h.store.Load(context.Background(), "fn", "run-1", tier1024)
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	spans := h.recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "benchmark.tier", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestRunner_RecordsTierFailureAndContinues(t *testing.T) {
	failures := map[string]error{
		"fn#0": fmt.Errorf("%w: found 1 of 2", traces.ErrIncompleteTraceWindow),
	}
	h := newHarness(t, Options{}, nil, failures)

	report, err := h.runner.Run(context.Background(), "fn")
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, tier512, report.Failures[0].Tier)
	assert.Contains(t, report.Failures[0].Reason, "incomplete trace window")
	require.Len(t, report.Results, 1)
	assert.Equal(t, tier1024, report.Results[0].Tier)

	spans := h.recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestRunner_FailFast(t *testing.T) {
	failures := map[string]error{
		"fn#0": fmt.Errorf("%w: throttled", traces.ErrBackend),
	}
	h := newHarness(t, Options{FailFast: true}, nil, failures)

	report, err := h.runner.Run(context.Background(), "fn")
	require.Error(t, err)
	assert.ErrorIs(t, err, traces.ErrBackend)

	assert.Equal(t, []string{"fn/512"}, h.driver.calls, "remaining tiers are not run")
	assert.Len(t, report.Failures, 1)
	assert.Empty(t, report.Results)
}

func TestRunner_ReplayReproducesRun(t *testing.T) {
	h := newHarness(t, Options{}, nil, nil)

	live, err := h.runner.Run(context.Background(), "fn")
	require.NoError(t, err)

	replayed, err := h.runner.Replay(context.Background(), "fn")
	require.NoError(t, err)

	assert.Equal(t, live.Results, replayed.Results)
	assert.Len(t, h.driver.calls, 2, "replay makes no invocations")
}

func TestRunner_ReplayMissingTraces(t *testing.T) {
	h := newHarness(t, Options{RunID: "never-ran"}, nil, nil)

	report, err := h.runner.Replay(context.Background(), "fn")
	require.NoError(t, err)
	assert.Len(t, report.Failures, 2)
	assert.Empty(t, report.Results)

	h = newHarness(t, Options{RunID: "never-ran", FailFast: true}, nil, nil)
	_, err = h.runner.Replay(context.Background(), "fn")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunner_RunAll(t *testing.T) {
	control := &fakeControl{missing: map[string]bool{"gone": true}}
	h := newHarness(t, Options{Concurrency: 3, Tiers: []models.Tier{tier512}}, control, nil)

	report, err := h.runner.RunAll(context.Background(), []string{"alpha", "gone", "beta", "gamma"}, false)
	require.NoError(t, err)

	var order []string
	for _, res := range report.Results {
		order = append(order, res.Function)
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, order, "results keep the configured order")

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "gone", report.Failures[0].Function)
	assert.Contains(t, report.Failures[0].Reason, "resolve")
	assert.Equal(t, []string{"alpha", "gone", "beta", "gamma"}, report.Functions())
}

func TestRunner_RunAllFailFastResolve(t *testing.T) {
	control := &fakeControl{missing: map[string]bool{"gone": true}}
	h := newHarness(t, Options{FailFast: true, Tiers: []models.Tier{tier512}}, control, nil)

	report, err := h.runner.RunAll(context.Background(), []string{"alpha", "gone", "beta"}, false)
	require.Error(t, err)
	assert.Len(t, report.Results, 1, "functions before the failure completed")
	assert.Equal(t, "alpha", report.Results[0].Function)
}

func TestRunner_Cancelled(t *testing.T) {
	h := newHarness(t, Options{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	h.runner.WithSleep(func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	})

	report, err := h.runner.Run(ctx, "fn")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, report.Failures, 1)
	assert.Equal(t, []string{"fn/512"}, h.driver.calls)
}
