package invoke

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/imishinist/coldbench/internal/clock"
	"github.com/imishinist/coldbench/internal/logger"
	"github.com/imishinist/coldbench/internal/models"
)

type StepKind int

const (
	StepCold StepKind = iota
	StepWarm
)

func (k StepKind) String() string {
	if k == StepCold {
		return "cold"
	}
	return "warm"
}

// Step is one planned invocation.
type Step struct {
	Kind  StepKind
	Index int
}

// Plan lists cold steps first, then warm steps.
func Plan(cold, warm int) []Step {
	steps := make([]Step, 0, max(cold, 0)+max(warm, 0))
	for i := 0; i < cold; i++ {
		steps = append(steps, Step{Kind: StepCold, Index: i})
	}
	for i := 0; i < warm; i++ {
		steps = append(steps, Step{Kind: StepWarm, Index: i})
	}
	return steps
}

type DriverOptions struct {
	ColdStarts      int
	WarmStarts      int
	InvokeDelay     time.Duration
	MutationBackoff time.Duration
	Payload         Template
}

// Driver performs the invocations of a tier.
type Driver struct {
	control FunctionControl
	invoker Invoker
	opts    DriverOptions

	sleep  clock.SleepFunc
	now    func() time.Time
	number func() int
}

func NewDriver(control FunctionControl, invoker Invoker, opts DriverOptions) *Driver {
	return &Driver{
		control: control,
		invoker: invoker,
		opts:    opts,
		sleep:   clock.Sleep,
		now:     time.Now,
		number:  func() int { return rand.IntN(PayloadRange) },
	}
}

// WithSleep replaces the wait between steps, for tests.
func (d *Driver) WithSleep(sleep clock.SleepFunc) *Driver {
	d.sleep = sleep
	return d
}

// Run executes the plan against fn under tier and returns the wall-clock
// window enclosing all invocations.
func (d *Driver) Run(ctx context.Context, fn Function, tier models.Tier) (models.Window, error) {
	log := logger.With("function", fn.Name, "tier", tier.String())
	window := models.Window{Start: d.now()}

	for _, step := range Plan(d.opts.ColdStarts, d.opts.WarmStarts) {
		if err := ctx.Err(); err != nil {
			return window, err
		}

		if step.Kind == StepCold {
			if err := d.force(ctx, fn, tier); err != nil {
				return window, err
			}
		}

		d.invoke(ctx, fn, step)

		if err := d.pause(ctx); err != nil {
			return window, err
		}
	}

	window.End = d.now()
	log.Info("Invocations finished", "cold", d.opts.ColdStarts, "warm", d.opts.WarmStarts,
		"elapsed", window.End.Sub(window.Start))
	return window, nil
}

// force applies the tier with a fresh marker. A conflicting update is retried
// once after the mutation backoff. Mutation failures never abort the run;
// only context cancellation does.
func (d *Driver) force(ctx context.Context, fn Function, tier models.Tier) error {
	log := logger.With("function", fn.Name, "tier", tier.String())
	log.Debug("Updating the function to ensure a cold start")

	err := d.control.ApplyTier(ctx, fn, tier, d.marker())
	if errors.Is(err, ErrConflict) {
		if err := d.sleep(ctx, d.opts.MutationBackoff); err != nil {
			return err
		}
		err = d.control.ApplyTier(ctx, fn, tier, d.marker())
		if errors.Is(err, ErrConflict) {
			log.Warn("Failed to update the function, giving up", "error", err)
			return nil
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Error("Failed to update the function", "error", err)
	}
	return nil
}

func (d *Driver) invoke(ctx context.Context, fn Function, step Step) {
	log := logger.With("function", fn.Name, "kind", step.Kind.String(), "index", step.Index)

	started := d.now()
	resp, err := d.invoker.Invoke(ctx, fn.URL, d.opts.Payload.Render(started, d.number()))
	elapsed := d.now().Sub(started)

	switch {
	case err != nil:
		log.Error("Invocation failed", "error", err)
	case !resp.OK():
		log.Error("Invocation returned an error", "status", resp.StatusCode, "problem", resp.Problem, "elapsed", elapsed)
	default:
		log.Info("Invoked function", "status", resp.StatusCode, "elapsed", elapsed)
	}
}

func (d *Driver) pause(ctx context.Context) error {
	return d.sleep(ctx, d.opts.InvokeDelay)
}

func (d *Driver) marker() string {
	return fmt.Sprintf("%s-%s", d.now().UTC().Format(time.RFC3339Nano), uuid.NewString())
}
