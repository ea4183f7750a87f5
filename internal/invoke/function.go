// Package invoke drives the invocations of one benchmark tier: it forces
// cold starts by mutating the function configuration and sends the test
// payload to the function's HTTP address.
package invoke

import (
	"context"
	"errors"

	"github.com/imishinist/coldbench/internal/models"
)

// MarkerVariable is the environment variable rewritten before every cold
// start so the platform has to recycle its execution environments.
const MarkerVariable = "BENCHMARK_RUN_TIME"

// ErrConflict is returned by FunctionControl when another configuration
// update is still in progress.
var ErrConflict = errors.New("function configuration update in progress")

// Function is a resolved benchmark target.
type Function struct {
	Name    string
	URL     string
	BaseEnv map[string]string
}

// FunctionControl resolves functions and applies resource tiers to them.
type FunctionControl interface {
	Resolve(ctx context.Context, name string) (Function, error)
	// ApplyTier sets the tier's memory size and the base environment plus
	// MarkerVariable=marker.
	ApplyTier(ctx context.Context, fn Function, tier models.Tier, marker string) error
}

// Response is what the driver needs to know about one invocation.
type Response struct {
	StatusCode int
	// Problem is non-empty when the body reported an application error.
	Problem string
}

// OK reports a 2xx status with a clean body.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300 && r.Problem == ""
}

type Invoker interface {
	Invoke(ctx context.Context, url string, body string) (Response, error)
}
