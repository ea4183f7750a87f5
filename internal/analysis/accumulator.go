package analysis

import "github.com/imishinist/coldbench/internal/models"

// Accumulator folds valid invocation metrics into running statistics, split
// by cold and warm starts. It is not safe for concurrent use.
//
// The average is the two-point running value avg = (avg + t) / 2 used by the
// published benchmark reports, not an arithmetic mean; it depends on the
// order metrics are added in.
type Accumulator struct {
	warm group
	cold group
}

type group struct {
	count   int
	avg     float64
	fastest float64
	slowest float64
}

func (g *group) add(t float64) {
	if g.count == 0 {
		g.avg, g.fastest, g.slowest = t, t, t
	} else {
		g.avg = (g.avg + t) / 2
		if t < g.fastest {
			g.fastest = t
		}
		if t > g.slowest {
			g.slowest = t
		}
	}
	g.count++
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add records one metric. Metrics without a total time are ignored.
func (a *Accumulator) Add(m models.SingleInvocationMetric) {
	if m.TotalTime == nil {
		return
	}
	if m.IsCold() {
		a.cold.add(*m.TotalTime)
	} else {
		a.warm.add(*m.TotalTime)
	}
}

// Result returns a snapshot of the statistics. Groups without observations
// leave their fields nil.
func (a *Accumulator) Result() models.AggregateMetrics {
	out := models.AggregateMetrics{
		WarmCount: a.warm.count,
		ColdCount: a.cold.count,
	}
	if a.warm.count > 0 {
		out.AvgWarmMs = ptr(a.warm.avg)
		out.FastestWarmMs = ptr(a.warm.fastest)
		out.SlowestWarmMs = ptr(a.warm.slowest)
	}
	if a.cold.count > 0 {
		out.AvgColdMs = ptr(a.cold.avg)
		out.FastestColdMs = ptr(a.cold.fastest)
		out.SlowestColdMs = ptr(a.cold.slowest)
	}
	return out
}

func ptr(v float64) *float64 {
	return &v
}
