package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/imishinist/coldbench/internal/models"
)

// printSummary writes one row per successful tier followed by the failed
// tiers and their reasons.
func printSummary(w io.Writer, report *models.RunReport) {
	if report == nil {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FUNCTION\tTIER\tAVG WARM\tAVG COLD\tFASTEST WARM\tSLOWEST WARM\tFASTEST COLD\tSLOWEST COLD\tTRACES")
	for _, res := range report.Results {
		o := res.OverallTimes
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			res.Function, res.Tier,
			ms(o.AvgWarmMs), ms(o.AvgColdMs),
			ms(o.FastestWarmMs), ms(o.SlowestWarmMs),
			ms(o.FastestColdMs), ms(o.SlowestColdMs),
			len(res.TraceTimes))
	}
	tw.Flush()

	if len(report.Failures) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Failed tiers:")
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  %s (%s): %s\n", f.Function, f.Tier, f.Reason)
	}
}

func ms(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f ms", *v)
}
