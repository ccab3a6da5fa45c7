package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/xtxerr/groundlink/config"
	"github.com/xtxerr/groundlink/internal/history"
	"github.com/xtxerr/groundlink/internal/logging"
	"github.com/xtxerr/groundlink/internal/sink"
	"github.com/xtxerr/groundlink/internal/stats"
	"github.com/xtxerr/groundlink/internal/telemetry"
)

// runSummary prints per-channel statistics. By default the table is
// streamed once through a stats collector, which adds percentiles; --sql
// asks the query engine instead.
func runSummary(args []string, stdout io.Writer) error {
	fset := newFlagSet("summary", "[flags]")
	table := fset.StringP("table", "t", config.DefaultTablePath, "CSV table path")
	useSQL := fset.Bool("sql", false, "compute with the SQL engine (no percentiles)")
	accuracy := fset.Float64("accuracy", stats.DefaultAccuracy, "percentile relative accuracy")
	if err := parse(fset, args); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	defer tw.Flush()

	if *useSQL {
		svc, err := history.New(*table, history.DefaultOptions())
		if err != nil {
			return err
		}
		defer svc.Close()

		summary, err := svc.Summary(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "CHANNEL\tCOUNT\tMIN\tMAX\tAVG\t")
		for _, s := range summary {
			fmt.Fprintf(tw, "%s\t%d\t%g\t%g\t%.4g\t\n", s.Channel, s.Count, s.Min, s.Max, s.Avg)
		}
		return nil
	}

	c := stats.NewWithAccuracy(*accuracy)
	skipped := 0
	err := sink.Scan(*table, func(_ int, s telemetry.Sample) error {
		c.Observe(s)
		return nil
	}, func(*sink.RowError) { skipped++ })
	if err != nil {
		return err
	}
	if skipped > 0 {
		logging.Component("summary").Warn("skipped table lines", "count", skipped)
	}

	fmt.Fprintln(tw, "CHANNEL\tCOUNT\tMIN\tMAX\tAVG\tP50\tP95\t")
	for _, r := range c.Results() {
		p50, p95 := "-", "-"
		if r.HasPercentiles {
			p50, p95 = fmt.Sprintf("%.4g", r.P50), fmt.Sprintf("%.4g", r.P95)
		}
		fmt.Fprintf(tw, "%s\t%d\t%g\t%g\t%.4g\t%s\t%s\t\n", r.Channel, r.Count, r.Min, r.Max, r.Avg, p50, p95)
	}
	return nil
}
