package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xtxerr/groundlink/config"
	"github.com/xtxerr/groundlink/internal/history"
	"github.com/xtxerr/groundlink/internal/telemetry"
)

func runTail(args []string, stdout io.Writer) error {
	fset := newFlagSet("tail", "[flags]")
	table := fset.StringP("table", "t", config.DefaultTablePath, "CSV table path")
	n := fset.IntP("lines", "n", 10, "number of rows")
	track := fset.Bool("track", false, "print positions only")
	nmea := fset.Bool("nmea", false, "with --track, positions are ddmm.mmmm")
	if err := parse(fset, args); err != nil {
		return err
	}

	svc, err := history.New(*table, history.DefaultOptions())
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()

	if *track {
		points, err := svc.Track(ctx, *nmea)
		if err != nil {
			return err
		}
		if len(points) > *n {
			points = points[len(points)-*n:]
		}
		for _, p := range points {
			fmt.Fprintln(stdout, p)
		}
		return nil
	}

	rows, err := svc.Recent(ctx, *n)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "seq,"+strings.Join(telemetry.Header(), ","))
	for _, r := range rows {
		fmt.Fprintln(stdout, formatRow(r))
	}
	return nil
}

func formatRow(r history.Row) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(r.Seq, 10))
	for _, v := range r.Sample.Fields {
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return b.String()
}
