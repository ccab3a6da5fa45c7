package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	prompt "github.com/c-bata/go-prompt"

	"github.com/xtxerr/groundlink/config"
	"github.com/xtxerr/groundlink/internal/history"
	"github.com/xtxerr/groundlink/internal/telemetry"
)

// runShell starts an interactive prompt over the table. Lines starting
// with '.' are shell commands; anything else is SQL against the
// "telemetry" view.
func runShell(args []string, stdout io.Writer) error {
	fset := newFlagSet("shell", "[flags]")
	table := fset.StringP("table", "t", config.DefaultTablePath, "CSV table path")
	if err := parse(fset, args); err != nil {
		return err
	}

	svc, err := history.New(*table, history.DefaultOptions())
	if err != nil {
		return err
	}
	defer svc.Close()

	sh := &shell{svc: svc, out: stdout}
	fmt.Fprintf(stdout, "groundlink shell on %s (.help for commands)\n", svc.Path())

	p := prompt.New(sh.execute, sh.complete,
		prompt.OptionPrefix("groundlink> "),
		prompt.OptionTitle("groundctl shell"),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return breakline && sh.exit
		}),
	)
	p.Run()
	return nil
}

type shell struct {
	svc  *history.Service
	out  io.Writer
	exit bool
}

var shellCommands = []prompt.Suggest{
	{Text: ".count", Description: "number of rows"},
	{Text: ".recent", Description: "last N rows (default 10)"},
	{Text: ".summary", Description: "per-channel count/min/max/avg"},
	{Text: ".track", Description: "positions in decimal degrees"},
	{Text: ".help", Description: "list commands"},
	{Text: ".exit", Description: "leave the shell"},
}

func (sh *shell) complete(d prompt.Document) []prompt.Suggest {
	word := d.GetWordBeforeCursor()
	if strings.HasPrefix(word, ".") {
		return prompt.FilterHasPrefix(shellCommands, word, true)
	}
	if word == "" {
		return nil
	}

	var s []prompt.Suggest
	for _, name := range telemetry.Header() {
		s = append(s, prompt.Suggest{Text: name})
	}
	s = append(s,
		prompt.Suggest{Text: "telemetry", Description: "the table view"},
		prompt.Suggest{Text: "seq", Description: "1-based row position"},
	)
	return prompt.FilterHasPrefix(s, word, true)
}

func (sh *shell) execute(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if err := sh.dispatch(context.Background(), line); err != nil {
		fmt.Fprintf(sh.out, "error: %v\n", err)
	}
}

func (sh *shell) dispatch(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".exit", ".quit":
		sh.exit = true
		return nil

	case ".help":
		for _, c := range shellCommands {
			fmt.Fprintf(sh.out, "  %-9s %s\n", c.Text, c.Description)
		}
		return nil

	case ".count":
		n, err := sh.svc.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, n)
		return nil

	case ".recent":
		n := 10
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v <= 0 {
				return fmt.Errorf("bad row count %q", fields[1])
			}
			n = v
		}
		rows, err := sh.svc.Recent(ctx, n)
		if err != nil {
			return err
		}
		for _, r := range rows {
			fmt.Fprintln(sh.out, formatRow(r))
		}
		return nil

	case ".summary":
		summary, err := sh.svc.Summary(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CHANNEL\tCOUNT\tMIN\tMAX\tAVG")
		for _, s := range summary {
			fmt.Fprintf(tw, "%s\t%d\t%g\t%g\t%.4g\n", s.Channel, s.Count, s.Min, s.Max, s.Avg)
		}
		return tw.Flush()

	case ".track":
		points, err := sh.svc.Track(ctx, false)
		if err != nil {
			return err
		}
		for _, p := range points {
			fmt.Fprintln(sh.out, p)
		}
		return nil
	}

	if strings.HasPrefix(line, ".") {
		return fmt.Errorf("unknown command %s", fields[0])
	}
	return sh.query(ctx, line)
}

func (sh *shell) query(ctx context.Context, q string) error {
	cols, rows, err := sh.svc.ExecuteSQL(ctx, q)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	fmt.Fprintf(tw, "(%d rows)\n", len(rows))
	return tw.Flush()
}
