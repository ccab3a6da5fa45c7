// groundctl works with the recorded telemetry table and gateway logs
// offline, and can replay a table to a running groundlinkd.
//
// Usage:
//
//	groundctl <command> [flags]
//
// Commands:
//
//	decode   decode a hex gateway log
//	export   write the table to a Parquet file
//	summary  per-channel statistics of the table
//	tail     print the last rows of the table
//	send     replay the table to a receiver
//	shell    interactive SQL over the table
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/pflag"

	"github.com/xtxerr/groundlink/internal/logging"
)

type command struct {
	summary string
	run     func(args []string, stdout io.Writer) error
}

var commands = map[string]command{
	"decode":  {"decode a hex gateway log", runDecode},
	"export":  {"write the table to a Parquet file", runExport},
	"summary": {"per-channel statistics of the table", runSummary},
	"tail":    {"print the last rows of the table", runTail},
	"send":    {"replay the table to a receiver", runSend},
	"shell":   {"interactive SQL over the table", runShell},
}

func main() {
	logging.InitWithHandler(logging.NewHandler(os.Stderr, logLevel(), logging.FormatPretty))

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	name := os.Args[1]
	if name == "help" || name == "-h" || name == "--help" {
		usage(os.Stdout)
		return
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "groundctl: unknown command %q\n\n", name)
		usage(os.Stderr)
		os.Exit(2)
	}

	if err := cmd.run(os.Args[2:], os.Stdout); err != nil && err != errHelp {
		fmt.Fprintf(os.Stderr, "groundctl %s: %v\n", name, err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: groundctl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
}

// logLevel reads GROUNDCTL_LOG_LEVEL; warnings only by default.
func logLevel() slog.Level {
	if s := os.Getenv("GROUNDCTL_LOG_LEVEL"); s != "" {
		if level, err := logging.ParseLevel(s); err == nil {
			return level
		}
	}
	return slog.LevelWarn
}

// newFlagSet returns a subcommand flag set that reports errors instead of
// exiting.
func newFlagSet(name, args string) *pflag.FlagSet {
	fset := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fset.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: groundctl %s %s\n", name, args)
		fset.PrintDefaults()
	}
	return fset
}

// parse parses flags; a help request is reported as errHelp.
func parse(fset *pflag.FlagSet, args []string) error {
	if err := fset.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

var errHelp = fmt.Errorf("help requested")
