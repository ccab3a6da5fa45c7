package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/xtxerr/groundlink/internal/geo"
	"github.com/xtxerr/groundlink/internal/logging"
	"github.com/xtxerr/groundlink/internal/lora"
)

// runDecode prints one row per gateway log line. "-" reads stdin.
func runDecode(args []string, stdout io.Writer) error {
	fset := newFlagSet("decode", "[flags] FILE")
	strict := fset.Bool("strict", false, "stop at the first undecodable line")
	nmea := fset.Bool("nmea", false, "beacon coordinates are ddmm.mmmm, convert to degrees")
	if err := parse(fset, args); err != nil {
		return err
	}
	if fset.NArg() != 1 {
		fset.Usage()
		return fmt.Errorf("expected one FILE argument")
	}

	var in io.Reader = os.Stdin
	if path := fset.Arg(0); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	log := logging.Component("decode")
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tRSSI\tSNR\tBUTTON\tPOSITION\tPAYLOAD")

	var decoded, bad int
	onError := func(err error) error {
		bad++
		log.Warn("skipping line", "error", err)
		return nil
	}
	if *strict {
		onError = nil
	}

	err := lora.Scan(in, func(line int, p lora.Packet) error {
		decoded++
		button, position := "-", "-"
		if b, err := lora.ParseBeacon(p.Payload); err == nil {
			pt := b.Position
			if *nmea {
				pt = geo.PointFromNMEA(pt.Lat, pt.Lon)
			}
			button, position = fmt.Sprint(b.Button), pt.String()
		}
		fmt.Fprintf(tw, "%d\t%d\t%.1f\t%s\t%s\t%q\n", line, p.RSSI, p.SNR, button, position, p.Payload)
		return nil
	}, onError)
	if ferr := tw.Flush(); err == nil {
		err = ferr
	}
	if err != nil {
		return err
	}

	log.Info("decoded", "packets", decoded, "skipped", bad)
	return nil
}
