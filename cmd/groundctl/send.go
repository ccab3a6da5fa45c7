package main

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/xtxerr/groundlink/config"
	"github.com/xtxerr/groundlink/internal/logging"
	"github.com/xtxerr/groundlink/internal/record"
	"github.com/xtxerr/groundlink/internal/sink"
	"github.com/xtxerr/groundlink/internal/telemetry"
	"github.com/xtxerr/groundlink/internal/wire"
)

// runSend replays a recorded table to a receiver, acting as the vehicle.
func runSend(args []string, stdout io.Writer) error {
	fset := newFlagSet("send", "[flags]")
	addr := fset.StringP("addr", "a", "127.0.0.1:8080", "receiver address")
	table := fset.StringP("table", "t", config.DefaultTablePath, "CSV table to replay")
	framing := fset.String("framing", config.DefaultFraming, "line or varint")
	interval := fset.Duration("interval", 0, "pause between records")
	limit := fset.Int("count", 0, "stop after this many records (0 = all)")
	if err := parse(fset, args); err != nil {
		return err
	}

	fr, err := wire.ParseFraming(*framing)
	if err != nil {
		return err
	}

	conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	log := logging.Component("send")
	log.Info("connected", "remote", conn.RemoteAddr().String(), "framing", fr.String())

	w := wire.NewWriter(conn, fr)
	sent := 0
	err = sink.Scan(*table, func(_ int, s telemetry.Sample) error {
		if *limit > 0 && sent >= *limit {
			return errStop
		}
		if err := w.Write(record.Format(s)); err != nil {
			return err
		}
		sent++
		if *interval > 0 {
			time.Sleep(*interval)
		}
		return nil
	}, func(rerr *sink.RowError) {
		log.Warn("skipping table line", "line", rerr.Line, "error", rerr.Err)
	})
	if err != nil && err != errStop {
		return err
	}

	fmt.Fprintf(stdout, "sent %d records to %s\n", sent, *addr)
	return nil
}

var errStop = fmt.Errorf("stop")
