// groundlinkd is the ground-station telemetry receiver daemon.
//
// It accepts one vehicle connection at a time, appends every valid record
// to the CSV table, and keeps the rolling per-channel windows the live view
// reads.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/groundlink/internal/history"
	"github.com/xtxerr/groundlink/internal/loader"
	"github.com/xtxerr/groundlink/internal/logging"
	"github.com/xtxerr/groundlink/internal/monitor"
	"github.com/xtxerr/groundlink/internal/server"
	"github.com/xtxerr/groundlink/internal/window"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "groundlinkd: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	config      string
	listen      string
	table       string
	logLevel    string
	logFormat   string
	framing     string
	readTimeout time.Duration
	noHistory   bool
}

func run(args []string) error {
	var f flags
	fset := pflag.NewFlagSet("groundlinkd", pflag.ContinueOnError)
	fset.StringVarP(&f.config, "config", "c", "groundlink.yaml", "config file path")
	fset.StringVarP(&f.listen, "listen", "l", "", "listen address (overrides config)")
	fset.StringVarP(&f.table, "table", "t", "", "CSV table path (overrides config)")
	fset.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	fset.StringVar(&f.logFormat, "log-format", "", "text, json or pretty (overrides config)")
	fset.StringVar(&f.framing, "framing", "", "line or varint (overrides config)")
	fset.DurationVar(&f.readTimeout, "read-timeout", 0, "session read timeout (overrides config)")
	fset.BoolVar(&f.noHistory, "no-history", false, "disable the table summary refresh")
	if err := fset.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// =========================================================================
	// Configuration
	// =========================================================================

	cfg, err := loader.Load(f.config)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || fset.Changed("config") {
			return err
		}
		cfg = loader.DefaultConfig()
	}
	f.apply(cfg, fset)

	if err := loader.Validate(cfg); err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	format, _ := logging.ParseFormat(cfg.Log.Format)
	logging.Init(level, format)
	log := logging.Component("main")
	log.Info("groundlinkd starting", "version", Version, "config", f.config)

	serverCfg, err := loader.ToServerConfig(cfg)
	if err != nil {
		return err
	}
	store := window.New()
	serverCfg.Store = store

	// =========================================================================
	// Listener
	// =========================================================================

	ln, err := server.Listen(serverCfg)
	if err != nil {
		return err
	}
	log.Info("listening", "address", ln.Addr().String(), "table", serverCfg.TablePath,
		"framing", serverCfg.Framing.String())

	// =========================================================================
	// Monitor
	// =========================================================================

	monCfg := monitor.Config{
		RefreshInterval: cfg.Monitor.RefreshInterval.Duration(),
		HistoryInterval: cfg.Monitor.HistoryInterval.Duration(),
		Store:           store,
	}

	var hist *history.Service
	if monCfg.HistoryInterval > 0 {
		hist, err = history.New(cfg.Table.Path, loader.ToHistoryOptions(cfg))
		if err != nil {
			log.Warn("history disabled", "error", err)
			monCfg.HistoryInterval = 0
		} else {
			monCfg.History = hist
			defer hist.Close()
		}
	}
	mon := monitor.New(monCfg)

	// =========================================================================
	// Run until signaled
	// =========================================================================

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ln.Run(gctx) })
	g.Go(func() error { return mon.Run(gctx) })

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		log.Info("shutting down")
		select {
		case err = <-done:
		case <-time.After(cfg.Shutdown.DrainTimeout.Duration()):
			ln.Close()
			err = fmt.Errorf("drain timeout after %s", cfg.Shutdown.DrainTimeout.Duration())
		}
	}

	st := ln.Stats()
	log.Info("stopped", "sessions", st.Sessions, "peer_ends", st.PeerEnds, "failures", st.Failures)
	return err
}

// apply overrides file settings with explicitly set flags.
func (f *flags) apply(cfg *loader.Config, fset *pflag.FlagSet) {
	if f.listen != "" {
		cfg.Listen = f.listen
	}
	if f.table != "" {
		cfg.Table.Path = f.table
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if f.framing != "" {
		cfg.Session.Framing = f.framing
	}
	if fset.Changed("read-timeout") {
		cfg.Session.ReadTimeout = loader.Duration(f.readTimeout)
	}
	if f.noHistory {
		cfg.Monitor.HistoryInterval = 0
	}
}
