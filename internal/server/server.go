// Package server provides the telemetry listener and its connection
// sessions.
//
// The listener accepts one connection at a time and runs it to completion
// before accepting the next. Further connections wait in the kernel accept
// queue until the active session ends. Every session appends to the same
// durable table and feeds the same window store, so samples from
// consecutive sessions keep their arrival order.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/groundlink/config"
	"github.com/xtxerr/groundlink/internal/errors"
	"github.com/xtxerr/groundlink/internal/logging"
	"github.com/xtxerr/groundlink/internal/sink"
	"github.com/xtxerr/groundlink/internal/stats"
	"github.com/xtxerr/groundlink/internal/telemetry"
	"github.com/xtxerr/groundlink/internal/window"
	"github.com/xtxerr/groundlink/internal/wire"
)

var log = logging.Component("server")

// acceptBackoff is the pause after a failed accept.
const acceptBackoff = 100 * time.Millisecond

// =============================================================================
// Configuration
// =============================================================================

// Table is the durable sink a session appends to.
type Table interface {
	Append(telemetry.Sample) error
	Close() error
}

// Config holds listener configuration.
type Config struct {
	// Listen is the address to listen on (e.g., "0.0.0.0:8080").
	Listen string

	// ReadTimeout ends a session that receives nothing for this long.
	// Zero disables the timeout.
	ReadTimeout time.Duration

	// Record framing.
	Framing       wire.Framing
	MaxRecordSize int

	// TablePath is the CSV table every session appends to.
	TablePath    string
	TableOptions sink.Options

	// OpenTable opens the table for one session.
	// Default: sink.Open(path, TableOptions)
	OpenTable func(path string) (Table, error)

	// Store receives every persisted sample. Default: a new window store.
	Store *window.Store

	// PercentileAccuracy for per-session channel statistics.
	// Zero disables percentiles.
	PercentileAccuracy float64

	// OnSessionEnd is called after each session ends, before the next
	// accept.
	OnSessionEnd func(Result)
}

// DefaultConfig returns a listener configuration with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Listen:             config.DefaultListenAddress,
		ReadTimeout:        config.DefaultReadTimeout,
		Framing:            wire.FramingLine,
		MaxRecordSize:      config.DefaultMaxRecordSize,
		TablePath:          config.DefaultTablePath,
		TableOptions:       sink.DefaultOptions(),
		PercentileAccuracy: stats.DefaultAccuracy,
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.Listen == "" {
		cfg.Listen = config.DefaultListenAddress
	}
	if cfg.MaxRecordSize <= 0 {
		cfg.MaxRecordSize = config.DefaultMaxRecordSize
	}
	if cfg.TablePath == "" {
		cfg.TablePath = config.DefaultTablePath
	}
	if cfg.Store == nil {
		cfg.Store = window.New()
	}
	if cfg.OpenTable == nil {
		opts := cfg.TableOptions
		cfg.OpenTable = func(path string) (Table, error) {
			t, err := sink.Open(path, opts)
			if err != nil {
				return nil, err
			}
			return t, nil
		}
	}
}

// =============================================================================
// Listener
// =============================================================================

// Listener owns the bound endpoint and runs sessions serially.
type Listener struct {
	cfg Config
	ln  net.Listener

	running atomic.Bool
	state   atomic.Int32

	// Statistics
	sessions atomic.Int64
	peerEnds atomic.Int64
	failures atomic.Int64

	lastMu sync.RWMutex
	last   *Result
}

// Listen binds the endpoint. Connections queue in the kernel until Run.
func Listen(cfg *Config) (*Listener, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	c.applyDefaults()

	ln, err := net.Listen("tcp", c.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w: %w", c.Listen, errors.ErrConnection, err)
	}
	log.Info("listening", "address", ln.Addr().String(), "framing", c.Framing.String(),
		"table", c.TablePath, "read_timeout", c.ReadTimeout)

	return &Listener{cfg: c, ln: ln}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Store returns the window store fed by every session.
func (l *Listener) Store() *window.Store {
	return l.cfg.Store
}

// State returns the current phase of the receive loop.
func (l *Listener) State() State {
	return State(l.state.Load())
}

func (l *Listener) setState(st State) {
	l.state.Store(int32(st))
}

// Run accepts and serves connections until ctx is canceled or the listener
// is closed. An active session is interrupted on cancellation.
// Run returns nil on a cooperative stop.
func (l *Listener) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.ErrAlreadyRunning
	}
	defer l.running.Store(false)

	stop := context.AfterFunc(ctx, func() { l.ln.Close() })
	defer stop()

	for {
		l.setState(StateListening)

		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Info("listener stopped", "sessions", l.sessions.Load())
				return nil
			}
			log.Error("accept error", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(acceptBackoff):
			}
			continue
		}

		l.sessions.Add(1)
		sess := newSession(ctx, conn, &l.cfg, l.setState)
		res := sess.run(ctx, &l.cfg)
		l.record(res)

		if ctx.Err() != nil {
			log.Info("listener stopped", "sessions", l.sessions.Load())
			return nil
		}
	}
}

func (l *Listener) record(res Result) {
	if res.State == StateClosedByPeer {
		l.peerEnds.Add(1)
	} else {
		l.failures.Add(1)
	}

	l.lastMu.Lock()
	l.last = &res
	l.lastMu.Unlock()

	if l.cfg.OnSessionEnd != nil {
		l.cfg.OnSessionEnd(res)
	}
}

// LastSession returns the result of the most recent session.
func (l *Listener) LastSession() (Result, bool) {
	l.lastMu.RLock()
	defer l.lastMu.RUnlock()
	if l.last == nil {
		return Result{}, false
	}
	return *l.last, true
}

// Close closes the endpoint. A running Run returns nil.
func (l *Listener) Close() error {
	err := l.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Stats holds listener statistics.
type Stats struct {
	Running  bool
	State    State
	Sessions int64
	PeerEnds int64
	Failures int64
}

// Stats returns current statistics.
func (l *Listener) Stats() Stats {
	return Stats{
		Running:  l.running.Load(),
		State:    l.State(),
		Sessions: l.sessions.Load(),
		PeerEnds: l.peerEnds.Load(),
		Failures: l.failures.Load(),
	}
}
