package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xtxerr/groundlink/internal/errors"
	"github.com/xtxerr/groundlink/internal/ingest"
	"github.com/xtxerr/groundlink/internal/logging"
	"github.com/xtxerr/groundlink/internal/stats"
	"github.com/xtxerr/groundlink/internal/wire"
)

// =============================================================================
// Session
// =============================================================================

// Session is the lifetime of one accepted connection.
//
// A session owns its connection and its table handle. It reads framed
// records until the peer closes, a read fails or times out, a sample cannot
// be persisted, or the context is canceled. Unparseable records are logged
// and skipped.
type Session struct {
	// Immutable fields
	ID        string
	Remote    string
	CreatedAt time.Time

	conn        net.Conn
	reader      *wire.Reader
	table       Table
	pipeline    *ingest.Pipeline
	stats       *stats.Collector
	readTimeout time.Duration
	log         *slog.Logger

	state    atomic.Int32
	onChange func(State)

	// arrival position of the last record read, including rejected ones
	position int64
}

// Result describes a finished session.
type Result struct {
	ID       string
	Remote   string
	State    State
	Err      error
	Started  time.Time
	Ended    time.Time
	Ingest   ingest.Stats
	Channels []stats.Result
}

// Duration returns how long the session was connected.
func (r Result) Duration() time.Duration {
	return r.Ended.Sub(r.Started)
}

func newSession(ctx context.Context, conn net.Conn, cfg *Config, onChange func(State)) *Session {
	id := uuid.NewString()
	remote := conn.RemoteAddr().String()

	lctx := logging.ContextWithRemote(logging.ContextWithSessionID(ctx, id), remote)

	return &Session{
		ID:          id,
		Remote:      remote,
		CreatedAt:   time.Now(),
		conn:        conn,
		reader:      wire.NewReader(conn, cfg.Framing, cfg.MaxRecordSize),
		stats:       stats.NewWithAccuracy(cfg.PercentileAccuracy),
		readTimeout: cfg.ReadTimeout,
		log:         logging.WithContext(lctx).With("component", "session"),
		onChange:    onChange,
	}
}

// State returns the current phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	if s.onChange != nil {
		s.onChange(st)
	}
}

// run drives the session to a terminal state. The connection and table
// are closed before it returns.
func (s *Session) run(ctx context.Context, cfg *Config) Result {
	s.setState(StateConnected)
	s.log.Info("session started")

	// Cancellation interrupts a blocked read by closing the connection.
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	state, err := s.open(cfg)
	if err == nil {
		state, err = s.receive(ctx)
	}
	return s.finish(state, err)
}

func (s *Session) open(cfg *Config) (State, error) {
	table, err := cfg.OpenTable(cfg.TablePath)
	if err != nil {
		s.log.Error("open table failed", "path", cfg.TablePath, "error", err,
			"code", errors.CodeName(errors.ErrorToCode(err)))
		return StateError, err
	}
	s.table = table
	s.pipeline = ingest.New(table, cfg.Store, s.stats)
	return StateConnected, nil
}

func (s *Session) receive(ctx context.Context) (State, error) {
	for {
		if s.readTimeout > 0 {
			if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
				return s.readFailure(ctx, err)
			}
		}

		raw, err := s.reader.Read()
		if err != nil {
			if errors.Is(err, errors.ErrRecordTooLarge) {
				s.position++
				s.pipeline.Reject()
				s.log.Warn("record skipped", "position", s.position, "error", err)
				continue
			}
			return s.readFailure(ctx, err)
		}
		s.position++

		if _, err := s.pipeline.Ingest(raw); err != nil {
			if errors.IsRecoverable(err) {
				s.log.Warn("record skipped", "position", s.position,
					"record", string(raw), "error", err)
				continue
			}
			s.log.Error("persist failed", "position", s.position,
				"record", string(raw), "error", err)
			return StateError, err
		}
	}
}

// readFailure maps a read error to the terminal state.
func (s *Session) readFailure(ctx context.Context, err error) (State, error) {
	switch {
	case ctx.Err() != nil:
		return StateError, fmt.Errorf("%w: %w", errors.ErrCanceled, context.Cause(ctx))
	case err == io.EOF:
		return StateClosedByPeer, nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return StateError, fmt.Errorf("no data for %s: %w", s.readTimeout, errors.ErrTimeout)
	default:
		return StateError, fmt.Errorf("read after record %d: %w: %w", s.position, errors.ErrConnection, err)
	}
}

func (s *Session) finish(state State, err error) Result {
	if cerr := s.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		s.log.Debug("close connection", "error", cerr)
	}
	if s.table != nil {
		if cerr := s.table.Close(); cerr != nil {
			s.log.Error("close table failed", "error", cerr)
			if state != StateError {
				state, err = StateError, cerr
			}
		}
	}

	res := Result{
		ID:       s.ID,
		Remote:   s.Remote,
		State:    state,
		Err:      err,
		Started:  s.CreatedAt,
		Ended:    time.Now(),
		Channels: s.stats.Results(),
	}
	if s.pipeline != nil {
		res.Ingest = s.pipeline.Stats()
	}

	s.setState(state)
	s.logSummary(res)
	return res
}

func (s *Session) logSummary(res Result) {
	attrs := []any{
		"state", res.State.String(),
		"duration", res.Duration().Round(time.Millisecond),
		"records", res.Ingest.RecordsReceived,
		"samples", res.Ingest.SamplesIngested,
		"parse_errors", res.Ingest.ParseErrors,
	}
	if res.Err != nil {
		attrs = append(attrs, "error", res.Err, "code", errors.CodeName(errors.ErrorToCode(res.Err)))
		s.log.Warn("session ended", attrs...)
	} else {
		s.log.Info("session ended", attrs...)
	}

	for _, ch := range res.Channels {
		if ch.Count == 0 {
			continue
		}
		s.log.Debug("channel summary",
			"channel", ch.Channel.String(),
			"count", ch.Count,
			"min", ch.Min,
			"max", ch.Max,
			"avg", ch.Avg,
			"p50", ch.P50,
			"p95", ch.P95)
	}
}
