// Package monitor drives the presentation refresh.
//
// A Monitor reads a consistent window frame on a fixed cadence,
// independent of ingestion, and hands it to a Consumer. A second, slower
// cadence reads the whole-table summary for retrospective views. Consumers
// must tolerate an empty store and a missing table.
package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xtxerr/groundlink/config"
	"github.com/xtxerr/groundlink/internal/history"
	"github.com/xtxerr/groundlink/internal/logging"
	"github.com/xtxerr/groundlink/internal/telemetry"
	"github.com/xtxerr/groundlink/internal/window"
)

var log = logging.Component("monitor")

// Consumer receives live frames.
type Consumer interface {
	Refresh(frame window.Frame)
}

// HistoryConsumer optionally receives whole-table summaries.
type HistoryConsumer interface {
	RefreshHistory(summary []history.ChannelSummary)
}

// Summarizer computes the whole-table summary.
type Summarizer interface {
	Summary(ctx context.Context) ([]history.ChannelSummary, error)
}

// Config holds monitor configuration.
type Config struct {
	// RefreshInterval is the live frame cadence.
	RefreshInterval time.Duration

	// HistoryInterval is the summary cadence. Zero disables it.
	HistoryInterval time.Duration

	Store    *window.Store
	History  Summarizer // optional
	Consumer Consumer
}

// Monitor runs the refresh loops.
type Monitor struct {
	cfg Config

	// Statistics
	refreshes        atomic.Int64
	historyRefreshes atomic.Int64
	historyErrors    atomic.Int64
}

// New creates a Monitor. A nil Consumer selects LogConsumer.
func New(cfg Config) *Monitor {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = config.DefaultRefreshInterval
	}
	if cfg.Store == nil {
		cfg.Store = window.New()
	}
	if cfg.Consumer == nil {
		cfg.Consumer = &LogConsumer{}
	}
	return &Monitor{cfg: cfg}
}

// Run refreshes until ctx is canceled. It always returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	refresh := time.NewTicker(m.cfg.RefreshInterval)
	defer refresh.Stop()

	var historyC <-chan time.Time
	if m.cfg.History != nil && m.cfg.HistoryInterval > 0 {
		t := time.NewTicker(m.cfg.HistoryInterval)
		defer t.Stop()
		historyC = t.C
		m.refreshHistory(ctx)
	}

	log.Debug("monitor started", "refresh", m.cfg.RefreshInterval, "history", m.cfg.HistoryInterval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refresh.C:
			m.cfg.Consumer.Refresh(m.cfg.Store.SnapshotAll())
			m.refreshes.Add(1)
		case <-historyC:
			m.refreshHistory(ctx)
		}
	}
}

func (m *Monitor) refreshHistory(ctx context.Context) {
	hc, ok := m.cfg.Consumer.(HistoryConsumer)
	if !ok {
		return
	}

	summary, err := m.cfg.History.Summary(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.historyErrors.Add(1)
			log.Warn("history refresh failed", "error", err)
		}
		return
	}
	hc.RefreshHistory(summary)
	m.historyRefreshes.Add(1)
}

// Stats holds monitor statistics.
type Stats struct {
	Refreshes        int64
	HistoryRefreshes int64
	HistoryErrors    int64
}

// Stats returns current statistics.
func (m *Monitor) Stats() Stats {
	return Stats{
		Refreshes:        m.refreshes.Load(),
		HistoryRefreshes: m.historyRefreshes.Load(),
		HistoryErrors:    m.historyErrors.Load(),
	}
}

// =============================================================================
// Log Consumer
// =============================================================================

// LogConsumer logs the newest value of each channel at debug level whenever
// a new sample has arrived, and the table row count on each summary.
type LogConsumer struct {
	lastSeq atomic.Uint64
}

// Refresh implements Consumer.
func (c *LogConsumer) Refresh(frame window.Frame) {
	if frame.Seq == 0 || frame.Seq == c.lastSeq.Swap(frame.Seq) {
		return
	}

	attrs := make([]any, 0, 2+2*telemetry.WindowedCount)
	attrs = append(attrs, "seq", frame.Seq)
	for _, ch := range telemetry.WindowedChannels() {
		if v, ok := frame.Latest(ch); ok {
			attrs = append(attrs, ch.String(), v)
		}
	}
	log.Debug("live", attrs...)
}

// RefreshHistory implements HistoryConsumer.
func (c *LogConsumer) RefreshHistory(summary []history.ChannelSummary) {
	if len(summary) == 0 {
		return
	}
	log.Info("table summary", "rows", summary[0].Count)
}
