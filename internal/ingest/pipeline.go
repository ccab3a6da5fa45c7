// Package ingest turns raw records into stored samples.
//
// A Pipeline parses one record and fans the sample out in a fixed order:
// first the durable sink, then the live window store, then any observers.
// A sample therefore never becomes live before it is persisted.
package ingest

import (
	"sync/atomic"

	"github.com/xtxerr/groundlink/internal/record"
	"github.com/xtxerr/groundlink/internal/telemetry"
)

// Sink receives every parsed sample before it becomes live.
type Sink interface {
	Append(telemetry.Sample) error
}

// Window receives every persisted sample.
type Window interface {
	Append(telemetry.Sample)
}

// Observer is notified after a sample is stored.
type Observer interface {
	Observe(telemetry.Sample)
}

// Pipeline parses and stores samples for one session.
// It is meant for a single writer goroutine; Stats may be read concurrently.
type Pipeline struct {
	sink      Sink
	window    Window
	observers []Observer

	// Statistics
	stats stats
}

type stats struct {
	received      atomic.Int64
	ingested      atomic.Int64
	parseErrors   atomic.Int64
	persistErrors atomic.Int64
}

// Stats is a point-in-time copy of pipeline counters.
type Stats struct {
	// Records handed to Ingest, including unparseable ones.
	RecordsReceived int64
	// Samples persisted and published to the window.
	SamplesIngested int64
	ParseErrors     int64
	PersistErrors   int64
}

// New creates a Pipeline. window may be nil.
func New(sink Sink, window Window, observers ...Observer) *Pipeline {
	return &Pipeline{
		sink:      sink,
		window:    window,
		observers: observers,
	}
}

// Ingest parses one raw record and stores the sample.
//
// A *record.ParseError means the record was skipped; the caller may keep
// going. Any other error comes from the sink and the sample is not live.
func (p *Pipeline) Ingest(raw []byte) (telemetry.Sample, error) {
	p.stats.received.Add(1)

	sample, err := record.Parse(raw)
	if err != nil {
		p.stats.parseErrors.Add(1)
		return sample, err
	}

	return sample, p.store(sample)
}

// IngestSample stores an already parsed sample.
func (p *Pipeline) IngestSample(sample telemetry.Sample) error {
	p.stats.received.Add(1)
	return p.store(sample)
}

// Reject counts a record that was dropped before parsing, such as an
// oversize frame.
func (p *Pipeline) Reject() {
	p.stats.received.Add(1)
	p.stats.parseErrors.Add(1)
}

func (p *Pipeline) store(sample telemetry.Sample) error {
	if err := p.sink.Append(sample); err != nil {
		p.stats.persistErrors.Add(1)
		return err
	}

	if p.window != nil {
		p.window.Append(sample)
	}
	for _, o := range p.observers {
		o.Observe(sample)
	}

	p.stats.ingested.Add(1)
	return nil
}

// Stats returns current counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		RecordsReceived: p.stats.received.Load(),
		SamplesIngested: p.stats.ingested.Load(),
		ParseErrors:     p.stats.parseErrors.Load(),
		PersistErrors:   p.stats.persistErrors.Load(),
	}
}
