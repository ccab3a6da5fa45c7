package ingest

import (
	"errors"
	"path/filepath"
	"testing"

	gerrors "github.com/xtxerr/groundlink/internal/errors"
	"github.com/xtxerr/groundlink/internal/record"
	"github.com/xtxerr/groundlink/internal/sink"
	"github.com/xtxerr/groundlink/internal/telemetry"
	testutil "github.com/xtxerr/groundlink/internal/testing"
	"github.com/xtxerr/groundlink/internal/window"
)

// memSink records appends and optionally fails from a given call on.
type memSink struct {
	samples []telemetry.Sample
	failAt  int
	err     error
}

func (m *memSink) Append(s telemetry.Sample) error {
	if m.failAt > 0 && len(m.samples)+1 >= m.failAt {
		return m.err
	}
	m.samples = append(m.samples, s)
	return nil
}

type orderCheck struct {
	t    *testing.T
	sink *memSink
	seen int
}

func (o *orderCheck) Append(s telemetry.Sample) {
	o.seen++
	if len(o.sink.samples) < o.seen {
		o.t.Errorf("sample %d became live before it was persisted", o.seen)
	}
}

func TestPipeline_Ingest(t *testing.T) {
	ms := &memSink{}
	store := window.New()
	p := New(ms, store)

	for i := 1; i <= 60; i++ {
		got, err := p.Ingest(testutil.Record(i))
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if got != testutil.Sample(i) {
			t.Fatalf("record %d parsed to %v", i, got)
		}
	}

	if len(ms.samples) != 60 {
		t.Errorf("sink has %d samples, want 60", len(ms.samples))
	}
	if store.Len() != 50 {
		t.Errorf("window has %d values, want 50", store.Len())
	}

	st := p.Stats()
	if st.RecordsReceived != 60 || st.SamplesIngested != 60 || st.ParseErrors != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestPipeline_ParseErrorContinues(t *testing.T) {
	ms := &memSink{}
	store := window.New()
	p := New(ms, store)

	bad := [][]byte{
		[]byte("1,2,3,4,5,6,7,8,9,10,11,12,13,14"),
		[]byte("1,2,3,4,5,6,7,8,9,10,11,12,13,14,15,16"),
		[]byte("1,2,3,4,5,6,7,x,9,10,11,12,13,14,15"),
	}

	if _, err := p.Ingest(testutil.Record(1)); err != nil {
		t.Fatal(err)
	}
	for _, raw := range bad {
		_, err := p.Ingest(raw)
		var perr *record.ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("%q: expected *ParseError, got %v", raw, err)
		}
		if !gerrors.IsRecoverable(err) {
			t.Errorf("%q: parse error should be recoverable", raw)
		}
	}
	if _, err := p.Ingest(testutil.Record(2)); err != nil {
		t.Fatalf("valid record after bad ones: %v", err)
	}

	if len(ms.samples) != 2 || ms.samples[1] != testutil.Sample(2) {
		t.Errorf("unexpected sink contents %v", ms.samples)
	}
	st := p.Stats()
	if st.ParseErrors != 3 || st.SamplesIngested != 2 || st.RecordsReceived != 5 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestPipeline_PersistBeforeLive(t *testing.T) {
	ms := &memSink{}
	p := New(ms, &orderCheck{t: t, sink: ms})

	for i := 1; i <= 10; i++ {
		if err := p.IngestSample(testutil.Sample(i)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPipeline_PersistFailure(t *testing.T) {
	boom := errors.New("disk full")
	ms := &memSink{failAt: 3, err: boom}
	store := window.New()
	p := New(ms, store)

	for i := 1; i <= 2; i++ {
		if _, err := p.Ingest(testutil.Record(i)); err != nil {
			t.Fatal(err)
		}
	}
	_, err := p.Ingest(testutil.Record(3))
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}

	// The failed sample must not be live.
	if store.Seq() != 2 {
		t.Errorf("window seq = %d, want 2", store.Seq())
	}
	if st := p.Stats(); st.PersistErrors != 1 || st.SamplesIngested != 2 {
		t.Errorf("unexpected stats %+v", st)
	}
}

type countObserver struct{ n int }

func (c *countObserver) Observe(telemetry.Sample) { c.n++ }

func TestPipeline_TableRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datos.csv")
	tbl, err := sink.Open(path, sink.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	obs := &countObserver{}
	p := New(tbl, nil, obs)
	for i := 1; i <= 25; i++ {
		if _, err := p.Ingest(testutil.Record(i)); err != nil {
			t.Fatal(err)
		}
	}
	p.Reject()
	if err := tbl.Close(); err != nil {
		t.Fatal(err)
	}

	rows, err := sink.ReadAll(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 25 || obs.n != 25 {
		t.Fatalf("rows=%d observed=%d, want 25", len(rows), obs.n)
	}
	for i, r := range rows {
		if r != testutil.Sample(i+1) {
			t.Fatalf("row %d mismatch", i+1)
		}
	}

	// Closed sink fails with a persistence error.
	_, err = p.Ingest(testutil.Record(26))
	if !gerrors.IsPersistence(err) || !gerrors.IsSessionFatal(err) {
		t.Errorf("expected fatal persistence error, got %v", err)
	}
	if st := p.Stats(); st.ParseErrors != 1 || st.RecordsReceived != 27 {
		t.Errorf("unexpected stats %+v", st)
	}
}
