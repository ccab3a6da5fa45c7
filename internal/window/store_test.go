package window

import (
	"fmt"
	"testing"

	"github.com/xtxerr/groundlink/internal/errors"
	"github.com/xtxerr/groundlink/internal/telemetry"
	testutil "github.com/xtxerr/groundlink/internal/testing"
)

func TestStore_Empty(t *testing.T) {
	s := New()

	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
	if s.Cap() != 50 {
		t.Errorf("expected capacity 50, got %d", s.Cap())
	}
	if w := s.Snapshot(telemetry.AccX); len(w) != 0 {
		t.Errorf("expected empty snapshot, got %v", w)
	}
	if _, ok := s.Latest(); ok {
		t.Error("Latest should report !ok on empty store")
	}

	f := s.SnapshotAll()
	if f.Len() != 0 || f.Seq != 0 {
		t.Errorf("unexpected frame %+v", f)
	}
	if _, ok := f.Latest(telemetry.GyroY); ok {
		t.Error("empty frame should have no latest value")
	}
}

func TestStore_HoldsLastN(t *testing.T) {
	for _, n := range []int{1, 2, 49, 50, 51, 75, 100, 1000} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			s := New()
			for _, sample := range testutil.Samples(n) {
				s.Append(sample)
			}

			want := n
			if want > 50 {
				want = 50
			}

			for _, c := range telemetry.WindowedChannels() {
				w := s.Snapshot(c)
				if len(w) != want {
					t.Fatalf("channel %s: expected %d values, got %d", c, want, len(w))
				}
				first := n - want + 1
				for i, v := range w {
					if pos := testutil.Position(c, v); pos != first+i {
						t.Fatalf("channel %s index %d: got sample %d, want %d", c, i, pos, first+i)
					}
				}
			}
		})
	}
}

func TestStore_EvictsOldestAfter51(t *testing.T) {
	s := New()
	for _, sample := range testutil.Samples(51) {
		s.Append(sample)
	}

	for _, c := range telemetry.WindowedChannels() {
		w := s.Snapshot(c)
		if len(w) != 50 {
			t.Fatalf("channel %s: expected 50 values, got %d", c, len(w))
		}
		first := testutil.Sample(1).Get(c)
		for _, v := range w {
			if v == first {
				t.Fatalf("channel %s still contains sample 1", c)
			}
		}
		if testutil.Position(c, w[0]) != 2 || testutil.Position(c, w[49]) != 51 {
			t.Errorf("channel %s: expected samples 2..51, got %v..%v", c, w[0], w[49])
		}
	}

	stats := s.Stats()
	if stats.AppendCount != 51 || stats.EvictCount != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := New()
	s.Append(testutil.Sample(1))

	w := s.Snapshot(telemetry.MagZ)
	w[0] = -999

	if s.Snapshot(telemetry.MagZ)[0] == -999 {
		t.Error("snapshot aliases store memory")
	}

	f := s.SnapshotAll()
	f.Windows[0] = append(f.Windows[0], 1)
	if f.Windows[1][0] != testutil.Sample(1).Get(telemetry.AccY) {
		t.Error("appending to one frame window overwrote another")
	}
}

func TestStore_PositionNotWindowed(t *testing.T) {
	s := New()
	s.Append(testutil.Sample(1))

	if s.Snapshot(telemetry.Latitude) != nil {
		t.Error("latitude must not be windowed")
	}
	f := s.SnapshotAll()
	if f.Window(telemetry.Longitude) != nil {
		t.Error("longitude must not be windowed")
	}
}

func TestStore_Latest(t *testing.T) {
	s := New()
	for _, sample := range testutil.Samples(60) {
		s.Append(sample)
	}

	latest, ok := s.Latest()
	if !ok {
		t.Fatal("expected latest values")
	}
	want := testutil.Sample(60)
	for i := range latest {
		if latest[i] != want.Fields[i] {
			t.Errorf("channel %d: got %v, want %v", i, latest[i], want.Fields[i])
		}
	}
	if s.Seq() != 60 {
		t.Errorf("expected seq 60, got %d", s.Seq())
	}
}

func TestStore_Reset(t *testing.T) {
	s := New()
	for _, sample := range testutil.Samples(10) {
		s.Append(sample)
	}
	s.Reset()

	if s.Len() != 0 || s.Seq() != 0 {
		t.Errorf("expected empty store after reset, len=%d seq=%d", s.Len(), s.Seq())
	}
	s.Append(testutil.Sample(11))
	if w := s.Snapshot(telemetry.AccX); len(w) != 1 || testutil.Position(telemetry.AccX, w[0]) != 11 {
		t.Errorf("unexpected window after reset: %v", w)
	}
}

func TestStore_ConsistentFrames(t *testing.T) {
	s := New()
	gt := testutil.NewGoroutineTest(t)

	const total = 5000

	gt.Go(func() error {
		for _, sample := range testutil.Samples(total) {
			s.Append(sample)
		}
		return nil
	})

	for r := 0; r < 4; r++ {
		gt.Go(func() error {
			for s.Seq() < total {
				f := s.SnapshotAll()
				n := f.Len()
				if n > 50 {
					return fmt.Errorf("window length %d exceeds capacity", n)
				}
				if n == 0 {
					continue
				}
				newest := int(f.Seq)
				for _, c := range telemetry.WindowedChannels() {
					w := f.Window(c)
					if len(w) != n {
						return fmt.Errorf("seq %d: channel %s has %d values, want %d", f.Seq, c, len(w), n)
					}
					if pos := testutil.Position(c, w[n-1]); pos != newest {
						return fmt.Errorf("seq %d: channel %s newest is sample %d", f.Seq, c, pos)
					}
				}
			}
			return nil
		})
	}

	gt.Wait()
}

func TestRing_InvariantPanics(t *testing.T) {
	r := newRing(3)
	r.count = 4

	defer func() {
		rec := recover()
		err, ok := rec.(error)
		if !ok || !errors.Is(err, errors.ErrCapacityInvariant) {
			t.Errorf("expected ErrCapacityInvariant panic, got %v", rec)
		}
	}()
	r.check()
}

func BenchmarkStore_Append(b *testing.B) {
	s := New()
	sample := testutil.Sample(1)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s.Append(sample)
	}
}
