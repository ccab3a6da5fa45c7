package stats

import (
	"math"
	"testing"

	"github.com/xtxerr/groundlink/internal/telemetry"
	testutil "github.com/xtxerr/groundlink/internal/testing"
)

func TestCollector_Empty(t *testing.T) {
	c := New()

	if c.Count() != 0 {
		t.Errorf("expected 0, got %d", c.Count())
	}
	r := c.Channel(telemetry.AccX)
	if r.Count != 0 || r.Min != 0 || r.Max != 0 || r.HasPercentiles {
		t.Errorf("unexpected empty result %+v", r)
	}
}

func TestCollector_Observe(t *testing.T) {
	c := New()
	for _, s := range testutil.Samples(100) {
		c.Observe(s)
	}

	if c.Count() != 100 {
		t.Fatalf("expected 100, got %d", c.Count())
	}

	r := c.Channel(telemetry.AccX)
	if r.Min != 1 || r.Max != 100 {
		t.Errorf("min/max = %v/%v, want 1/100", r.Min, r.Max)
	}
	if math.Abs(r.Avg-50.5) > 1e-9 {
		t.Errorf("avg = %v, want 50.5", r.Avg)
	}
	if !r.HasPercentiles {
		t.Fatal("expected percentiles")
	}
	if math.Abs(r.P50-50) > 2 {
		t.Errorf("p50 = %v, want ~50", r.P50)
	}
	if math.Abs(r.P95-95) > 2 {
		t.Errorf("p95 = %v, want ~95", r.P95)
	}

	// Negative values are tracked too.
	lon := c.Channel(telemetry.Longitude)
	if lon.Max >= 0 || lon.Min >= lon.Max {
		t.Errorf("unexpected longitude range %+v", lon)
	}
	if !lon.HasPercentiles || lon.P50 >= 0 {
		t.Errorf("unexpected longitude percentiles %+v", lon)
	}

	results := c.Results()
	if len(results) != telemetry.FieldCount {
		t.Fatalf("expected %d results, got %d", telemetry.FieldCount, len(results))
	}
	for i, r := range results {
		if r.Channel != telemetry.Channel(i) {
			t.Errorf("result %d has channel %s", i, r.Channel)
		}
	}
}

func TestCollector_NoPercentiles(t *testing.T) {
	c := NewWithAccuracy(0)
	c.Observe(testutil.Sample(1))

	if r := c.Channel(telemetry.GyroX); r.HasPercentiles {
		t.Errorf("percentiles should be disabled: %+v", r)
	}
}

func TestCollector_Merge(t *testing.T) {
	a, b := New(), New()
	for i := 1; i <= 10; i++ {
		a.Observe(testutil.Sample(i))
	}
	for i := 11; i <= 30; i++ {
		b.Observe(testutil.Sample(i))
	}

	a.Merge(b)
	a.Merge(nil)
	a.Merge(a)

	if a.Count() != 30 {
		t.Fatalf("expected 30, got %d", a.Count())
	}
	if b.Count() != 20 {
		t.Errorf("merge modified source: %d", b.Count())
	}
	r := a.Channel(telemetry.AccX)
	if r.Min != 1 || r.Max != 30 {
		t.Errorf("min/max = %v/%v, want 1/30", r.Min, r.Max)
	}
}

func TestCollector_Reset(t *testing.T) {
	c := New()
	c.Observe(testutil.Sample(5))
	c.Reset()

	if c.Count() != 0 {
		t.Errorf("expected 0 after reset, got %d", c.Count())
	}
}
