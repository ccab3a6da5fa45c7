// Package stats keeps running per-channel statistics over a stream of
// samples: count, sum, min, max and DDSketch percentiles.
package stats

import (
	"math"
	"sync"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/xtxerr/groundlink/internal/telemetry"
)

// DefaultAccuracy is the relative accuracy of percentile estimates.
const DefaultAccuracy = 0.01

// Aggregate maintains running statistics for one channel.
type Aggregate struct {
	count int64
	sum   float64
	min   float64
	max   float64

	// nil if percentiles are disabled
	sketch *ddsketch.DDSketch
}

func newAggregate(accuracy float64) Aggregate {
	a := Aggregate{min: math.MaxFloat64, max: -math.MaxFloat64}
	if accuracy > 0 {
		if sketch, err := ddsketch.NewDefaultDDSketch(accuracy); err == nil {
			a.sketch = sketch
		}
	}
	return a
}

func (a *Aggregate) add(v float64) {
	a.count++
	a.sum += v
	if v < a.min {
		a.min = v
	}
	if v > a.max {
		a.max = v
	}
	if a.sketch != nil {
		// DDSketch only fails on values outside its indexable range.
		_ = a.sketch.Add(v)
	}
}

func (a *Aggregate) merge(other *Aggregate) {
	if other.count == 0 {
		return
	}
	a.count += other.count
	a.sum += other.sum
	if other.min < a.min {
		a.min = other.min
	}
	if other.max > a.max {
		a.max = other.max
	}
	if a.sketch != nil && other.sketch != nil {
		_ = a.sketch.MergeWith(other.sketch)
	}
}

// Result is the summary of one channel.
type Result struct {
	Channel telemetry.Channel
	Count   int64
	Sum     float64
	Min     float64
	Max     float64
	Avg     float64

	// Percentiles, valid when HasPercentiles is set.
	P50            float64
	P95            float64
	HasPercentiles bool
}

func (a *Aggregate) result(c telemetry.Channel) Result {
	r := Result{Channel: c, Count: a.count, Sum: a.sum}
	if a.count == 0 {
		return r
	}
	r.Min = a.min
	r.Max = a.max
	r.Avg = a.sum / float64(a.count)

	if a.sketch != nil && !a.sketch.IsEmpty() {
		p50, err50 := a.sketch.GetValueAtQuantile(0.50)
		p95, err95 := a.sketch.GetValueAtQuantile(0.95)
		if err50 == nil && err95 == nil {
			r.P50, r.P95, r.HasPercentiles = p50, p95, true
		}
	}
	return r
}

// Collector aggregates every channel of every observed sample.
// It is safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	accuracy float64
	aggs     [telemetry.FieldCount]Aggregate
}

// New creates a Collector with DefaultAccuracy percentiles.
func New() *Collector {
	return NewWithAccuracy(DefaultAccuracy)
}

// NewWithAccuracy creates a Collector. accuracy <= 0 disables percentiles.
func NewWithAccuracy(accuracy float64) *Collector {
	c := &Collector{accuracy: accuracy}
	c.resetLocked()
	return c
}

func (c *Collector) resetLocked() {
	for i := range c.aggs {
		c.aggs[i] = newAggregate(c.accuracy)
	}
}

// Observe adds one sample.
func (c *Collector) Observe(s telemetry.Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, v := range s.Fields {
		c.aggs[i].add(v)
	}
}

// Count returns the number of observed samples.
func (c *Collector) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aggs[0].count
}

// Channel returns the summary of one channel.
func (c *Collector) Channel(ch telemetry.Channel) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aggs[ch].result(ch)
}

// Results returns the summary of every channel in wire order.
func (c *Collector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Result, telemetry.FieldCount)
	for i := range c.aggs {
		out[i] = c.aggs[i].result(telemetry.Channel(i))
	}
	return out
}

// Merge folds other into c. other is left unchanged.
func (c *Collector) Merge(other *Collector) {
	if other == nil || other == c {
		return
	}
	other.mu.Lock()
	defer other.mu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.aggs {
		c.aggs[i].merge(&other.aggs[i])
	}
}

// Reset discards all observations.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}
