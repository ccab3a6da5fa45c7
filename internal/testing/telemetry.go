package testing

import (
	"github.com/xtxerr/groundlink/internal/record"
	"github.com/xtxerr/groundlink/internal/telemetry"
)

// Sample returns a deterministic sample for arrival position n (1-based).
// Every windowed channel holds n plus a per-channel offset, so a window's
// content identifies exactly which samples it contains.
func Sample(n int) telemetry.Sample {
	var s telemetry.Sample
	for i := 0; i < telemetry.WindowedCount; i++ {
		s.Fields[i] = float64(n) + float64(i)/100
	}
	s.Fields[telemetry.Latitude] = 6.26 + float64(n)/1e4
	s.Fields[telemetry.Longitude] = -75.56 - float64(n)/1e4
	return s
}

// Samples returns samples for positions 1..n.
func Samples(n int) []telemetry.Sample {
	out := make([]telemetry.Sample, n)
	for i := range out {
		out[i] = Sample(i + 1)
	}
	return out
}

// Record returns the wire form of Sample(n).
func Record(n int) []byte {
	return record.Format(Sample(n))
}

// Position recovers n from a windowed channel value produced by Sample.
func Position(c telemetry.Channel, v float64) int {
	return int(v - float64(c)/100 + 0.5)
}
