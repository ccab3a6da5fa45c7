// Package window keeps the bounded recent history of every live channel.
//
// The Store holds one fixed-capacity window per windowed channel. The
// ingestion session is the single writer; any number of presentation
// readers take snapshots. One lock is held across the update of all
// channels, so a snapshot never mixes values from two different samples.
package window

import (
	"sync"
	"sync/atomic"

	"github.com/xtxerr/groundlink/config"
	"github.com/xtxerr/groundlink/internal/telemetry"
)

// Store is the per-channel window store.
// It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	rings    [telemetry.WindowedCount]ring
	seq      uint64 // samples appended since creation or Reset
	capacity int

	// Statistics
	appendCount atomic.Int64
	evictCount  atomic.Int64
}

// Frame is a consistent copy of every window at one point in time.
type Frame struct {
	// Seq is the number of samples appended when the frame was taken.
	Seq uint64

	// Windows holds each channel's values, oldest first.
	Windows [telemetry.WindowedCount][]float64
}

// Len returns the number of values in each window of the frame.
func (f *Frame) Len() int {
	return len(f.Windows[0])
}

// Window returns the values of one channel, or nil for a non-windowed channel.
func (f *Frame) Window(c telemetry.Channel) []float64 {
	if !c.Windowed() {
		return nil
	}
	return f.Windows[c]
}

// Latest returns the newest value of a channel in the frame.
func (f *Frame) Latest(c telemetry.Channel) (float64, bool) {
	w := f.Window(c)
	if len(w) == 0 {
		return 0, false
	}
	return w[len(w)-1], true
}

// New creates a Store with the standard capacity.
func New() *Store {
	return NewWithCapacity(config.WindowCapacity)
}

// NewWithCapacity creates a Store whose windows hold capacity values.
func NewWithCapacity(capacity int) *Store {
	if capacity <= 0 {
		capacity = config.WindowCapacity
	}
	s := &Store{capacity: capacity}
	for i := range s.rings {
		s.rings[i] = newRing(capacity)
	}
	return s
}

// Append pushes every windowed channel of sample as one update.
func (s *Store) Append(sample telemetry.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := false
	for i := range s.rings {
		if s.rings[i].push(sample.Fields[i]) {
			evicted = true
		}
	}
	s.seq++

	s.appendCount.Add(1)
	if evicted {
		s.evictCount.Add(1)
	}
}

// Snapshot returns a copy of one channel's window, oldest first.
// Non-windowed channels return nil.
func (s *Store) Snapshot(c telemetry.Channel) []float64 {
	if !c.Windowed() {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r := &s.rings[c]
	return r.appendTo(make([]float64, 0, r.count))
}

// SnapshotAll returns a consistent copy of every window.
func (s *Store) SnapshotAll() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := Frame{Seq: s.seq}
	n := s.rings[0].count
	backing := make([]float64, 0, n*len(s.rings))
	for i := range s.rings {
		start := len(backing)
		backing = s.rings[i].appendTo(backing)
		f.Windows[i] = backing[start:len(backing):len(backing)]
	}
	return f
}

// Latest returns the newest sample's windowed values.
// ok is false while the store is empty.
func (s *Store) Latest() (values [telemetry.WindowedCount]float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.rings {
		v, has := s.rings[i].newest()
		if !has {
			return values, false
		}
		values[i] = v
	}
	return values, true
}

// Len returns the number of values currently held per channel.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rings[0].count
}

// Cap returns the per-channel capacity.
func (s *Store) Cap() int {
	return s.capacity
}

// Seq returns the number of samples appended since creation or Reset.
func (s *Store) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Reset empties every window.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rings {
		s.rings[i].reset()
	}
	s.seq = 0
}

// Stats returns store statistics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	count := s.rings[0].count
	s.mu.RUnlock()

	return Stats{
		Capacity:    s.capacity,
		Count:       count,
		UsageRatio:  float64(count) / float64(s.capacity),
		AppendCount: s.appendCount.Load(),
		EvictCount:  s.evictCount.Load(),
	}
}

// Stats holds store statistics.
type Stats struct {
	Capacity    int
	Count       int
	UsageRatio  float64
	AppendCount int64
	EvictCount  int64
}
