package window

import (
	"fmt"

	"github.com/xtxerr/groundlink/internal/errors"
)

// ring is a fixed-capacity circular buffer of channel values.
// It is not safe for concurrent use; Store serialises access.
type ring struct {
	data     []float64
	head     int // Next write position
	count    int
	capacity int
}

func newRing(capacity int) ring {
	return ring{
		data:     make([]float64, capacity),
		capacity: capacity,
	}
}

// push appends v, evicting the oldest value when full.
// It reports whether a value was evicted.
func (r *ring) push(v float64) bool {
	r.data[r.head] = v
	r.head = (r.head + 1) % r.capacity

	if r.count < r.capacity {
		r.count++
		r.check()
		return false
	}
	return true
}

// check panics if the invariant count <= capacity is broken.
// A violation is a programming error, never a runtime condition.
func (r *ring) check() {
	if r.count > r.capacity {
		panic(fmt.Errorf("ring holds %d values, capacity %d: %w",
			r.count, r.capacity, errors.ErrCapacityInvariant))
	}
}

// tail returns the index of the oldest value.
func (r *ring) tail() int {
	return (r.head - r.count + r.capacity) % r.capacity
}

// appendTo appends the values oldest first to dst.
func (r *ring) appendTo(dst []float64) []float64 {
	start := r.tail()
	for i := 0; i < r.count; i++ {
		dst = append(dst, r.data[(start+i)%r.capacity])
	}
	return dst
}

// newest returns the most recent value.
func (r *ring) newest() (float64, bool) {
	if r.count == 0 {
		return 0, false
	}
	return r.data[(r.head-1+r.capacity)%r.capacity], true
}

func (r *ring) reset() {
	for i := range r.data {
		r.data[i] = 0
	}
	r.head = 0
	r.count = 0
}
