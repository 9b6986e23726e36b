// Package memring holds the bounded in-memory reading history used when
// the durable store is unavailable. It is a degraded-mode substitute
// only: nothing survives a restart, and once full the oldest entry is
// evicted on every append.
package memring

import (
	"sync"

	"github.com/hydrotel/hydrobridge/hydrometer"
)

// DefaultCapacity matches the in-memory history limit of the bridge.
const DefaultCapacity = 1000

// Ring is a FIFO-bounded sequence of readings, safe for concurrent use.
type Ring struct {
	mu       sync.Mutex
	capacity int
	entries  []hydrometer.Reading
}

// New returns a ring with the given capacity; non-positive values use
// DefaultCapacity.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{capacity: capacity}
}

// Push appends a reading, evicting the oldest entry when full.
func (r *Ring) Push(reading hydrometer.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, reading)
	if len(r.entries) > r.capacity {
		// Shift rather than reslice so the evicted head is collectable.
		copy(r.entries, r.entries[1:])
		r.entries = r.entries[:r.capacity]
	}
}

// RecentSlice returns a copy of the last n entries, oldest first.
func (r *Ring) RecentSlice(n int) []hydrometer.Reading {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 {
		return nil
	}
	start := len(r.entries) - n
	if start < 0 {
		start = 0
	}
	out := make([]hydrometer.Reading, len(r.entries)-start)
	copy(out, r.entries[start:])
	return out
}

// All returns a copy of the entire buffer, oldest first.
func (r *Ring) All() []hydrometer.Reading {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]hydrometer.Reading, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of buffered readings.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
