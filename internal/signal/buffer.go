package signal

import "sync"

// DefaultCapacity bounds the buffer to roughly 20 minutes of records
// at the usual 2-second publish cadence.
const DefaultCapacity = 600

// Buffer is a fixed-capacity ring of Records shared by all sensor
// adapters (producers) and the activity engine (single consumer).
// Append evicts the oldest record once full. Snapshot returns a copy
// so the consumer never iterates under the lock.
type Buffer struct {
	mu    sync.Mutex
	recs  []Record
	start int
	count int
}

// NewBuffer creates a Buffer with the given capacity. Non-positive
// capacities fall back to DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{recs: make([]Record, capacity)}
}

// Append adds a record, evicting the oldest when the ring is full.
func (b *Buffer) Append(r Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count < len(b.recs) {
		b.recs[(b.start+b.count)%len(b.recs)] = r
		b.count++
		return
	}
	b.recs[b.start] = r
	b.start = (b.start + 1) % len(b.recs)
}

// Snapshot returns the retained records in append order. Records from
// different producers may interleave within a tick; callers that care
// about time order must use each record's own timestamp.
func (b *Buffer) Snapshot() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.recs[(b.start+i)%len(b.recs)]
	}
	return out
}

// Clear drops all records. Used on manual reset and on sleep/wake
// boundaries so stale activity does not leak across a discontinuity.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.start = 0
	b.count = 0
}

// Len returns the number of retained records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
