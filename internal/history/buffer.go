// Package history keeps the most recent normalized records in memory.
package history

import (
	"sync"

	"github.com/telhawk-systems/telhawk-bridge/internal/record"
)

// DefaultCapacity is the window size used when none is configured.
const DefaultCapacity = 1000

// Buffer is a fixed-capacity ring of records. When full, each Append evicts
// the oldest record. Safe for concurrent use.
type Buffer struct {
	mu    sync.RWMutex
	items []*record.Record
	head  int // index of the oldest record
	size  int
}

// NewBuffer returns an empty buffer. A capacity < 1 uses DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Buffer{items: make([]*record.Record, capacity)}
}

// Append adds r at the tail. Nil records are ignored.
func (b *Buffer) Append(r *record.Record) {
	if r == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.head+b.size)%capacity] = r
		b.size++
		return
	}
	b.items[b.head] = r
	b.head = (b.head + 1) % capacity
}

// Snapshot returns the records oldest first. The slice is the caller's; the
// records themselves are shared and must not be modified.
func (b *Buffer) Snapshot() []*record.Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*record.Record, b.size)
	capacity := len(b.items)
	n := copy(out, b.items[b.head:min(b.head+b.size, capacity)])
	copy(out[n:], b.items[:b.size-n])
	return out
}

// Len returns the number of records held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the capacity.
func (b *Buffer) Cap() int {
	return len(b.items)
}
