// Package queue provides the lock-free primitives the engine is built on:
// a bounded MPMC ring and a pointer-keyed hash table with a cell freelist.
package queue

import (
	"sync/atomic"
	"unsafe"
)

// ringSlot is one cell of the ring. seq coordinates producers/consumers the
// way a Vyukov MPMC queue does: a slot is writable once seq == head, and
// readable once seq == tail+1.
type ringSlot struct {
	seq  atomic.Uint64
	elem unsafe.Pointer
}

// BdQueue is a fixed-capacity, lock-free, multi-producer multi-consumer
// FIFO of opaque pointers. Capacity is rounded up to the next power of two.
// Enqueue/Dequeue never block: callers see QueueFull/QueueEmpty instead.
type BdQueue struct {
	mask  uint64
	slots []ringSlot
	_pad0 [CacheLinePad]byte
	head  atomic.Uint64
	_pad1 [CacheLinePad]byte
	tail  atomic.Uint64
}

// CacheLinePad keeps the head and tail cursors on separate cache lines so
// producers and consumers don't false-share.
const CacheLinePad = 64

// NewBdQueue creates a queue with at least the given capacity.
func NewBdQueue(capacity int) *BdQueue {
	n := 1
	for n < capacity {
		n <<= 1
	}
	q := &BdQueue{
		mask:  uint64(n - 1),
		slots: make([]ringSlot, n),
	}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q
}

// Enqueue attempts to push elem. Returns false (QueueFull) if the ring is
// at capacity.
func (q *BdQueue) Enqueue(elem unsafe.Pointer) bool {
	for {
		pos := q.head.Load()
		slot := &q.slots[pos&q.mask]
		seq := slot.seq.Load()
		diff := int64(seq) - int64(pos)

		switch {
		case diff == 0:
			if int64(pos-q.tail.Load()) > int64(q.mask) {
				return false // full: with capacity 1 the slot's seq alone cannot tell
			}
			if q.head.CompareAndSwap(pos, pos+1) {
				slot.elem = elem
				slot.seq.Store(pos + 1)
				return true
			}
		case diff < 0:
			return false // full
		default:
			// another producer advanced head first; retry
		}
	}
}

// Dequeue attempts to pop the oldest element. Returns (nil, false)
// (QueueEmpty) if the ring currently has nothing to drain.
func (q *BdQueue) Dequeue() (unsafe.Pointer, bool) {
	for {
		pos := q.tail.Load()
		slot := &q.slots[pos&q.mask]
		seq := slot.seq.Load()
		diff := int64(seq) - int64(pos+1)

		switch {
		case diff == 0:
			if q.tail.CompareAndSwap(pos, pos+1) {
				elem := slot.elem
				slot.elem = nil
				slot.seq.Store(pos + q.mask + 1)
				return elem, true
			}
		case diff < 0:
			return nil, false // empty
		default:
			// another consumer advanced tail first; retry
		}
	}
}

// Cap returns the ring's fixed capacity.
func (q *BdQueue) Cap() int {
	return len(q.slots)
}
