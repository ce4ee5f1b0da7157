package events

import "sync/atomic"

// DefaultCapacity is the queue size used by the daemon.
const DefaultCapacity = 32

const seqMask = 1<<48 - 1

// Queue is a fixed-capacity FIFO of Events shared between exactly one
// producer (the edge handler) and one consumer (the main loop).
//
// Put never blocks and never allocates. With overwrite enabled a full queue
// evicts its oldest entry. Every slot carries the sequence number it was
// written for, so a consumer racing with an eviction detects the stale read
// and retries instead of returning a half-replaced entry.
type Queue struct {
	slots   []atomic.Uint64
	size    uint64
	head    atomic.Uint64 // next read position
	tail    atomic.Uint64 // next write position
	dropped atomic.Uint64
}

// NewQueue creates a queue holding up to capacity events.
// A capacity below 1 is treated as 1.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		slots: make([]atomic.Uint64, capacity),
		size:  uint64(capacity),
	}
}

func pack(seq uint64, e Event) uint64 {
	return (seq&seqMask)<<16 | uint64(e.Kind)<<8 | uint64(e.Data)
}

func unpack(v uint64) (uint64, Event) {
	return v >> 16, Event{Kind: Kind(v >> 8), Data: uint8(v)}
}

// Put appends e at the tail. When the queue is full and overwrite is true the
// oldest entry is discarded to make room; when overwrite is false Put reports
// false and leaves the queue unchanged.
//
// Put must only be called from the single producer.
func (q *Queue) Put(e Event, overwrite bool) bool {
	t := q.tail.Load()
	for {
		h := q.head.Load()
		if t-h < q.size {
			break
		}
		if !overwrite {
			return false
		}
		// A failed CAS means the consumer took the head itself.
		if q.head.CompareAndSwap(h, h+1) {
			q.dropped.Add(1)
			break
		}
	}
	q.slots[t%q.size].Store(pack(t, e))
	q.tail.Store(t + 1)
	return true
}

// Get removes and returns the oldest event. ok is false when the queue is empty.
func (q *Queue) Get() (e Event, ok bool) {
	for {
		h := q.head.Load()
		if h == q.tail.Load() {
			return Event{}, false
		}
		seq, ev := unpack(q.slots[h%q.size].Load())
		if seq != h&seqMask {
			// Slot already reused by a wrapped-around Put; head has moved on.
			continue
		}
		if q.head.CompareAndSwap(h, h+1) {
			return ev, true
		}
	}
}

// Depth returns the number of buffered events.
func (q *Queue) Depth() int {
	h := q.head.Load()
	t := q.tail.Load()
	d := t - h
	if d > q.size {
		d = q.size
	}
	return int(d)
}

// Capacity returns the fixed queue size.
func (q *Queue) Capacity() int {
	return int(q.size)
}

// Clear discards every buffered event.
func (q *Queue) Clear() {
	for {
		h := q.head.Load()
		t := q.tail.Load()
		if h == t || q.head.CompareAndSwap(h, t) {
			return
		}
	}
}

// Dropped returns how many events have been evicted by overwriting Puts
// since the queue was created.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
