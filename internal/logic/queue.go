package logic

import "sync/atomic"

// QueueCapacity is the number of slots in a WordQueue. One slot is always
// left empty so that head == tail means empty, so QueueCapacity-1 words fit.
const QueueCapacity = 64

// WordQueue is a fixed-size FIFO between one producer (the edge handler)
// and one consumer (the polling loop). It never blocks and never allocates.
//
// The producer only writes tail and the slot tail points at. The consumer
// only writes head. Neither side takes a lock.
type WordQueue struct {
	buf     [QueueCapacity]Word
	head    atomic.Uint32 // next slot to read, consumer-owned
	tail    atomic.Uint32 // next slot to write, producer-owned
	dropped atomic.Uint64 // producer-owned
}

// advance moves an index one slot forward, wrapping to zero at capacity.
func advance(i uint32) uint32 {
	i++
	if i == QueueCapacity {
		i = 0
	}
	return i
}

// Push appends w. When the queue is full the word is discarded.
// Producer only.
func (q *WordQueue) Push(w Word) {
	t := q.tail.Load()
	n := advance(t)
	if n == q.head.Load() {
		q.dropped.Add(1)
		return
	}
	q.buf[t] = w
	q.tail.Store(n)
}

// Read removes and returns the oldest word, or 0 when the queue is empty.
// A zero return is ambiguous (0x0000 is the "0" key); check Empty first.
// Consumer only.
func (q *WordQueue) Read() Word {
	h := q.head.Load()
	if h == q.tail.Load() {
		return 0
	}
	w := q.buf[h]
	q.head.Store(advance(h))
	return w
}

// Empty reports whether there is nothing to read.
func (q *WordQueue) Empty() bool {
	return q.head.Load() == q.tail.Load()
}

// Full reports whether the next Push would be dropped.
func (q *WordQueue) Full() bool {
	return advance(q.tail.Load()) == q.head.Load()
}

// Len returns the number of queued words.
func (q *WordQueue) Len() int {
	h, t := q.head.Load(), q.tail.Load()
	if t >= h {
		return int(t - h)
	}
	return int(QueueCapacity - h + t)
}

// Dropped returns how many words were discarded because the queue was full.
func (q *WordQueue) Dropped() uint64 {
	return q.dropped.Load()
}
