package logic

import "time"

// Decoder rebuilds bus words from edge timestamps.
//
// Every edge records its timestamp. Edges onto the asserted level are the
// qualifying ones: the time since the previous edge is the width of the
// released phase that just ended, and that width is the bit value.
// An asserted edge after more than IdleTime of silence starts a new word.
//
// HandleEdge is called from the edge context only. It does not block or
// allocate and is the only writer of the decoder fields.
type Decoder struct {
	queue *WordQueue

	last  time.Duration
	acc   uint16
	nbits int
}

// NewDecoder creates a decoder that pushes complete words into q.
func NewDecoder(q *WordQueue) *Decoder {
	return &Decoder{queue: q}
}

// HandleEdge processes one edge. asserted is the line level after the edge,
// at is a monotonic timestamp.
func (d *Decoder) HandleEdge(asserted bool, at time.Duration) {
	elapsed := at - d.last
	d.last = at

	if !asserted {
		return
	}

	if elapsed > IdleTime {
		d.acc = 0
		d.nbits = 0
		return
	}

	d.acc <<= 1
	if elapsed > ZeroTime {
		d.acc |= 1
	}
	d.nbits++

	if d.nbits == WordBits {
		d.queue.Push(Word(d.acc))
		d.acc = 0
		d.nbits = 0
	}
}
