package logic

import (
	"sync"
	"testing"
)

func TestWordQueueEmpty(t *testing.T) {
	var q WordQueue
	if !q.Empty() {
		t.Error("new queue should be empty")
	}
	if q.Full() {
		t.Error("new queue should not be full")
	}
	if got := q.Read(); got != 0 {
		t.Errorf("Read on empty queue: got %s, want 0x0000", got)
	}
	if q.Len() != 0 {
		t.Errorf("Len: got %d, want 0", q.Len())
	}
}

func TestWordQueueFIFO(t *testing.T) {
	var q WordQueue
	for k := 1; k < QueueCapacity; k++ {
		for i := 0; i < k; i++ {
			q.Push(Word(i + 1))
		}
		if q.Len() != k {
			t.Fatalf("k=%d: Len got %d", k, q.Len())
		}
		for i := 0; i < k; i++ {
			if q.Empty() {
				t.Fatalf("k=%d: empty after %d reads", k, i)
			}
			if got := q.Read(); got != Word(i+1) {
				t.Fatalf("k=%d: read %d got %s, want %s", k, i, got, Word(i+1))
			}
		}
		if !q.Empty() {
			t.Fatalf("k=%d: expected empty after reading everything", k)
		}
	}
}

func TestWordQueueUsableCapacity(t *testing.T) {
	var q WordQueue
	for i := 0; i < QueueCapacity-1; i++ {
		if q.Full() {
			t.Fatalf("full after %d pushes, want %d usable slots", i, QueueCapacity-1)
		}
		q.Push(Word(i))
	}
	if !q.Full() {
		t.Fatal("expected full after 63 pushes")
	}
	if q.Len() != QueueCapacity-1 {
		t.Errorf("Len: got %d, want %d", q.Len(), QueueCapacity-1)
	}
}

func TestWordQueueOverflowDrops(t *testing.T) {
	var q WordQueue
	for i := 0; i < QueueCapacity+10; i++ {
		q.Push(Word(i))
	}
	if !q.Full() {
		t.Error("expected full after overflow")
	}
	if got := q.Dropped(); got != 11 {
		t.Errorf("Dropped: got %d, want 11 (64th push onwards)", got)
	}

	// Oldest words are kept, the 64th and later were discarded.
	for i := 0; i < QueueCapacity-1; i++ {
		if got := q.Read(); got != Word(i) {
			t.Fatalf("read %d: got %s, want %s", i, got, Word(i))
		}
	}
	if !q.Empty() {
		t.Error("expected empty after draining")
	}
}

func TestWordQueueCapacitySameAtEveryReadIndex(t *testing.T) {
	// Index 0 and the last slot are where a two-case wrap would differ
	// from modulo arithmetic.
	for _, offset := range []int{0, 1, 32, QueueCapacity - 1, QueueCapacity} {
		var q WordQueue
		for i := 0; i < offset; i++ {
			q.Push(Word(i))
			q.Read()
		}
		for i := 0; i < QueueCapacity; i++ {
			q.Push(Word(i))
		}
		if q.Len() != QueueCapacity-1 || q.Dropped() != 1 {
			t.Errorf("read index %d: Len %d Dropped %d, want %d and 1",
				offset%QueueCapacity, q.Len(), q.Dropped(), QueueCapacity-1)
		}
	}
}

func TestWordQueueWrapMatchesModulo(t *testing.T) {
	var q WordQueue
	var head, tail uint32
	next := Word(0)
	want := Word(0)

	// Interleave pushes and reads so both indices wrap many times,
	// and compare against a plain modulo-64 model.
	for round := 0; round < 1000; round++ {
		pushes := round%7 + 1
		for i := 0; i < pushes; i++ {
			full := (tail+1)%QueueCapacity == head
			if q.Full() != full {
				t.Fatalf("round %d: Full got %v, model %v", round, q.Full(), full)
			}
			q.Push(next)
			if !full {
				tail = (tail + 1) % QueueCapacity
			}
			next++
		}
		reads := round%5 + 1
		for i := 0; i < reads; i++ {
			if q.Empty() != (head == tail) {
				t.Fatalf("round %d: Empty got %v, model %v", round, q.Empty(), head == tail)
			}
			if head == tail {
				break
			}
			got := q.Read()
			head = (head + 1) % QueueCapacity
			if got < want {
				t.Fatalf("round %d: out of order read %s after %s", round, got, want)
			}
			want = got + 1
		}
		if q.head.Load() != head || q.tail.Load() != tail {
			t.Fatalf("round %d: indices (%d,%d), model (%d,%d)", round, q.head.Load(), q.tail.Load(), head, tail)
		}
	}
}

func TestWordQueueConcurrentProducerConsumer(t *testing.T) {
	var q WordQueue
	const n = 20000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			for q.Full() {
			}
			q.Push(Word(i))
		}
	}()

	last := Word(0)
	for received := 0; received < n; {
		if q.Empty() {
			continue
		}
		got := q.Read()
		if got != last+1 {
			t.Fatalf("got %s after %s", got, last)
		}
		last = got
		received++
	}
	wg.Wait()

	if q.Dropped() != 0 {
		t.Errorf("Dropped: got %d, want 0", q.Dropped())
	}
}
