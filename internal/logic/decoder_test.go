package logic

import (
	"testing"
	"time"
)

// feedWord plays the waveform of w into d starting at t after a quiet bus,
// and returns the time at which the line went quiet again.
func feedWord(d *Decoder, w Word, t time.Duration) time.Duration {
	for _, p := range Waveform(w) {
		d.HandleEdge(p.Asserted, t)
		t += p.Width
	}
	return t
}

func TestDecoderSingleWord(t *testing.T) {
	var q WordQueue
	d := NewDecoder(&q)

	feedWord(d, CodeAlarmArmed, 10*time.Second)

	if q.Len() != 1 {
		t.Fatalf("expected 1 word, got %d", q.Len())
	}
	if got := q.Read(); got != CodeAlarmArmed {
		t.Errorf("got %s, want %s", got, CodeAlarmArmed)
	}
}

func TestDecoderRoundTripAllTableWords(t *testing.T) {
	var words []Word
	for _, k := range Keys() {
		words = append(words, KeyWords(k)...)
	}
	for w := range EventCodes() {
		words = append(words, w)
	}
	words = append(words, 0xFFFF, 0x5555, 0xAAAA)

	var q WordQueue
	d := NewDecoder(&q)
	t0 := time.Second
	for _, w := range words {
		end := feedWord(d, w, t0)
		if q.Empty() {
			t.Fatalf("%s: nothing decoded", w)
		}
		if got := q.Read(); got != w {
			t.Errorf("round trip: got %s, want %s", got, w)
		}
		t0 = end + CTSTime
	}
}

func TestDecoderBackToBackWords(t *testing.T) {
	var q WordQueue
	d := NewDecoder(&q)

	// A gap just over IdleTime separates words.
	t0 := time.Second
	t0 = feedWord(d, 0x00CF, t0) + IdleTime + time.Microsecond
	feedWord(d, 0x8169, t0)

	if got := q.Read(); got != 0x00CF {
		t.Errorf("first: got %s, want 0x00CF", got)
	}
	if got := q.Read(); got != 0x8169 {
		t.Errorf("second: got %s, want 0x8169", got)
	}
}

func TestDecoderIgnoresReleasedEdges(t *testing.T) {
	var q WordQueue
	d := NewDecoder(&q)

	// Only released edges: no bit is ever classified.
	at := time.Second
	for i := 0; i < 64; i++ {
		d.HandleEdge(false, at)
		at += BitTime
	}
	if !q.Empty() {
		t.Errorf("expected no words, got %d", q.Len())
	}
	if d.nbits != 0 {
		t.Errorf("expected 0 bits, got %d", d.nbits)
	}
}

func TestDecoderIdleResetsPartialWord(t *testing.T) {
	var q WordQueue
	d := NewDecoder(&q)

	// Start of a word, five bits, then the bus goes idle mid-word.
	at := time.Second
	phases := Waveform(0xFFFF)
	for _, p := range phases[:11] {
		d.HandleEdge(p.Asserted, at)
		at += p.Width
	}
	if d.nbits != 5 {
		t.Fatalf("expected 5 bits, got %d", d.nbits)
	}

	feedWord(d, CodeEstoy, at+IdleTime+time.Millisecond)

	if q.Len() != 1 {
		t.Fatalf("expected exactly 1 word, got %d", q.Len())
	}
	if got := q.Read(); got != CodeEstoy {
		t.Errorf("got %s, want %s", got, CodeEstoy)
	}
}

func TestDecoderThresholds(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantBit uint16
		reset   bool
	}{
		{"short pulse is zero", BitTime, 0, false},
		{"at zero threshold is zero", ZeroTime, 0, false},
		{"just over zero threshold is one", ZeroTime + time.Microsecond, 1, false},
		{"long pulse is one", 2 * BitTime, 1, false},
		{"at idle threshold is one", IdleTime, 1, false},
		{"over idle threshold resets", IdleTime + time.Microsecond, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q WordQueue
			d := NewDecoder(&q)
			d.HandleEdge(true, time.Second) // start marker after idle
			d.HandleEdge(false, time.Second+BitTime)
			d.HandleEdge(true, time.Second+BitTime+tt.elapsed)

			if tt.reset {
				if d.nbits != 0 {
					t.Errorf("expected reset, got %d bits", d.nbits)
				}
				return
			}
			if d.nbits != 1 {
				t.Fatalf("expected 1 bit, got %d", d.nbits)
			}
			if d.acc != tt.wantBit {
				t.Errorf("bit: got %d, want %d", d.acc, tt.wantBit)
			}
		})
	}
}

func TestDecoderOverflowIsSilent(t *testing.T) {
	var q WordQueue
	d := NewDecoder(&q)

	at := time.Second
	for i := 0; i < QueueCapacity+5; i++ {
		at = feedWord(d, CodeZ1Wired, at) + CTSTime
	}
	if !q.Full() {
		t.Error("expected queue full")
	}
	if q.Dropped() != 6 {
		t.Errorf("Dropped: got %d, want 6", q.Dropped())
	}
}

func TestWaveformShape(t *testing.T) {
	wf := Waveform(0x8000)

	if !wf[0].Asserted || wf[0].Width != BitTime {
		t.Errorf("start marker: got %+v", wf[0])
	}
	// MSB is 1: released 2 bit times, asserted 1.
	if wf[1].Asserted || wf[1].Width != 2*BitTime {
		t.Errorf("bit 15 released phase: got %+v", wf[1])
	}
	if !wf[2].Asserted || wf[2].Width != BitTime {
		t.Errorf("bit 15 asserted phase: got %+v", wf[2])
	}
	// Next bit is 0: released 1 bit time, asserted 2.
	if wf[3].Asserted || wf[3].Width != BitTime {
		t.Errorf("bit 14 released phase: got %+v", wf[3])
	}
	if !wf[4].Asserted || wf[4].Width != 2*BitTime {
		t.Errorf("bit 14 asserted phase: got %+v", wf[4])
	}
	last := wf[WaveformLen-1]
	if last.Asserted || last.Width != BitTime {
		t.Errorf("stop marker: got %+v", last)
	}

	var total time.Duration
	for i, p := range wf {
		total += p.Width
		if i > 0 && p.Asserted == wf[i-1].Asserted {
			t.Errorf("phase %d does not change level", i)
		}
	}
	if want := 2*BitTime + WordBits*3*BitTime; total != want {
		t.Errorf("total width: got %v, want %v", total, want)
	}
}
