package logic

import "time"

// Phase is one constant-level stretch of a transmitted waveform.
type Phase struct {
	Asserted bool
	Width    time.Duration
}

// WaveformLen is the number of phases in a word's waveform:
// start marker, two phases per bit, stop marker.
const WaveformLen = 1 + 2*WordBits + 1

// Waveform returns the phases that put w on the bus, MSB first.
//
//	start: asserted 1 bit time
//	bit 0: released 1 bit time, asserted 2 bit times
//	bit 1: released 2 bit times, asserted 1 bit time
//	stop:  released 1 bit time
func Waveform(w Word) [WaveformLen]Phase {
	var out [WaveformLen]Phase
	out[0] = Phase{Asserted: true, Width: BitTime}

	for i := 0; i < WordBits; i++ {
		released := BitTime
		if w&0x8000 != 0 {
			released = 2 * BitTime
		}
		out[1+2*i] = Phase{Asserted: false, Width: released}
		out[2+2*i] = Phase{Asserted: true, Width: 3*BitTime - released}
		w <<= 1
	}

	out[WaveformLen-1] = Phase{Asserted: false, Width: BitTime}
	return out
}
